package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/service"
)

// resolveCredentials merges request-supplied credentials with the saved token
// and configured account id. Request values win.
func resolveCredentials(cfg config.Config, ts service.TokenService, reqToken, reqUserID string) service.Credentials {
	creds := service.Credentials{AccessToken: reqToken, IGUserID: reqUserID}
	if creds.AccessToken == "" {
		if token := ts.Get(); token != nil {
			creds.AccessToken = token.AccessToken
		}
	}
	if creds.IGUserID == "" {
		creds.IGUserID = cfg.IGUserID
	}
	return creds
}

// publishErrorResponse maps a publication failure to an HTTP answer that
// always names the failing position and the positions already published.
func publishErrorResponse(c *fiber.Ctx, results []service.PositionResult, err error) error {
	var alreadyPublished *service.AlreadyPublishedError
	var pubErr *service.PublicationError

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrDraftNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &alreadyPublished):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &pubErr):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":           err.Error(),
			"failed_position": pubErr.Position,
			"failed_step":     pubErr.Step,
			"published":       results,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func truncateToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
