package job

import (
	"context"
	"log/slog"

	"github.com/instagrid/instagrid/internal/service"
)

// TokenRefreshJob keeps a long-lived user token alive across its 60-day
// window. Permanent page tokens never need it.
type TokenRefreshJob struct {
	ts service.TokenService
}

func NewTokenRefreshJob(ts service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{ts: ts}
}

func (j *TokenRefreshJob) RefreshToken() {
	if err := j.ts.Refresh(context.Background()); err != nil {
		slog.Error("token refresh failed", "error", err)
	}
}
