package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/nfnt/resize"

	"github.com/instagrid/instagrid/internal/models"
)

// ProcessingError means the input bytes could not be decoded or re-encoded.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("image %s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// cropRatios maps ratio names to width/height. A zero value means no crop.
var cropRatios = map[string]float64{
	models.CropRatioOriginal:  0,
	models.CropRatioSquare:    1.0,
	models.CropRatioPortrait:  4.0 / 5.0,
	models.CropRatioLandscape: 16.0 / 9.0,
}

const maxDimension = 1080

// Compress re-encodes an image as JPEG under maxSizeKB, downscaling to
// 1080px on the longest side first and then stepping the quality down until
// the budget is met.
func Compress(data []byte, maxSizeKB int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ProcessingError{Op: "decode", Err: err}
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		img = resize.Thumbnail(maxDimension, maxDimension, img, resize.Lanczos3)
		slog.Debug("image resized", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}

	quality := 90
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &ProcessingError{Op: "encode", Err: err}
	}

	for buf.Len() > maxSizeKB*1024 && quality > 10 {
		quality -= 5
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, &ProcessingError{Op: "encode", Err: err}
		}
	}

	slog.Info("image compressed", "size_kb", buf.Len()/1024, "quality", quality)
	return buf.Bytes(), nil
}

// Crop cuts an image down to the named ratio around the given focal position.
// Position coordinates are clamped to [0,100]; the crop window never leaves
// the image bounds. Ratio "original" (or any unknown ratio) returns the input
// bytes untouched.
func Crop(data []byte, ratio string, pos models.CropPosition) ([]byte, error) {
	target, ok := cropRatios[ratio]
	if !ok || target == 0 {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ProcessingError{Op: "decode", Err: err}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	imgRatio := float64(width) / float64(height)

	posX := float64(clamp(pos.X, 0, 100)) / 100.0
	posY := float64(clamp(pos.Y, 0, 100)) / 100.0

	var rect image.Rectangle
	switch {
	case imgRatio > target:
		// too wide, trim left/right
		newWidth := int(float64(height) * target)
		left := int(float64(width-newWidth) * posX)
		rect = image.Rect(bounds.Min.X+left, bounds.Min.Y, bounds.Min.X+left+newWidth, bounds.Max.Y)
	case imgRatio < target:
		// too tall, trim top/bottom
		newHeight := int(float64(width) / target)
		top := int(float64(height-newHeight) * posY)
		rect = image.Rect(bounds.Min.X, bounds.Min.Y+top, bounds.Max.X, bounds.Min.Y+top+newHeight)
	default:
		rect = bounds
	}

	cropped := cropTo(img, rect)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 95}); err != nil {
		return nil, &ProcessingError{Op: "encode", Err: err}
	}

	slog.Info("image cropped", "ratio", ratio, "width", rect.Dx(), "height", rect.Dy())
	return buf.Bytes(), nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func cropTo(img image.Image, rect image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
