package dataset

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/reid-eval/internal/model"
)

const jpegQuality = 95

// Preprocess resizes an image to the input size of the model's backbone and
// re-encodes it as JPEG. Letterboxed backbones get the image scaled to half
// the input width and centered on a black canvas.
func Preprocess(data []byte, spec model.Spec) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	width, height := spec.InputSize()
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	target := canvas.Bounds()
	if spec.Letterboxed() {
		inner := width / 2
		pad := (width - inner) / 2
		draw.Draw(canvas, target, image.Black, image.Point{}, draw.Src)
		target = image.Rect(pad, 0, pad+inner, height)
	}
	draw.CatmullRom.Scale(canvas, target, img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
