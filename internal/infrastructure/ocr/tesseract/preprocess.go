package tesseract

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	minOCRWidth    = 1000
	contrastFactor = 2.0
)

// preprocessImage normalizes scans before they reach tesseract: grayscale,
// contrast stretch, and an upscale pass for low-resolution captures. The
// result is written as a PNG so tesseract sees a single input format.
func preprocessImage(src io.Reader, dstPath string) error {
	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	gray := toContrastedGray(img)

	if gray.Bounds().Dx() < minOCRWidth {
		gray = upscale(gray, minOCRWidth)
	}

	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create preprocessed image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, gray); err != nil {
		return fmt.Errorf("encode preprocessed image: %w", err)
	}
	return nil
}

func toContrastedGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			gray.SetGray(x, y, color.Gray{Y: stretchContrast(v)})
		}
	}
	return gray
}

// stretchContrast pushes values away from mid-gray, matching a 2x contrast
// enhancement around the midpoint.
func stretchContrast(v uint8) uint8 {
	adjusted := 128 + (float64(v)-128)*contrastFactor
	if adjusted < 0 {
		return 0
	}
	if adjusted > 255 {
		return 255
	}
	return uint8(adjusted)
}

func upscale(gray *image.Gray, targetWidth int) *image.Gray {
	bounds := gray.Bounds()
	scale := float64(targetWidth) / float64(bounds.Dx())
	dst := image.NewGray(image.Rect(0, 0, targetWidth, int(float64(bounds.Dy())*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), gray, bounds, draw.Over, nil)
	return dst
}
