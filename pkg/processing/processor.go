package processing

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/menta2k/facecrop/pkg/errors"
	"github.com/menta2k/facecrop/pkg/types"
)

// Processor handles image decoding and encoding
type Processor struct {
	config Config
}

// Config holds encoder settings
type Config struct {
	JPEGQuality    int
	PNGCompression png.CompressionLevel
	WebPQuality    float32
	WebPLossless   bool
}

// DefaultConfig returns the default encoder settings
func DefaultConfig() Config {
	return Config{
		JPEGQuality:    95,
		PNGCompression: png.DefaultCompression,
		WebPQuality:    90,
		WebPLossless:   false,
	}
}

// NewProcessor creates a new image processor with default settings
func NewProcessor() *Processor {
	return &Processor{config: DefaultConfig()}
}

// NewProcessorWithConfig creates a new image processor with custom settings
func NewProcessorWithConfig(config Config) *Processor {
	return &Processor{config: config}
}

// LoadImage loads an image from a file path with WebP support.
// Every failure is reported as a decode error.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, apperrors.NewDecodeError(path, err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, apperrors.NewDecodeError(path, fmt.Errorf("not an image (%s)", mtype.String()))
	}

	// Try imaging.Open (registered decoders), honoring EXIF orientation
	img, openErr := imaging.Open(path, imaging.AutoOrientation(true))
	if openErr == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	if mtype.Is("image/webp") {
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewDecodeError(path, err)
		}
		defer f.Close()
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
	}

	return nil, apperrors.NewDecodeError(path, openErr)
}

// ValidateImage rejects images without a positive width and height
func (p *Processor) ValidateImage(img image.Image) error {
	if img == nil {
		return apperrors.NewInvalidImage(0, 0)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return apperrors.NewInvalidImage(b.Dx(), b.Dy())
	}
	return nil
}

// SaveImage saves an image, choosing the format from the file extension
func (p *Processor) SaveImage(img image.Image, path string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "webp" {
		return p.saveWebP(img, path)
	}

	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return apperrors.NewEncodeError(path, fmt.Errorf("unsupported output format %q", ext))
	}

	err := imaging.Save(img, path,
		imaging.JPEGQuality(p.config.JPEGQuality),
		imaging.PNGCompressionLevel(p.config.PNGCompression),
	)
	if err != nil {
		removePartial(path)
		return apperrors.NewEncodeError(path, err)
	}
	return nil
}

// removePartial deletes a file left behind by a failed encode
func removePartial(path string) {
	_ = os.Remove(path)
}

func (p *Processor) saveWebP(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewEncodeError(path, err)
	}
	opts := &webp.Options{Lossless: p.config.WebPLossless, Quality: p.config.WebPQuality}
	if err := webp.Encode(f, img, opts); err != nil {
		f.Close()
		removePartial(path)
		return apperrors.NewEncodeError(path, err)
	}
	if err := f.Close(); err != nil {
		removePartial(path)
		return apperrors.NewEncodeError(path, err)
	}
	return nil
}

// CreateDebugOverlay draws the chosen face, the crop box and the crop anchor
// on a copy of img.
func (p *Processor) CreateDebugOverlay(img image.Image, plan types.CropPlan) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}  // face box
	gold := color.NRGBA{255, 204, 0, 255} // crop box
	red := color.NRGBA{255, 0, 0, 255}    // crop anchor
	blue := color.NRGBA{0, 170, 255, 255} // image center
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	if plan.Face != nil {
		drawRect(nrgba, plan.Face.Rect(), green, stroke)
	}
	if plan.Box.Side > 0 {
		drawRect(nrgba, plan.Box.Rect(), gold, stroke)
	}

	drawHLine(nrgba, plan.CenterY, plan.CenterX-cross, plan.CenterX+cross, red)
	drawVLine(nrgba, plan.CenterX, plan.CenterY-cross, plan.CenterY+cross, red)

	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, blue)
	drawVLine(nrgba, ix, iy-6, iy+6, blue)

	return nrgba
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Canon()
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
