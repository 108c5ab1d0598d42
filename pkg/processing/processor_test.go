package processing

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/menta2k/facecrop/pkg/errors"
	"github.com/menta2k/facecrop/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.NRGBA{r, g, 128, 255})
		}
	}

	return img
}

func TestNewProcessor(t *testing.T) {
	p := NewProcessor()
	if p == nil {
		t.Fatal("NewProcessor() returned nil")
	}
	if p.config.JPEGQuality != 95 {
		t.Errorf("Expected JPEG quality 95, got %d", p.config.JPEGQuality)
	}
}

func TestSaveAndLoadPreservesFormat(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(80, 60)

	tests := []struct {
		name string
		mime string
	}{
		{"a.png", "image/png"},
		{"b.jpg", "image/jpeg"},
		{"c.JPEG", "image/jpeg"},
		{"d.bmp", "image/bmp"},
		{"e.tiff", "image/tiff"},
		{"f.gif", "image/gif"},
	}

	for _, test := range tests {
		path := filepath.Join(dir, test.name)
		if err := p.SaveImage(img, path); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", test.name, err)
		}

		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", test.name, err)
		}
		if loaded.Bounds().Dx() != 80 || loaded.Bounds().Dy() != 60 {
			t.Errorf("%s: expected 80x60, got %dx%d", test.name, loaded.Bounds().Dx(), loaded.Bounds().Dy())
		}

		// The container must match the extension, not just decode.
		if got := sniff(t, path); got != test.mime {
			t.Errorf("%s: stored as %s, expected %s", test.name, got, test.mime)
		}
	}
}

func TestSaveAndLoadWebP(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "w.webp")

	if err := p.SaveImage(createTestImage(64, 32), path); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if got := sniff(t, path); got != "image/webp" {
		t.Errorf("Expected image/webp, got %s", got)
	}

	loaded, err := p.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if loaded.Bounds().Dx() != 64 || loaded.Bounds().Dy() != 32 {
		t.Errorf("Expected 64x32, got %v", loaded.Bounds())
	}
}

func TestSaveImageUnsupportedFormat(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "out.xyz")

	err := p.SaveImage(createTestImage(10, 10), path)
	if !apperrors.IsKind(err, apperrors.KindEncode) {
		t.Errorf("Expected encode error, got %v", err)
	}
}

func TestSaveImageMissingDirectory(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "missing", "out.png")

	err := p.SaveImage(createTestImage(10, 10), path)
	if !apperrors.IsKind(err, apperrors.KindEncode) {
		t.Errorf("Expected encode error, got %v", err)
	}
}

func TestSaveImageEncodeFailureLeavesNoFile(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "empty.out.png")

	err := p.SaveImage(image.NewNRGBA(image.Rect(0, 0, 0, 0)), path)
	if !apperrors.IsKind(err, apperrors.KindEncode) {
		t.Fatalf("Expected encode error, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no partial file at %s, stat returned %v", path, err)
	}
}

func TestLoadImageErrors(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()

	text := filepath.Join(dir, "notes.jpg")
	if err := os.WriteFile(text, []byte("not an image at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	truncated := filepath.Join(dir, "truncated.png")
	if err := os.WriteFile(truncated, []byte("\x89PNG\r\n\x1a\n\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{text, truncated, filepath.Join(dir, "missing.png")} {
		_, err := p.LoadImage(path)
		if !apperrors.IsKind(err, apperrors.KindDecode) {
			t.Errorf("LoadImage(%s): expected decode error, got %v", filepath.Base(path), err)
		}
	}
}

func TestValidateImage(t *testing.T) {
	p := NewProcessor()

	if err := p.ValidateImage(createTestImage(5, 5)); err != nil {
		t.Errorf("Valid image should pass validation: %v", err)
	}

	empty := image.NewNRGBA(image.Rect(0, 0, 0, 10))
	if err := p.ValidateImage(empty); !apperrors.IsKind(err, apperrors.KindInvalidImage) {
		t.Errorf("Expected invalid image, got %v", err)
	}

	if err := p.ValidateImage(nil); !apperrors.IsKind(err, apperrors.KindInvalidImage) {
		t.Errorf("Expected invalid image for nil, got %v", err)
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(200, 100)
	face := types.FaceRegion{X: 120, Y: 20, W: 40, H: 40}
	plan := types.CropPlan{
		Box:       types.CropBox{Left: 90, Top: 0, Side: 100},
		CenterX:   140,
		CenterY:   40,
		Face:      &face,
		FaceFound: true,
	}

	overlay := p.CreateDebugOverlay(img, plan)

	if overlay.Bounds() != img.Bounds() {
		t.Fatalf("Expected overlay bounds %v, got %v", img.Bounds(), overlay.Bounds())
	}
	if got := overlay.NRGBAAt(120, 30); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("Expected face box edge at (120,30), got %v", got)
	}
	if got := overlay.NRGBAAt(90, 80); got != (color.NRGBA{255, 204, 0, 255}) {
		t.Errorf("Expected crop box edge at (90,80), got %v", got)
	}
	if src := img.(*image.NRGBA).NRGBAAt(10, 90); overlay.NRGBAAt(10, 90) != src {
		t.Error("Overlay changed a pixel outside every marker")
	}
}

func sniff(t *testing.T, path string) string {
	t.Helper()
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		t.Fatalf("mimetype detection failed: %v", err)
	}
	return mtype.String()
}
