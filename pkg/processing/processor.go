package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// Supported output formats
const (
	FormatJPEG = "jpg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// DefaultTimeout bounds a remote image download
const DefaultTimeout = 30 * time.Second

// Processor loads, encodes and saves images for editing sessions
type Processor struct {
	client    *http.Client
	userAgent string
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: "cropkit/1.0",
	}
}

// NewProcessorWithClient creates a processor that downloads through client
func NewProcessorWithClient(client *http.Client) *Processor {
	p := NewProcessor()
	if client != nil {
		p.client = client
	}
	return p
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	slog.Debug("downloaded image", "url", imageURL, "bytes", len(data))

	return p.DecodeBytes(data)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if IsURL(source) {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// IsURL reports whether source names a remote image
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// DecodeBytes decodes image data, trying the registered decoders before WebP
func (p *Processor) DecodeBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// EncodeForModel downsizes img so its long side is at most maxDim and returns
// it base64 encoded for a vision model request
func (p *Processor) EncodeForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch NormalizeFormat(format) {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", fmt.Errorf("encode jpeg: %w", err)
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// NormalizeFormat maps a format name or file extension to one of the
// supported output formats, defaulting to JPEG
func NormalizeFormat(format string) string {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "png":
		return FormatPNG
	case "webp":
		return FormatWebP
	default:
		return FormatJPEG
	}
}

// FormatForPath picks the output format from a file name
func FormatForPath(path string) string {
	return NormalizeFormat(filepath.Ext(path))
}

// SaveImage saves an image to a file with the specified format and quality.
// Images with transparency should be saved as png or webp.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	var err error
	switch NormalizeFormat(format) {
	case FormatWebP:
		err = saveWebP(img, path, quality, lossless)
	case FormatPNG:
		err = imaging.Save(img, path)
	default:
		err = imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	slog.Debug("saved image", "path", path, "format", NormalizeFormat(format))
	return nil
}

func saveWebP(img image.Image, path string, quality int, lossless bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
	if err := webp.Encode(f, img, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Overlay colors
var (
	overlayFrame  = color.NRGBA{255, 204, 0, 255}
	overlayHandle = color.NRGBA{255, 255, 255, 255}
	overlayGrid   = color.NRGBA{255, 255, 255, 160}
	overlayShade  = color.NRGBA{0, 0, 0, 110}
)

// DrawOverlay renders the crop frame of an editing session on top of the
// displayed image: the area outside the region is shaded, the frame and its
// eight handles are drawn, and the region is split by a rule-of-thirds grid.
// region is in editor units; editor is the editor size the image fills.
func (p *Processor) DrawOverlay(img image.Image, region geometry.Rect, editor geometry.Size, handle float64) *image.NRGBA {
	out := imaging.Clone(img)
	w := out.Bounds().Dx()
	h := out.Bounds().Dy()
	if editor.Empty() || w == 0 || h == 0 {
		return out
	}

	r := region.Scale(float64(w)/editor.Width, float64(h)/editor.Height).Pixels()
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h))))

	shadeOutside(out, r, overlayShade)

	for i := 1; i < 3; i++ {
		gx := r.Min.X + r.Dx()*i/3
		gy := r.Min.Y + r.Dy()*i/3
		drawVLine(out, gx, r.Min.Y, r.Max.Y, overlayGrid)
		drawHLine(out, gy, r.Min.X, r.Max.X, overlayGrid)
	}

	drawFrame(out, r, overlayFrame, stroke)

	hs := int(math.Max(float64(stroke*3), handle*float64(w)/editor.Width/4))
	for _, c := range handleCenters(r) {
		fillRect(out, image.Rect(c.X-hs/2, c.Y-hs/2, c.X+hs-hs/2, c.Y+hs-hs/2), overlayHandle)
	}
	return out
}

func handleCenters(r image.Rectangle) []image.Point {
	mx := (r.Min.X + r.Max.X) / 2
	my := (r.Min.Y + r.Max.Y) / 2
	return []image.Point{
		{r.Min.X, r.Min.Y}, {mx, r.Min.Y}, {r.Max.X, r.Min.Y},
		{r.Min.X, my}, {r.Max.X, my},
		{r.Min.X, r.Max.Y}, {mx, r.Max.Y}, {r.Max.X, r.Max.Y},
	}
}

// Helper functions
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func shadeOutside(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if (image.Point{x, y}).In(r) {
				continue
			}
			blend(img, x, y, c)
		}
	}
}

func blend(img *image.NRGBA, x, y int, c color.NRGBA) {
	i := img.PixOffset(x, y)
	a := uint32(c.A)
	for k, v := range [3]uint8{c.R, c.G, c.B} {
		img.Pix[i+k] = uint8((uint32(img.Pix[i+k])*(255-a) + uint32(v)*a) / 255)
	}
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		drawHLine(img, y, r.Min.X, r.Max.X, c)
	}
}

func drawFrame(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
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
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
