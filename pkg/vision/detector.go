// Package vision finds the subject of an image without a model. It scores a
// saliency map built from local edges and luminance contrast and reports the
// strongest area as a normalized box, so it can stand in for a vision model
// backend when none is reachable.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cropkit/pkg/types"
)

// SubjectLabel is reported for a detected salient area
const SubjectLabel = "salient region"

// Config holds configuration for subject detection
type Config struct {
	EdgeWeight     float64
	ContrastWeight float64
	// MinScore is the lowest mean saliency a window needs to count.
	MinScore float64
	// Prominence is how far above the image mean a window must score.
	Prominence      float64
	MinSubjectRatio float64
	// Keep merges every window scoring at least Keep times the best one.
	Keep       float64
	MaxRegions int
	// WorkDim bounds the long side of the image the map is computed on.
	WorkDim int
}

// DefaultConfig returns the detection settings used by New
func DefaultConfig() Config {
	return Config{
		EdgeWeight:      0.5,
		ContrastWeight:  0.5,
		MinScore:        0.02,
		Prominence:      1.25,
		MinSubjectRatio: 0.02,
		Keep:            0.85,
		MaxRegions:      10,
		WorkDim:         256,
	}
}

// Client detects subjects from saliency. It satisfies client.VisionClient;
// the model name and prompt are ignored.
type Client struct {
	config Config
}

// New creates a Client with default configuration
func New() *Client {
	return &Client{config: DefaultConfig()}
}

// NewWithConfig creates a Client with custom configuration
func NewWithConfig(config Config) *Client {
	return &Client{config: config}
}

// Region is a rectangular area of interest in work-image pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

func (r Region) union(o Region) Region {
	x0 := min(r.X, o.X)
	y0 := min(r.Y, o.Y)
	x1 := max(r.X+r.Width, o.X+o.Width)
	y1 := max(r.Y+r.Height, o.Y+o.Height)
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Score: max(r.Score, o.Score)}
}

// saliency is a per-pixel map with a summed-area table for window means
type saliency struct {
	w, h     int
	mean     float64
	integral []float64
}

func (s *saliency) windowMean(x, y, w, h int) float64 {
	stride := s.w + 1
	sum := s.integral[(y+h)*stride+x+w] - s.integral[y*stride+x+w] -
		s.integral[(y+h)*stride+x] + s.integral[y*stride+x]
	return sum / float64(w*h)
}

// workImage downsizes img so the map stays cheap on large photos
func (c *Client) workImage(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if c.config.WorkDim > 0 && (b.Dx() > c.config.WorkDim || b.Dy() > c.config.WorkDim) {
		if b.Dx() >= b.Dy() {
			return imaging.Resize(img, c.config.WorkDim, 0, imaging.Box)
		}
		return imaging.Resize(img, 0, c.config.WorkDim, imaging.Box)
	}
	return imaging.Clone(img)
}

func (c *Client) saliencyMap(img *image.NRGBA) *saliency {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	lum := make([]float64, w*h)
	var total float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+3 : i+3]
			l := (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) / 255
			lum[y*w+x] = l
			total += l
		}
	}
	meanLum := total / float64(len(lum))

	const edgeNorm = 8 * 255 * 1.7320508075688772 // sqrt(3); math has no Sqrt3 constant
	values := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				ci := img.PixOffset(x, y)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						ni := img.PixOffset(x+dx, y+dy)
						dr := float64(img.Pix[ci]) - float64(img.Pix[ni])
						dg := float64(img.Pix[ci+1]) - float64(img.Pix[ni+1])
						db := float64(img.Pix[ci+2]) - float64(img.Pix[ni+2])
						edge += math.Sqrt(dr*dr + dg*dg + db*db)
					}
				}
				edge /= edgeNorm
			}
			values[y*w+x] = c.config.EdgeWeight*edge + c.config.ContrastWeight*math.Abs(lum[y*w+x]-meanLum)
		}
	}

	s := &saliency{w: w, h: h, integral: make([]float64, (w+1)*(h+1))}
	stride := w + 1
	var sum float64
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += values[y*w+x]
			s.integral[(y+1)*stride+x+1] = s.integral[y*stride+x+1] + row
		}
		sum += row
	}
	s.mean = sum / float64(w*h)
	return s
}

// DetectSubjects returns the most salient windows of img, best first.
// Coordinates are in the work image, see WorkSize.
func (c *Client) DetectSubjects(img image.Image) []Region {
	work := c.workImage(img)
	return c.detect(c.saliencyMap(work))
}

// WorkSize returns the size DetectSubjects measures img at
func (c *Client) WorkSize(img image.Image) (int, int) {
	b := c.workImage(img).Bounds()
	return b.Dx(), b.Dy()
}

func (c *Client) detect(s *saliency) []Region {
	short := min(s.w, s.h)
	minArea := float64(s.w*s.h) * c.config.MinSubjectRatio
	threshold := math.Max(c.config.MinScore, s.mean*c.config.Prominence)

	var regions []Region
	for _, div := range []int{5, 4, 3, 2} {
		size := short / div
		if size < 8 || float64(size*size) < minArea {
			continue
		}
		step := max(1, size/4)
		for y := 0; y+size <= s.h; y += step {
			for x := 0; x+size <= s.w; x += step {
				score := s.windowMean(x, y, size, size)
				if score > threshold {
					regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Score > regions[j].Score
	})
	if c.config.MaxRegions > 0 && len(regions) > c.config.MaxRegions {
		regions = regions[:c.config.MaxRegions]
	}
	return regions
}

// SubjectBox merges the strongest windows into one normalized box. ok is false
// when nothing in the image stands out.
func (c *Client) SubjectBox(img image.Image) (box types.Box, confidence float64, ok bool) {
	work := c.workImage(img)
	s := c.saliencyMap(work)
	regions := c.detect(s)
	if len(regions) == 0 {
		return types.Box{}, 0, false
	}

	best := regions[0]
	merged := best
	for _, r := range regions[1:] {
		if r.Score >= best.Score*c.config.Keep {
			merged = merged.union(r)
		}
	}

	box = types.Box{
		X: float64(merged.X) / float64(s.w),
		Y: float64(merged.Y) / float64(s.h),
		W: float64(merged.Width) / float64(s.w),
		H: float64(merged.Height) / float64(s.h),
	}
	confidence = 1 - s.mean/best.Score
	return box, math.Max(0, math.Min(1, confidence)), true
}

// DominantColors returns up to n of the most frequent colors inside region,
// quantized to 4 bits per channel. region is in img's coordinates.
func DominantColors(img image.Image, region image.Rectangle, n int) []color.NRGBA {
	region = region.Intersect(img.Bounds())
	counts := make(map[uint32]int)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			key := uint32(c.R&0xf0)<<16 | uint32(c.G&0xf0)<<8 | uint32(c.B&0xf0)
			counts[key]++
		}
	}

	keys := make([]uint32, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}

	colors := make([]color.NRGBA, len(keys))
	for i, k := range keys {
		colors[i] = color.NRGBA{uint8(k >> 16), uint8(k >> 8), uint8(k), 255}
	}
	return colors
}

// Hex formats c as #rrggbb
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func decode(imgB64 string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: empty image")
	}
	return img, nil
}

// AnalyzeImage locates the most salient area of the image
func (c *Client) AnalyzeImage(ctx context.Context, _, _, imgB64 string) (*types.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decode(imgB64)
	if err != nil {
		return nil, err
	}

	box, confidence, ok := c.SubjectBox(img)
	if !ok {
		return &types.AnalysisResult{
			Primary:     types.Primary{Label: "none", Cx: 0.5, Cy: 0.5},
			Description: "no salient area",
			Tags:        []string{"flat"},
		}, nil
	}

	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+int(box.X*float64(b.Dx())),
		b.Min.Y+int(box.Y*float64(b.Dy())),
		b.Min.X+int((box.X+box.W)*float64(b.Dx())),
		b.Min.Y+int((box.Y+box.H)*float64(b.Dy())),
	)
	var tags []string
	for _, col := range DominantColors(img, rect, 3) {
		tags = append(tags, Hex(col))
	}

	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      SubjectLabel,
			Confidence: confidence,
			Box:        box,
			Cx:         box.X + box.W/2,
			Cy:         box.Y + box.H/2,
		},
		Description: fmt.Sprintf("salient region covering %.0f%% of the frame", box.W*box.H*100),
		Tags:        tags,
	}, nil
}

// SimpleQuery describes the image by size and dominant colors
func (c *Client) SimpleQuery(ctx context.Context, _, _, imgB64 string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := decode(imgB64)
	if err != nil {
		return "", err
	}
	var hex []string
	for _, col := range DominantColors(img, img.Bounds(), 5) {
		hex = append(hex, Hex(col))
	}
	b := img.Bounds()
	return fmt.Sprintf("%dx%d image, dominant colors %s", b.Dx(), b.Dy(), strings.Join(hex, " ")), nil
}
