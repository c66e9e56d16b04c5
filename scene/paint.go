package scene

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/inkstride/config"
)

// PaintLayer is the ink texture of a paintable surface.
// Red is friendly ink, green is hostile ink, alpha is coverage.
type PaintLayer struct {
	img *image.RGBA
}

// NewPaintLayer creates a layer filled with base.
func NewPaintLayer(width, height int, base color.RGBA) *PaintLayer {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	l := &PaintLayer{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	l.Fill(base)
	return l
}

// SolidPaint creates a layer covered by one color.
func SolidPaint(width, height int, c color.RGBA) *PaintLayer {
	return NewPaintLayer(width, height, c)
}

// NoiseParams controls procedural ink blotches.
type NoiseParams struct {
	Seed        int64
	Scale       float64 // noise frequency per texel
	FriendlyCut float64 // values above lay friendly ink
	HostileCut  float64 // values below lay hostile ink
	Alpha       uint8
	Base        color.RGBA
}

// NoisePaint creates a layer of friendly and hostile blotches from simplex noise.
func NoisePaint(width, height int, p NoiseParams) *PaintLayer {
	l := NewPaintLayer(width, height, p.Base)
	noise := opensimplex.NewNormalized(p.Seed)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := noise.Eval2(float64(x)*p.Scale, float64(y)*p.Scale)
			switch {
			case v > p.FriendlyCut:
				l.img.SetRGBA(x, y, color.RGBA{R: 255, A: p.Alpha})
			case v < p.HostileCut:
				l.img.SetRGBA(x, y, color.RGBA{G: 255, A: p.Alpha})
			}
		}
	}
	return l
}

// PaintFromConfig builds a layer from its YAML description, then paints its
// splats in order.
func PaintFromConfig(pc config.PaintConfig) (*PaintLayer, error) {
	if pc.Width < 1 || pc.Height < 1 {
		return nil, fmt.Errorf("paint size %dx%d: must be positive", pc.Width, pc.Height)
	}
	var layer *PaintLayer
	switch pc.Kind {
	case "solid", "":
		layer = SolidPaint(pc.Width, pc.Height, rgba(pc.Color))
	case "noise":
		layer = NoisePaint(pc.Width, pc.Height, NoiseParams{
			Seed:        pc.Seed,
			Scale:       pc.Scale,
			FriendlyCut: pc.FriendlyCut,
			HostileCut:  pc.HostileCut,
			Alpha:       pc.Alpha,
			Base:        rgba(pc.Base),
		})
	default:
		return nil, fmt.Errorf("unknown paint kind %q", pc.Kind)
	}
	for i, sp := range pc.Splats {
		if sp.Radius <= 0 {
			return nil, fmt.Errorf("splat %d: radius must be positive", i)
		}
		layer.Splat(r2.Vec{X: sp.UV[0], Y: sp.UV[1]}, sp.Radius, rgba(sp.Color))
	}
	return layer, nil
}

func rgba(c [4]uint8) color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// Fill sets every texel to c.
func (l *PaintLayer) Fill(c color.RGBA) {
	b := l.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l.img.SetRGBA(x, y, c)
		}
	}
}

// Splat paints a disc of color c centered at uv with radius in UV units.
func (l *PaintLayer) Splat(uv r2.Vec, radius float64, c color.RGBA) {
	b := l.img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	cx, cy := uv.X*(w-1), uv.Y*(h-1)
	rx, ry := radius*(w-1), radius*(h-1)
	for y := int(math.Floor(cy - ry)); y <= int(math.Ceil(cy+ry)); y++ {
		for x := int(math.Floor(cx - rx)); x <= int(math.Ceil(cx+rx)); x++ {
			if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
				continue
			}
			dx, dy := (float64(x)-cx)/math.Max(rx, 1), (float64(y)-cy)/math.Max(ry, 1)
			if dx*dx+dy*dy <= 1 {
				l.img.SetRGBA(x, y, c)
			}
		}
	}
}

// Sample returns the texel nearest to uv. UV outside [0,1] is clamped.
func (l *PaintLayer) Sample(uv r2.Vec) color.RGBA {
	b := l.img.Bounds()
	u := math.Max(0, math.Min(1, uv.X))
	v := math.Max(0, math.Min(1, uv.Y))
	x := int(math.Round(u * float64(b.Dx()-1)))
	y := int(math.Round(v * float64(b.Dy()-1)))
	return l.img.RGBAAt(x, y)
}

// Coverage returns the fraction of texels with friendly and hostile ink dominant.
func (l *PaintLayer) Coverage() (friendly, hostile float64) {
	b := l.img.Bounds()
	total := float64(b.Dx() * b.Dy())
	var f, h int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := l.img.RGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			if c.R > c.G {
				f++
			} else if c.G > c.R {
				h++
			}
		}
	}
	return float64(f) / total, float64(h) / total
}

// Image exposes the backing image.
func (l *PaintLayer) Image() *image.RGBA {
	return l.img
}
