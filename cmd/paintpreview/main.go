// Paint layer preview tool - renders the paint of every paintable collider
// in a config to PNG files, with optional noise overrides for quick iteration.
//
// Usage: go run ./cmd/paintpreview -out previews [-config config.yaml] [-seed 7]
//
//	[-splat 0.5,0.5,0.1,0,255,0,255]
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pthm-cable/inkstride/config"
	"github.com/pthm-cable/inkstride/scene"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outDir := flag.String("out", "paint_preview", "Output directory for PNG files")
	only := flag.String("collider", "", "Only render the collider with this name")
	upscale := flag.Int("upscale", 4, "Pixels per texel in the output image")
	seed := flag.Int64("seed", 0, "Override the noise seed (0 = keep)")
	noiseScale := flag.Float64("noise-scale", 0, "Override the noise frequency (0 = keep)")
	friendlyCut := flag.Float64("friendly-cut", -1, "Override the friendly cut (-1 = keep)")
	hostileCut := flag.Float64("hostile-cut", -1, "Override the hostile cut (-1 = keep)")
	var extra []config.SplatConfig
	flag.Func("splat", "Extra splat `u,v,radius,r,g,b,a` painted over each layer (repeatable)", func(v string) error {
		sp, err := parseSplat(v)
		if err != nil {
			return err
		}
		extra = append(extra, sp)
		return nil
	})
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	rendered := 0
	for i, cc := range cfg.Scene.Colliders {
		if cc.Paint == nil || (*only != "" && cc.Name != *only) {
			continue
		}
		pc := *cc.Paint
		if pc.Kind == "noise" {
			if *seed != 0 {
				pc.Seed = *seed
			}
			if *noiseScale > 0 {
				pc.Scale = *noiseScale
			}
			if *friendlyCut >= 0 {
				pc.FriendlyCut = *friendlyCut
			}
			if *hostileCut >= 0 {
				pc.HostileCut = *hostileCut
			}
		}

		pc.Splats = append(slices.Clip(pc.Splats), extra...)

		layer, err := scene.PaintFromConfig(pc)
		if err != nil {
			slog.Error("bad paint", "collider", cc.Name, "error", err)
			continue
		}

		name := cc.Name
		if name == "" {
			name = fmt.Sprintf("collider_%d", i)
		}
		path := filepath.Join(*outDir, strings.ReplaceAll(name, " ", "_")+".png")
		if err := writePNG(path, layer.Image(), *upscale); err != nil {
			slog.Error("failed to write preview", "collider", name, "error", err)
			continue
		}

		friendly, hostile := layer.Coverage()
		slog.Info("preview written",
			"collider", name,
			"path", path,
			"kind", pc.Kind,
			"splats", len(pc.Splats),
			"friendly", friendly,
			"hostile", hostile,
		)
		rendered++
	}

	if rendered == 0 {
		slog.Warn("no paintable colliders rendered", "collider", *only)
	}
}

// parseSplat parses "u,v,radius,r,g,b,a".
func parseSplat(v string) (config.SplatConfig, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 7 {
		return config.SplatConfig{}, fmt.Errorf("splat %q: want u,v,radius,r,g,b,a", v)
	}
	var nums [3]float64
	for i := range nums {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return config.SplatConfig{}, fmt.Errorf("splat %q: %w", v, err)
		}
		nums[i] = f
	}
	sp := config.SplatConfig{UV: [2]float64{nums[0], nums[1]}, Radius: nums[2]}
	for i := range sp.Color {
		c, err := strconv.ParseUint(strings.TrimSpace(parts[3+i]), 10, 8)
		if err != nil {
			return config.SplatConfig{}, fmt.Errorf("splat %q: %w", v, err)
		}
		sp.Color[i] = uint8(c)
	}
	return sp, nil
}

// writePNG writes src composited over a checkerboard so coverage is visible,
// scaled by upscale with nearest-neighbour sampling.
func writePNG(path string, src *image.RGBA, upscale int) error {
	if upscale < 1 {
		upscale = 1
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*upscale, b.Dy()*upscale))
	for y := 0; y < dst.Bounds().Dy(); y++ {
		for x := 0; x < dst.Bounds().Dx(); x++ {
			c := src.RGBAAt(b.Min.X+x/upscale, b.Min.Y+y/upscale)
			dst.SetRGBA(x, y, over(c, checker(x, y)))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func checker(x, y int) color.RGBA {
	if (x/8+y/8)%2 == 0 {
		return color.RGBA{R: 200, G: 200, B: 200, A: 255}
	}
	return color.RGBA{R: 150, G: 150, B: 150, A: 255}
}

// over composites a straight-alpha ink texel onto an opaque background.
func over(c, bg color.RGBA) color.RGBA {
	a := uint32(c.A)
	mix := func(f, b uint8) uint8 {
		return uint8((uint32(f)*a + uint32(b)*(255-a)) / 255)
	}
	return color.RGBA{R: mix(c.R, bg.R), G: mix(c.G, bg.G), B: mix(c.B, bg.B), A: 255}
}
