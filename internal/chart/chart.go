// Package chart renders a day's progress as a PNG bar chart.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Image dimensions in pixels.
const (
	Width  = 640
	Height = 400
)

var (
	colorBackground = color.NRGBA{R: 0xFA, G: 0xFA, B: 0xFA, A: 0xFF}
	colorText       = color.NRGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xFF}
	colorAxis       = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xFF}
	colorWater      = color.NRGBA{R: 0x1E, G: 0x88, B: 0xE5, A: 0xFF}
	colorWaterGoal  = color.NRGBA{R: 0x90, G: 0xCA, B: 0xF9, A: 0xFF}
	colorConsumed   = color.NRGBA{R: 0xFB, G: 0x8C, B: 0x00, A: 0xFF}
	colorBurned     = color.NRGBA{R: 0x43, G: 0xA0, B: 0x47, A: 0xFF}
	colorCalGoal    = color.NRGBA{R: 0xBD, G: 0xBD, B: 0xBD, A: 0xFF}
)

type bar struct {
	label string
	value float64
	color color.Color
}

// Renderer draws progress charts. It is safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	title font.Face
	label font.Face
}

// NewRenderer parses the bundled Go font.
func NewRenderer() (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{
		title: truetype.NewFace(f, &truetype.Options{Size: 20}),
		label: truetype.NewFace(f, &truetype.Options{Size: 13}),
	}, nil
}

// Render draws water and calorie bars for rec and returns the encoded PNG.
func (r *Renderer) Render(rec *models.DailyRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("chart: nil record")
	}
	// truetype faces keep glyph caches that are not goroutine-safe.
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(Width, Height)
	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, Width, Height)
	dc.Fill()

	dc.SetFontFace(r.title)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(fmt.Sprintf("Progress for %s", rec.Date), Width/2, 28, 0.5, 0.5)

	dc.SetFontFace(r.label)
	r.drawGroup(dc, 40, "Water, ml", []bar{
		{"drunk", rec.LoggedWater, colorWater},
		{"goal", rec.WaterGoal, colorWaterGoal},
	})
	r.drawGroup(dc, Width/2+20, "Calories, kcal", []bar{
		{"eaten", rec.LoggedCalories, colorConsumed},
		{"burned", rec.BurnedCalories, colorBurned},
		{"goal", rec.CalorieGoal, colorCalGoal},
	})

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// drawGroup draws one titled group of bars in a panel starting at x.
func (r *Renderer) drawGroup(dc *gg.Context, x float64, title string, bars []bar) {
	const (
		panelW = Width/2 - 60
		top    = 80.0
		bottom = Height - 60.0
	)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(title, x+panelW/2, top-20, 0.5, 0.5)

	maxV := 0.0
	for _, b := range bars {
		maxV = max(maxV, b.value)
	}
	if maxV <= 0 {
		maxV = 1
	}

	dc.SetColor(colorAxis)
	dc.SetLineWidth(1)
	dc.DrawLine(x, bottom, x+panelW, bottom)
	dc.Stroke()

	slot := float64(panelW) / float64(len(bars))
	barW := slot * 0.6
	for i, b := range bars {
		h := (bottom - top) * b.value / maxV
		bx := x + slot*float64(i) + (slot-barW)/2
		dc.SetColor(b.color)
		dc.DrawRectangle(bx, bottom-h, barW, h)
		dc.Fill()

		dc.SetColor(colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", b.value), bx+barW/2, bottom-h-10, 0.5, 0.5)
		dc.DrawStringAnchored(b.label, bx+barW/2, bottom+16, 0.5, 0.5)
	}
}
