// Package chart renders a dark-themed candlestick + volume + SMA(20) chart
// for a symbol's recent kline history, as the pure collaborator function
// the consumer calls off its hot path.
package chart

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"trading-systemv1/internal/model"
)

const (
	smaWindow   = 20
	widthPoints = 1000
	heightPrice = 520
	heightVol   = 160

	backgroundHex = "#282D38"
	upHex         = "#0C967F"
	downHex       = "#F23645"
)

// Request carries everything Render needs to build one chart.
type Request struct {
	Symbol      string
	Candles     []model.Candle
	StartPrice  float64
	FinalPrice  float64
	PctChange   float64
}

// Render draws the chart and returns PNG-encoded bytes. It is a pure
// function of its input and performs no I/O; callers (the consumer, via
// Pool) are responsible for keeping it off the evaluation hot path.
func Render(req Request) ([]byte, error) {
	return render(req)
}

func render(req Request) ([]byte, error) {
	if len(req.Candles) == 0 {
		return nil, fmt.Errorf("chart: no candles for %s", req.Symbol)
	}

	bg := hexColor(backgroundHex)
	up := hexColor(upHex)
	down := hexColor(downHex)

	pricePlot := plot.New()
	pricePlot.BackgroundColor = bg
	pricePlot.Title.Text = fmt.Sprintf("%s  %s → %s  (%+.2f%%)",
		req.Symbol, FormatPrice(req.StartPrice, DefaultSignificantDigits),
		FormatPrice(req.FinalPrice, DefaultSignificantDigits), req.PctChange)
	pricePlot.Title.TextStyle.Color = color.White
	pricePlot.X.Tick.Label.Color = color.White
	pricePlot.Y.Tick.Label.Color = color.White
	pricePlot.Y.Tick.Marker = priceTicker{}

	candles := newCandlestickPlotter(req.Candles, up, down)
	pricePlot.Add(candles)

	sma := SMA(req.Candles, smaWindow)
	smaLine := smaLinePlotter(sma)
	if smaLine.Len() > 0 {
		line, err := plotter.NewLine(smaLine)
		if err == nil {
			line.Color = color.RGBA{R: 0xE8, G: 0xC2, B: 0x44, A: 0xFF}
			line.Width = vg.Points(1.2)
			pricePlot.Add(line)
		}
	}

	volPlot := plot.New()
	volPlot.BackgroundColor = bg
	volPlot.X.Tick.Label.Color = color.White
	volPlot.Y.Tick.Label.Color = color.White
	volBars, err := plotter.NewBarChart(volumeValues(req.Candles), vg.Points(float64(widthPoints)/float64(len(req.Candles))*0.8))
	if err == nil {
		volBars.Color = up
		volPlot.Add(volBars)
	}

	img := vgimg.New(vg.Points(widthPoints), vg.Points(heightPrice+heightVol))
	dc := draw.New(img)

	top := draw.Crop(dc, 0, 0, 0, -vg.Points(heightVol))
	bottom := draw.Crop(dc, 0, 0, vg.Points(heightPrice), 0)

	pricePlot.Draw(top)
	volPlot.Draw(bottom)

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func hexColor(hex string) color.Color {
	var r, g, b uint8
	fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

func volumeValues(candles []model.Candle) plotter.Values {
	vals := make(plotter.Values, len(candles))
	for i, c := range candles {
		vals[i] = c.BaseVolume
	}
	return vals
}

// priceTicker implements plot.Ticker, rendering Y-axis labels through
// FormatPrice so low-priced symbols compress their leading-zero run
// instead of wasting the label width on zeros.
type priceTicker struct{}

func (priceTicker) Ticks(min, max float64) []plot.Tick {
	const n = 6
	ticks := make([]plot.Tick, 0, n)
	step := (max - min) / float64(n-1)
	if step <= 0 {
		return []plot.Tick{{Value: min, Label: FormatPrice(min, DefaultSignificantDigits)}}
	}
	for i := 0; i < n; i++ {
		v := min + float64(i)*step
		ticks = append(ticks, plot.Tick{Value: v, Label: FormatPrice(v, DefaultSignificantDigits)})
	}
	return ticks
}

// smaLinePlotter adapts a []float64 (with leading zero-valued warm-up
// entries) into plotter.XYs, skipping the warm-up region entirely so the
// line only begins once the average is meaningful.
func smaLinePlotter(sma []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(sma))
	for i, v := range sma {
		if i < smaWindow-1 {
			continue
		}
		pts = append(pts, struct{ X, Y float64 }{X: float64(i), Y: v})
	}
	return pts
}

// candlestickPlotter draws OHLC candle bodies and wicks directly onto the
// canvas. gonum/plot has no built-in candlestick plotter; implementing
// plot.Plotter (and the optional plot.DataRanger) directly is the
// documented way to add a custom glyph type.
type candlestickPlotter struct {
	candles []model.Candle
	up      color.Color
	down    color.Color
}

func newCandlestickPlotter(candles []model.Candle, up, down color.Color) *candlestickPlotter {
	return &candlestickPlotter{candles: candles, up: up, down: down}
}

func (cp *candlestickPlotter) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)

	bodyWidth := vg.Points(widthPoints / float64(len(cp.candles)+1) * 0.6)

	for i, candle := range cp.candles {
		x := trX(float64(i))
		yHigh := trY(candle.High)
		yLow := trY(candle.Low)
		yOpen := trY(candle.Open)
		yClose := trY(candle.Close)

		col := cp.up
		if candle.Close < candle.Open {
			col = cp.down
		}

		wickStyle := draw.LineStyle{Color: col, Width: vg.Points(1)}
		c.StrokeLine2(wickStyle, x, yHigh, x, yLow)

		top, bottom := yOpen, yClose
		if yClose > yOpen {
			top, bottom = yClose, yOpen
		}
		left, right := x-bodyWidth/2, x+bodyWidth/2
		body := []vg.Point{
			{X: left, Y: bottom},
			{X: right, Y: bottom},
			{X: right, Y: top},
			{X: left, Y: top},
		}
		c.FillPolygon(col, body)
	}
}

func (cp *candlestickPlotter) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = 0, float64(len(cp.candles)-1)
	for i, candle := range cp.candles {
		if i == 0 || candle.Low < ymin {
			ymin = candle.Low
		}
		if i == 0 || candle.High > ymax {
			ymax = candle.High
		}
	}
	return xmin, xmax, ymin, ymax
}
