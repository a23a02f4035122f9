package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stratlab/internal/metrics"
	"stratlab/internal/sim"
	"stratlab/internal/signal"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorEquity        = "#3b82f6"
	colorDrawdown      = "#f87171"
	colorBuy           = "#34d399"
	colorSell          = "#fb7185"

	chartWidthPx  = 1400
	chartHeightPx = 480
)

// Input 报告渲染所需的评测产物。
type Input struct {
	RunID       string
	Submission  string
	InitialCash float64
	Result      *sim.Result
	Summary     metrics.Summary
	Score       metrics.Score
}

// Render 把资金曲线、回撤曲线和成交分布渲染成单页 HTML。
func Render(w io.Writer, input Input) error {
	if input.Result == nil {
		return fmt.Errorf("result required for report")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = fmt.Sprintf("run %s", input.RunID)

	xAxis := buildXAxis(input.Result.EquityCurve)
	page.AddCharts(
		buildEquityChart(input, xAxis),
		buildDrawdownChart(input, xAxis),
	)
	if trades := buildTradeChart(input.Result.TradeLog); trades != nil {
		page.AddCharts(trades)
	}
	return page.Render(w)
}

// RenderFile 渲染到文件，目录不存在时自动创建。
func RenderFile(path string, input Input) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Render(f, input)
}

func buildXAxis(equity []sim.EquityPoint) []string {
	x := make([]string, len(equity))
	for i, p := range equity {
		x[i] = time.UnixMilli(p.Timestamp).UTC().Format("01-02 15:04")
	}
	return x
}

func buildEquityChart(input Input, xAxis []string) *charts.Line {
	line := charts.NewLine()
	subtitle := fmt.Sprintf("return %.2f%% | sharpe %.2f | maxDD %.2f%% | score %.1f",
		input.Summary.TotalReturnPct, input.Summary.SharpeRatio, input.Summary.MaxDrawdownPct, input.Score.Total)
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("Equity %s", strings.TrimSpace(input.Submission)),
			Subtitle:      subtitle,
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	data := make([]opts.LineData, len(input.Result.EquityCurve))
	for i, p := range input.Result.EquityCurve {
		data[i] = opts.LineData{Value: round(p.Value, 2)}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Portfolio Value", data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	return line
}

func buildDrawdownChart(input Input, xAxis []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx/2),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	peak := input.InitialCash
	data := make([]opts.LineData, len(input.Result.EquityCurve))
	for i, p := range input.Result.EquityCurve {
		if p.Value > peak {
			peak = p.Value
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - p.Value) / peak * 100
		}
		data[i] = opts.LineData{Value: round(dd, 3)}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Drawdown", data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.25)}),
	)
	return line
}

func buildTradeChart(trades []sim.TradeLogEntry) *charts.Bar {
	if len(trades) == 0 {
		return nil
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx/2),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Trade Notional", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	xAxis := make([]string, len(trades))
	data := make([]opts.BarData, len(trades))
	for i, tr := range trades {
		xAxis[i] = fmt.Sprintf("%s %s", time.UnixMilli(tr.Timestamp).UTC().Format("01-02 15:04"), tr.Symbol)
		color := colorBuy
		notional := tr.Shares * tr.Price
		if tr.Action == signal.ActionSell {
			color = colorSell
			notional = -notional
		}
		data[i] = opts.BarData{
			Value:     round(notional, 2),
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.7)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Notional", data)
	return bar
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
