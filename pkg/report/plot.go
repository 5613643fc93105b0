package report

import (
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

const (
	pageTitle       = "Effort"
	chartWidth      = "100%"
	lineChartHeight = "520px"
	barChartHeight  = "420px"
	areaOpacity     = 0.45
	dataZoomEnd     = 100
	stackTotal      = "total"
)

// chartOpts holds the shared chart styling.
type chartOpts struct {
	text  string
	muted string
	grid  string
}

var defaultChartOpts = chartOpts{text: "#1f2328", muted: "#59636e", grid: "#d1d9e0"}

func (c chartOpts) init(height string) opts.Initialization {
	return opts.Initialization{Width: chartWidth, Height: height, PageTitle: pageTitle}
}

func (c chartOpts) title(title, subtitle string) opts.Title {
	return opts.Title{
		Title:         title,
		Subtitle:      subtitle,
		Left:          "center",
		TitleStyle:    &opts.TextStyle{Color: c.text},
		SubtitleStyle: &opts.TextStyle{Color: c.muted},
	}
}

func (c chartOpts) legend() opts.Legend {
	return opts.Legend{
		Show:      opts.Bool(true),
		Type:      "scroll",
		Top:       "12%",
		TextStyle: &opts.TextStyle{Color: c.muted},
	}
}

func (c chartOpts) xAxis(name string) opts.XAxis {
	return opts.XAxis{Name: name, AxisLabel: &opts.AxisLabel{Color: c.muted}}
}

func (c chartOpts) yAxis(name string) opts.YAxis {
	return opts.YAxis{
		Name:      name,
		AxisLabel: &opts.AxisLabel{Color: c.muted},
		SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: c.grid}},
	}
}

func (c chartOpts) gridOpts() opts.Grid {
	return opts.Grid{Top: "25%", Bottom: "15%", Left: "5%", Right: "5%", ContainLabel: opts.Bool(true)}
}

func writePlot(w io.Writer, rep *Report) error {
	page := components.NewPage()
	page.PageTitle = pageTitle

	page.AddCharts(curvesChart(rep), typesChart(rep), authorsChart(rep))

	err := page.Render(w)
	if err != nil {
		return renderError(FormatPlot, err)
	}

	return nil
}

// bucketAxis returns the ordered buckets present in any curve and their
// axis labels.
func bucketAxis(rep *Report) ([]int, []string) {
	seen := map[int]time.Time{}

	for _, curve := range rep.Curves {
		for _, point := range curve.Points {
			seen[point.Bucket] = point.Start
		}
	}

	buckets := make([]int, 0, len(seen))
	for bucket := range seen {
		buckets = append(buckets, bucket)
	}

	slices.Sort(buckets)

	labels := make([]string, len(buckets))

	for idx, bucket := range buckets {
		if rep.Granularity == timeline.PercentOfDuration.String() {
			labels[idx] = strconv.Itoa(bucket) + "%"

			continue
		}

		labels[idx] = seen[bucket].Format(time.DateOnly)
	}

	return buckets, labels
}

func curvesChart(rep *Report) *charts.Line {
	co := defaultChartOpts
	buckets, labels := bucketAxis(rep)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(co.init(lineChartHeight)),
		charts.WithTitleOpts(co.title("Activity over time", "Stacked "+rep.Level+"-level changes per "+rep.Granularity+" bucket")),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(co.legend()),
		charts.WithGridOpts(co.gridOpts()),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: dataZoomEnd}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(co.xAxis("")),
		charts.WithYAxisOpts(co.yAxis("Changes")),
	)
	line.SetXAxis(labels)

	for _, curve := range rep.Curves {
		byBucket := make(map[int]int, len(curve.Points))
		for _, point := range curve.Points {
			byBucket[point.Bucket] = point.Count
		}

		data := make([]opts.LineData, len(buckets))
		for idx, bucket := range buckets {
			data[idx] = opts.LineData{Value: byBucket[bucket]}
		}

		line.AddSeries(curve.Label, data,
			charts.WithLineChartOpts(opts.LineChart{Stack: stackTotal}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(areaOpacity)}),
		)
	}

	return line
}

func typesChart(rep *Report) *charts.Bar {
	co := defaultChartOpts

	labels := make([]string, len(rep.Workload.Types))
	ptw := make([]opts.BarData, len(rep.Workload.Types))
	pti := make([]opts.BarData, len(rep.Workload.Types))

	for idx, row := range rep.Workload.Types {
		labels[idx] = row.Type
		ptw[idx] = opts.BarData{Value: row.PTW}
		pti[idx] = opts.BarData{Value: row.PTI}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(co.init(barChartHeight)),
		charts.WithTitleOpts(co.title("Workload per activity type", "PW "+strconv.Itoa(rep.Workload.PW)+", PWS "+rep.Workload.PWS.String())),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(co.legend()),
		charts.WithGridOpts(co.gridOpts()),
		charts.WithXAxisOpts(co.xAxis("")),
		charts.WithYAxisOpts(co.yAxis("Count")),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Workload (PTW)", ptw)
	bar.AddSeries("Involvement (PTI)", pti)

	return bar
}

func authorsChart(rep *Report) *charts.Bar {
	co := defaultChartOpts

	authors := make([]string, len(rep.Workload.Authors))
	for idx, row := range rep.Workload.Authors {
		authors[idx] = row.Author
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(co.init(barChartHeight)),
		charts.WithTitleOpts(co.title("Workload per author", "Author Gini "+rep.Workload.AuthorGini.String())),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(co.legend()),
		charts.WithGridOpts(co.gridOpts()),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: dataZoomEnd}),
		charts.WithXAxisOpts(co.xAxis("")),
		charts.WithYAxisOpts(co.yAxis("Changes")),
	)
	bar.SetXAxis(authors)

	for _, row := range rep.Workload.Types {
		data := make([]opts.BarData, len(rep.Workload.Authors))
		for idx, author := range rep.Workload.Authors {
			data[idx] = opts.BarData{Value: author.Types[row.Type]}
		}

		bar.AddSeries(row.Type, data, charts.WithBarChartOpts(opts.BarChart{Stack: stackTotal}))
	}

	return bar
}
