package http

import (
	"strconv"

	"github.com/shopspring/decimal"

	"roomies/internal/core"
)

// Donut charts are drawn as stroked circles with r = 100/(2π), so one
// unit of dash length is one percent of the ring.
const (
	donutRadius = "15.91549430918954"
	donutStart  = 25.0
)

var chartPalette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2",
	"#59a14f", "#edc948", "#b07aa1", "#ff9da7",
}

type chartSlice struct {
	Label      string
	Value      string
	Percent    string
	Color      string
	DashArray  string
	DashOffset string
}

type donutChart struct {
	Title  string
	Total  string
	Radius string
	Slices []chartSlice
}

// Empty reports whether nothing has been paid yet.
func (c donutChart) Empty() bool { return len(c.Slices) == 0 }

type chartPoint struct {
	label string
	value decimal.Decimal
	text  string
}

// buildDonut lays out points clockwise from twelve o'clock. Zero values
// keep their legend entry but draw no arc.
func buildDonut(title, total string, points []chartPoint) donutChart {
	chart := donutChart{Title: title, Total: total, Radius: donutRadius}

	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(p.value)
	}
	if !sum.IsPositive() {
		return chart
	}

	hundred := decimal.NewFromInt(100)
	offset := donutStart
	for i, p := range points {
		pct, _ := p.value.Mul(hundred).Div(sum).Float64()
		chart.Slices = append(chart.Slices, chartSlice{
			Label:      p.label,
			Value:      p.text,
			Percent:    strconv.FormatFloat(pct, 'f', 1, 64),
			Color:      chartPalette[i%len(chartPalette)],
			DashArray:  formatFloat(pct) + " " + formatFloat(100-pct),
			DashOffset: formatFloat(offset),
		})
		offset -= pct
	}
	return chart
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// payerCharts turns payer statistics into the count and volume charts.
func (s *Server) payerCharts(stats []core.PayerStat) (count, volume donutChart) {
	var (
		countPoints  = make([]chartPoint, 0, len(stats))
		volumePoints = make([]chartPoint, 0, len(stats))
		totalCount   int
		totalVolume  = core.Zero
	)
	for _, st := range stats {
		countPoints = append(countPoints, chartPoint{
			label: st.Person.Name,
			value: decimal.NewFromInt(int64(st.Count)),
			text:  strconv.Itoa(st.Count),
		})
		volumePoints = append(volumePoints, chartPoint{
			label: st.Person.Name,
			value: st.Volume.Decimal(),
			text:  formatCurrency(s.currency, st.Volume),
		})
		totalCount += st.Count
		totalVolume = totalVolume.Add(st.Volume)
	}
	count = buildDonut("Transactions paid", strconv.Itoa(totalCount), countPoints)
	volume = buildDonut("Volume paid", formatCurrency(s.currency, totalVolume), volumePoints)
	return count, volume
}
