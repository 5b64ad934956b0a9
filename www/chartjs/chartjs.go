package chartjs

import (
	"math"
)

const ColorGreen = "#4caf50d4"
const ColorRed = "#f44336d4"
const ColorBlue = "#2196f3d4"

// NewStackedBarChart returns a bar chart with one stacked dataset per label
// in datasets, each holding one value per x label.
func NewStackedBarChart(title string, labels []string, datasets ...string) Chart {
	colors := []string{ColorGreen, ColorRed, ColorBlue}

	chart := Chart{
		Type: "bar",
		Data: ChartData{
			Labels:   labels,
			Datasets: make([]ChartDataset, len(datasets)),
		},
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Display: true},
				Title:  ChartTitle{Display: false},
			},
			Scales: map[string]ChartScale{
				"x": {
					Type:    "category",
					Display: true,
					Stacked: true,
				},
				"y": {
					Type:     "linear",
					Display:  true,
					Position: "left",
					Stacked:  true,
					Title:    ChartScaleTitle{Display: true, Text: ""}},
			},
		},
	}

	for i, label := range datasets {
		color := colors[i%len(colors)]
		chart.Data.Datasets[i] = ChartDataset{
			Label:           label,
			Data:            make([]*float64, len(labels)),
			BorderWidth:     1,
			BorderColor:     color,
			BackgroundColor: color,
		}
	}

	if title != "" {
		chart.Options.Plugins.Title = ChartTitle{Display: true, Text: title}
	}

	return chart
}

func (cs ChartScale) WithTitle(title string) ChartScale {
	cs.Title.Text = title
	return cs
}

func (cs ChartScale) WithMinAndMax(min, max float64) ChartScale {
	cs.Min = &min
	cs.Max = &max
	return cs
}

func FixedFloat64(num float64, precision int) *float64 {
	p := math.Pow(10, float64(precision))
	rounded := math.Round(num * p)
	result := rounded / p
	return &result
}
