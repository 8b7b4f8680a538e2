// Package graphing renders HTML charts from exported frame records.
package graphing

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/components"

	"FrameTimeline/pkg/exporting"
	"FrameTimeline/pkg/utils"
)

// Generator builds one HTML page of charts from a record file or an
// in-memory record set.
type Generator struct {
	outputDir string
	session   string
}

func NewGenerator(outputDir, session string) (*Generator, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	return &Generator{outputDir: outputDir, session: session}, nil
}

// GenerateFromFile loads records from path and renders the page.
func (g *Generator) GenerateFromFile(path string) error {
	records, err := exporting.LoadRecords(path)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	return g.GenerateFromRecords(records)
}

type deltaSeries struct {
	values []float64
}

// GenerateFromRecords renders delta line charts and the jank-cause bar chart
// into <outputDir>/frametimeline.html.
func (g *Generator) GenerateFromRecords(records []exporting.Record) error {
	if len(records) < 2 {
		return fmt.Errorf("need at least 2 records to generate graphs, got %d", len(records))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return utils.ToInt64(records[i]["timestamp_ns"]) < utils.ToInt64(records[j]["timestamp_ns"])
	})

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamps := make([]int64, len(records))
	presentSeries := make(map[string]*deltaSeries)
	deadlineSeries := make(map[string]*deltaSeries)
	jankCounts := make(map[string]int)
	var jankOrder []string

	for i, r := range records {
		timestamps[i] = utils.ToInt64(r["timestamp_ns"])

		layer := utils.ToString(r["layer"])
		if layer == "" {
			layer = utils.ToString(r["kind"])
		}
		appendDelta(presentSeries, layer, i, len(records), utils.ToFloat64(r["present_delta_ns"])/1e6)
		appendDelta(deadlineSeries, layer, i, len(records), utils.ToFloat64(r["deadline_delta_ns"])/1e6)

		for _, cause := range strings.Split(utils.ToString(r["jank"]), ", ") {
			if cause == "" || cause == "None" {
				continue
			}
			if _, seen := jankCounts[cause]; !seen {
				jankOrder = append(jankOrder, cause)
			}
			jankCounts[cause]++
		}
	}
	sort.Strings(jankOrder)

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("FrameTimeline - %s", g.session)
	page.AddCharts(
		createDeltaChart("Present Delta", presentSeries, timestamps),
		createDeltaChart("Deadline Delta", deadlineSeries, timestamps),
		createJankBarChart(jankCounts, jankOrder),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}

	out := filepath.Join(g.outputDir, "frametimeline.html")
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

// appendDelta keeps every series aligned with the x axis by padding with the
// previous value for records belonging to other layers.
func appendDelta(series map[string]*deltaSeries, layer string, idx, total int, v float64) {
	s, ok := series[layer]
	if !ok {
		s = &deltaSeries{values: make([]float64, 0, total)}
		series[layer] = s
	}
	for len(s.values) < idx {
		var prev float64
		if len(s.values) > 0 {
			prev = s.values[len(s.values)-1]
		}
		s.values = append(s.values, prev)
	}
	s.values = append(s.values, v)
}

// GenerateGraphsFromFile is a convenience wrapper for the graph command.
func GenerateGraphsFromFile(inputPath, outputDir, session string) error {
	gen, err := NewGenerator(outputDir, session)
	if err != nil {
		return err
	}
	return gen.GenerateFromFile(inputPath)
}
