package rtcore

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/achilleasa/rtcore/engine"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	intersectKind = "intersect"
	occludedKind  = "occluded"
)

// Per device query counters.
type queryStats struct {
	registry *prometheus.Registry

	calls *prometheus.CounterVec
	lanes *prometheus.CounterVec
}

func newQueryStats(deviceID string) *queryStats {
	labels := prometheus.Labels{"device": deviceID}
	s := &queryStats{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rtcore",
			Name:        "query_calls_total",
			Help:        "Number of intersect and occluded calls by packet width.",
			ConstLabels: labels,
		}, []string{"kind", "width"}),
		lanes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rtcore",
			Name:        "query_lanes_total",
			Help:        "Number of attempted and active packet lanes.",
			ConstLabels: labels,
		}, []string{"kind", "width", "lanes"}),
	}
	s.registry.MustRegister(s.calls, s.lanes)
	return s
}

func (s *queryStats) record(kind string, w engine.Width, active int) {
	width := strconv.Itoa(int(w))
	s.calls.WithLabelValues(kind, width).Inc()
	s.lanes.WithLabelValues(kind, width, "attempted").Add(float64(w))
	s.lanes.WithLabelValues(kind, width, "active").Add(float64(active))
}

func (s *queryStats) reset() {
	s.calls.Reset()
	s.lanes.Reset()
}

// Render the counters and the last build statistics as tables.
func (s *queryStats) render(build *engine.BuildStats) (string, error) {
	families, err := s.registry.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Counter", "Labels", "Value"})
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			table.Append([]string{
				family.GetName(),
				formatLabels(metric.GetLabel()),
				fmt.Sprintf("%.0f", metric.GetCounter().GetValue()),
			})
		}
	}
	table.Render()

	if build != nil {
		buf.WriteString(renderBuildStats(*build))
	}
	return buf.String(), nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair.GetName() == "device" {
			continue
		}
		parts = append(parts, pair.GetName()+"="+pair.GetValue())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func renderBuildStats(stats engine.BuildStats) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Thread", "Geometries", "Primitives", "% of work", "Nodes", "Build time"})
	for _, stat := range stats.Threads {
		table.Append([]string{
			fmt.Sprintf("%d", stat.ThreadID),
			fmt.Sprintf("%d", stat.Geometries),
			fmt.Sprintf("%d", stat.Primitives),
			fmt.Sprintf("%02.1f %%", stat.WorkPercent),
			fmt.Sprintf("%d", stat.Nodes),
			stat.BuildTime.String(),
		})
	}
	table.SetFooter([]string{"", "", fmt.Sprintf("%d", stats.Primitives), fmt.Sprintf("%d bytes", stats.Bytes), fmt.Sprintf("%d", stats.TopLevelNodes), stats.BuildTime.String()})
	table.Render()
	return buf.String()
}
