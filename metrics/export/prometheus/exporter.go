package prometheus

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	erpclient "github.com/anujChoudhary-1712/erp-fn-sub001"
	"github.com/anujChoudhary-1712/erp-fn-sub001/metrics/export/internaldefs"
)

// Source is what the exporter reads; *erpclient.Client satisfies it.
type Source interface {
	MetricsSnapshot() erpclient.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders a Source on demand.
type Exporter struct {
	source Source
	labels string
}

// NewExporter returns an exporter for source. labels are attached to every series.
func NewExporter(source Source, labels map[string]string) *Exporter {
	return &Exporter{source: source, labels: formatLabels(labels)}
}

// Handler serves Render in the text exposition format.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render returns the current exposition. Disabled metrics render as an empty string.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	for _, def := range internaldefs.CounterDefs {
		e.counter(&b, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		if raw, ok := snap.Histograms[def.ID]; ok {
			e.histogram(&b, def.Name, def.Help, internaldefs.Cumulative(raw))
		}
	}
	e.counter(&b, internaldefs.AuditDroppedName, "Audit events dropped on a full queue.", dropped)
	return b.String()
}

func (e *Exporter) counter(b *strings.Builder, name, help string, v uint64) {
	header(b, name, help, "counter")
	b.WriteString(name)
	b.WriteString(e.series(""))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(v, 10))
	b.WriteByte('\n')
}

func (e *Exporter) histogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	header(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket")
		b.WriteString(e.series(`le="` + le + `"`))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}
	b.WriteString(name)
	b.WriteString("_count")
	b.WriteString(e.series(""))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')
}

// series builds the {...} label block, or "" when there are no labels.
func (e *Exporter) series(extra string) string {
	switch {
	case e.labels == "" && extra == "":
		return ""
	case e.labels == "":
		return "{" + extra + "}"
	case extra == "":
		return "{" + e.labels + "}"
	default:
		return "{" + e.labels + "," + extra + "}"
	}
}

func header(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+`="`+escapeLabel(labels[k])+`"`)
	}
	return strings.Join(parts, ",")
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func escapeLabel(s string) string {
	s = escapeHelp(s)
	return strings.ReplaceAll(s, `"`, `\"`)
}
