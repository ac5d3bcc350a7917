package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	hybridAuth "github.com/MrEthical07/hybridAuth"
	"github.com/MrEthical07/hybridAuth/conversion"
	"github.com/MrEthical07/hybridAuth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() hybridAuth.MetricsSnapshot
	AuditDropped() uint64
}

// sessionSource is implemented by the Engine. Sources without it skip the
// state and conversion gauges.
type sessionSource interface {
	State() hybridAuth.AuthState
	ConversionMetrics() conversion.Metrics
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *hybridAuth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any metrics source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render on every request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. It returns "" when metrics are disabled
// and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeSample(&b, "counter", def.Name, def.Help, strconv.FormatUint(snapshot.Counters[def.ID], 10))
	}

	for _, def := range internaldefs.HistogramDefs {
		nonCumulative := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(nonCumulative)
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	writeSample(&b, "counter", "hybridauth_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", strconv.FormatUint(dropped, 10))

	if s, ok := p.source.(sessionSource); ok {
		writeStateGauge(&b, s.State())
		cm := s.ConversionMetrics()
		writeSample(&b, "gauge", "hybridauth_conversion_rate", "Conversions per recorded gated intent.", strconv.FormatFloat(cm.ConversionRate, 'f', -1, 64))
		writeSample(&b, "gauge", "hybridauth_intent_attempts", "Gated intents recorded this session.", strconv.FormatUint(cm.TotalAttempts, 10))
	}

	return b.String()
}

func writeHeader(b *strings.Builder, kind, name, help string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, kind, name, help, value string) {
	writeHeader(b, kind, name, help)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

// writeStateGauge emits one series per state with 1 on the current one.
func writeStateGauge(b *strings.Builder, current hybridAuth.AuthState) {
	const name = "hybridauth_auth_state"
	writeHeader(b, "gauge", name, "Current merged authentication state.")
	for _, st := range []hybridAuth.AuthState{
		hybridAuth.StateAnonymous,
		hybridAuth.StateEmail,
		hybridAuth.StateWallet,
		hybridAuth.StateHybrid,
	} {
		v := "0"
		if st == current {
			v = "1"
		}
		b.WriteString(name)
		b.WriteString("{state=\"")
		b.WriteString(st.String())
		b.WriteString("\"} ")
		b.WriteString(v)
		b.WriteByte('\n')
	}
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, "histogram", name, help)

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	count := cumulative[len(cumulative)-1]
	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(count, 10))
	b.WriteByte('\n')

	// Bucket counters carry no durations, so the sum is always 0.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
