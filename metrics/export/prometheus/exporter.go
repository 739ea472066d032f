package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/metrics/export/internaldefs"
)

// DefaultStateTimeout bounds the store read made on each scrape.
const DefaultStateTimeout = 2 * time.Second

// Exporter renders engine counters and store gauges in the Prometheus text
// format.
type Exporter struct {
	source       internaldefs.Source
	stateTimeout time.Duration
}

// New reads from engine on every scrape.
func New(engine *adminauth.Engine) *Exporter {
	return NewFromSource(engine)
}

// NewFromSource reads from any Source.
func NewFromSource(source internaldefs.Source) *Exporter {
	return &Exporter{source: source, stateTimeout: DefaultStateTimeout}
}

// Handler renders on each request; the store read uses the request context.
func (x *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(x.Render(r.Context())))
	})
}

// Render returns the exposition text. Counter families are omitted while
// engine metrics are disabled; the store gauges are always present, with
// adminauth_state_up 0 when the store could not be read.
func (x *Exporter) Render(ctx context.Context) string {
	if x == nil || x.source == nil {
		return ""
	}

	var w textWriter
	w.b.Grow(8192)
	x.renderCounters(&w)
	x.renderState(ctx, &w)
	return w.b.String()
}

func (x *Exporter) renderCounters(w *textWriter) {
	snapshot := x.source.MetricsSnapshot()
	dropped := x.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, def := range internaldefs.CounterDefs {
		w.family(def.Name, def.Help, "counter")
		w.sample(def.Name, "", strconv.FormatUint(snapshot.Counters[def.ID], 10))
	}
	for _, def := range internaldefs.HistogramDefs {
		w.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])))
	}
	w.family(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", strconv.FormatUint(dropped, 10))
}

func (x *Exporter) renderState(ctx context.Context, w *textWriter) {
	if x.stateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.stateTimeout)
		defer cancel()
	}

	state, err := x.source.StateSnapshot(ctx)
	w.family(internaldefs.StateUpName, internaldefs.StateUpHelp, "gauge")
	if err != nil {
		w.sample(internaldefs.StateUpName, "", "0")
		return
	}
	w.sample(internaldefs.StateUpName, "", "1")

	w.family(internaldefs.RequestsName, internaldefs.RequestsHelp, "gauge")
	for _, status := range internaldefs.RequestStatuses {
		w.sample(internaldefs.RequestsName, `status="`+string(status)+`"`, strconv.FormatInt(state.Requests[status], 10))
	}
	w.family(internaldefs.ActiveSessionsName, internaldefs.ActiveSessionsHelp, "gauge")
	w.sample(internaldefs.ActiveSessionsName, "", strconv.FormatInt(state.ActiveSessions, 10))
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) family(name, help, kind string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

// sample writes one line; labels is the inner text of {...} or "".
func (w *textWriter) sample(name, labels, value string) {
	w.b.WriteString(name)
	if labels != "" {
		w.b.WriteString("{" + labels + "}")
	}
	w.b.WriteString(" " + value + "\n")
}

func (w *textWriter) histogram(name, help string, cumulative [8]uint64) {
	w.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", `le="`+le+`"`, strconv.FormatUint(cumulative[i], 10))
	}
	w.sample(name+"_count", "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	// Snapshots carry bucket counts only.
	w.sample(name+"_sum", "", "0")
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
