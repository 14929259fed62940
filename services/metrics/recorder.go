// Package metrics 将托管事件流转换为 Prometheus 指标
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weisyn/campaign-escrow-go/services/event"
)

// Sink 事件接收方（与 escrow.Sink 相同的方法集）
type Sink interface {
	Publish(r event.Record) event.Record
}

// Recorder 包装下游 Sink，在事件提交后更新指标
//
// 指标只由已提交的事件驱动，因此与事件日志回放得到的状态一致。
type Recorder struct {
	next Sink

	events    *prometheus.CounterVec
	raised    prometheus.Gauge
	held      prometheus.Gauge
	withdrawn prometheus.Counter
	refunded  prometheus.Counter
	phase     *prometheus.GaugeVec

	mu       sync.Mutex
	heldUnit uint64
}

// NewRecorder 创建 Recorder 并注册到 reg；next 为 nil 时事件原样返回
func NewRecorder(reg prometheus.Registerer, campaign string, next Sink) (*Recorder, error) {
	labels := prometheus.Labels{"campaign": campaign}
	r := &Recorder{
		next: next,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "campaign",
			Subsystem:   "escrow",
			Name:        "events_total",
			Help:        "Committed escrow events by name.",
			ConstLabels: labels,
		}, []string{"name"}),
		raised: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "campaign",
			Subsystem:   "escrow",
			Name:        "raised_units",
			Help:        "Total raised in native units.",
			ConstLabels: labels,
		}),
		held: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "campaign",
			Subsystem:   "escrow",
			Name:        "held_units",
			Help:        "Native units currently held in custody.",
			ConstLabels: labels,
		}),
		withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "campaign",
			Subsystem:   "escrow",
			Name:        "withdrawn_units_total",
			Help:        "Native units withdrawn by the operator.",
			ConstLabels: labels,
		}),
		refunded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "campaign",
			Subsystem:   "escrow",
			Name:        "refunded_units_total",
			Help:        "Native units refunded to contributors.",
			ConstLabels: labels,
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "campaign",
			Subsystem:   "escrow",
			Name:        "phase",
			Help:        "1 for the current phase, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"phase"}),
	}

	for _, c := range []prometheus.Collector{r.events, r.raised, r.held, r.withdrawn, r.refunded, r.phase} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	r.setPhase(event.PhaseFunding)
	return r, nil
}

// Publish 实现 escrow.Sink
func (r *Recorder) Publish(rec event.Record) event.Record {
	if r.next != nil {
		rec = r.next.Publish(rec)
	}
	r.observe(rec)
	return rec
}

func (r *Recorder) observe(rec event.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events.WithLabelValues(string(rec.Name)).Inc()

	switch rec.Name {
	case event.Contributed:
		r.raised.Add(float64(rec.Amount))
		r.heldUnit += rec.Amount
	case event.FundingClosed:
		r.raised.Set(float64(rec.TotalRaised))
		r.setPhase(event.PhaseSucceeded)
	case event.Finalized:
		r.raised.Set(float64(rec.TotalRaised))
		r.setPhase(rec.Outcome)
	case event.Withdrawn:
		r.withdrawn.Add(float64(rec.Amount))
		r.heldUnit -= min(rec.Amount, r.heldUnit)
	case event.Refunded:
		r.refunded.Add(float64(rec.Amount))
		r.heldUnit -= min(rec.Amount, r.heldUnit)
	}
	r.held.Set(float64(r.heldUnit))
}

func (r *Recorder) setPhase(current string) {
	for _, p := range []string{event.PhaseFunding, event.PhaseSucceeded, event.PhaseFailed} {
		v := 0.0
		if p == current {
			v = 1
		}
		r.phase.WithLabelValues(p).Set(v)
	}
}
