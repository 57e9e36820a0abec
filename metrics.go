package kvsafe

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Label values
const (
	lblMode    = "mode"
	lblOutcome = "outcome"

	modeRead  = "read"
	modeWrite = "write"

	outcomeCommit = "commit"
	outcomeAbort  = "abort"
)

// metrics holds the collectors of one Env. They carry the env path as a
// constant label so several environments can share a registerer.
type metrics struct {
	reg prometheus.Registerer

	txnBegin        *prometheus.CounterVec
	txnEnd          *prometheus.CounterVec
	liveTxns        *prometheus.GaugeVec
	writerConflicts prometheus.Counter
	openCursors     prometheus.Gauge
}

func newMetrics(path string) *metrics {
	labels := prometheus.Labels{"path": path}
	return &metrics{
		txnBegin: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "kvsafe",
				Subsystem:   "txn",
				Name:        "begin_total",
				Help:        "Counter of transactions begun.",
				ConstLabels: labels,
			}, []string{lblMode}),
		txnEnd: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "kvsafe",
				Subsystem:   "txn",
				Name:        "end_total",
				Help:        "Counter of transactions ended, by outcome.",
				ConstLabels: labels,
			}, []string{lblMode, lblOutcome}),
		liveTxns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "kvsafe",
				Subsystem:   "txn",
				Name:        "live",
				Help:        "Number of live transactions.",
				ConstLabels: labels,
			}, []string{lblMode}),
		writerConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "kvsafe",
				Subsystem:   "txn",
				Name:        "writer_conflicts_total",
				Help:        "Counter of write transactions refused because the writer slot was taken.",
				ConstLabels: labels,
			}),
		openCursors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   "kvsafe",
				Subsystem:   "cursor",
				Name:        "open",
				Help:        "Number of open cursors.",
				ConstLabels: labels,
			}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.txnBegin, m.txnEnd, m.liveTxns, m.writerConflicts, m.openCursors}
}

// register adds the collectors to reg. On failure nothing stays registered.
func (m *metrics) register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	var done []prometheus.Collector
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			for _, d := range done {
				reg.Unregister(d)
			}
			return err
		}
		done = append(done, c)
	}
	m.reg = reg
	return nil
}

func (m *metrics) unregister() error {
	if m.reg == nil {
		return nil
	}
	var err error
	for _, c := range m.collectors() {
		if !m.reg.Unregister(c) {
			err = multierr.Append(err, newError(ErrEnvironment, "close", "metric collector was not registered"))
		}
	}
	m.reg = nil
	return err
}

func txnMode(readOnly bool) string {
	if readOnly {
		return modeRead
	}
	return modeWrite
}

func (m *metrics) began(readOnly bool) {
	mode := txnMode(readOnly)
	m.txnBegin.WithLabelValues(mode).Inc()
	m.liveTxns.WithLabelValues(mode).Inc()
}

func (m *metrics) ended(readOnly bool, outcome string) {
	mode := txnMode(readOnly)
	m.txnEnd.WithLabelValues(mode, outcome).Inc()
	m.liveTxns.WithLabelValues(mode).Dec()
}
