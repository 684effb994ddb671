package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the crawler's Prometheus collectors
type Metrics struct {
	// PagesFetched counts pages that were fetched and parsed.
	PagesFetched prometheus.Counter
	// FetchErrors counts failed fetches by cause: transport, status, parse or panic.
	FetchErrors *prometheus.CounterVec
	// Claims counts visited-set claims by outcome: won or lost.
	Claims *prometheus.CounterVec
	// LinksDiscarded counts claimed links that classified as Discard.
	LinksDiscarded prometheus.Counter
	// TerminalWritten counts result lines appended to the sink.
	TerminalWritten prometheus.Counter
	// Outstanding tracks queued plus in-flight tasks.
	Outstanding prometheus.Gauge
	// InFlight tracks tasks currently held by workers.
	InFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperboy_pages_fetched_total",
			Help: "The total number of pages fetched and parsed.",
		}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperboy_fetch_errors_total",
			Help: "The total number of failed fetches.",
		}, []string{"cause"}),
		Claims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperboy_claims_total",
			Help: "The total number of visited-set claims attempted.",
		}, []string{"outcome"}),
		LinksDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperboy_links_discarded_total",
			Help: "The total number of links claimed and then discarded.",
		}),
		TerminalWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperboy_terminal_written_total",
			Help: "The total number of terminal URLs written to the sink.",
		}),
		Outstanding: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paperboy_frontier_outstanding",
			Help: "Queued plus in-flight fetch tasks.",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paperboy_frontier_in_flight",
			Help: "Fetch tasks currently held by workers.",
		}),
	}
}

func (m *Metrics) claim(won bool) {
	if won {
		m.Claims.WithLabelValues("won").Inc()
	} else {
		m.Claims.WithLabelValues("lost").Inc()
	}
}

func (m *Metrics) observeFrontier(f *Frontier) {
	_, inFlight, outstanding := f.Stats()
	m.InFlight.Set(float64(inFlight))
	m.Outstanding.Set(float64(outstanding))
}
