package collector

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Exporter namespace.
	namespace = "mysql"
	// Subsystem for group replication metrics.
	mgr = "mgr"
	// Subsystem for the exporter's own health metrics.
	exporter = "mgr_exporter"
)

var memberLabels = []string{"member_id", "host"}

func newGauge(subsystem, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func newGaugeVec(subsystem, name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// labelValue replaces invalid UTF-8, which the registry rejects in label values.
func labelValue(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// setGauge sets the child of vec identified by labels. Label values coming
// from the server are sanitized first; any remaining error is returned
// instead of panicking.
func setGauge(vec *prometheus.GaugeVec, value float64, labels ...string) error {
	for i, l := range labels {
		labels[i] = labelValue(l)
	}
	g, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

// Metrics is the sink every Scraper writes into. Values persist between
// passes, so a scrape of the endpoint always sees the last written value.
type Metrics struct {
	MemberCount       prometheus.Gauge
	MemberStatus      *prometheus.GaugeVec
	GTIDExecuted      prometheus.Gauge
	PrimaryMember     *prometheus.GaugeVec
	LaggingMembers    *prometheus.GaugeVec
	FetchTime         prometheus.Histogram
	RecoveringMembers prometheus.Gauge
	SinglePrimaryMode prometheus.Gauge
	Conflicts         prometheus.Gauge
	GTIDErrors        prometheus.Gauge

	// Declared for compatibility with existing dashboards, never populated.
	TransactionsCommitted  *prometheus.GaugeVec
	TransactionsRolledback *prometheus.GaugeVec

	Up              prometheus.Gauge
	LastScrapeError prometheus.Gauge
	ScrapeErrors    *prometheus.CounterVec
}

// NewMetrics builds the metric set. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		MemberCount: newGauge(mgr, "member_count",
			"Number of members in the replication group."),
		MemberStatus: newGaugeVec(mgr, "member_status",
			"Group member status (1=ONLINE, 0=otherwise).",
			[]string{"member_id", "host", "role"}),
		GTIDExecuted: newGauge("", "gtid_executed",
			"Number of elements in the executed GTID set descriptor."),
		PrimaryMember: newGaugeVec(mgr, "primary_member",
			"Currently observed primary member of the group.",
			[]string{"primary_host"}),
		LaggingMembers: newGaugeVec(mgr, "lagging_members",
			"Remote transactions queued in the member's applier queue.",
			memberLabels),
		FetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: mgr,
			Name:      "fetch_time_seconds",
			Help:      "Time spent collecting group replication metrics from MySQL.",
			Buckets:   prometheus.DefBuckets,
		}),
		RecoveringMembers: newGauge(mgr, "recovering_members",
			"Number of members in RECOVERING state."),
		SinglePrimaryMode: newGauge(mgr, "single_primary_mode",
			"Whether the group runs in single-primary mode (1=ON, 0=OFF)."),
		Conflicts: newGauge(mgr, "conflicts",
			"Number of transactions that failed conflict detection."),
		GTIDErrors: newGauge(mgr, "gtid_errors",
			"Number of GTID related errors reported by group replication."),
		TransactionsCommitted: newGaugeVec(mgr, "transactions_committed",
			"Number of committed transactions.", memberLabels),
		TransactionsRolledback: newGaugeVec(mgr, "transactions_rolledback",
			"Number of rolled back transactions.", memberLabels),
		Up: newGauge(mgr, "up",
			"Whether the last collection pass could connect to MySQL."),
		LastScrapeError: newGauge(exporter, "last_scrape_error",
			"Whether the last collection pass aborted with an error (1 for error, 0 for success)."),
		ScrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: exporter,
			Name:      "scrape_errors_total",
			Help:      "Total number of times a scraper aborted the collection pass.",
		}, []string{"collector"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MemberCount,
		m.MemberStatus,
		m.GTIDExecuted,
		m.PrimaryMember,
		m.LaggingMembers,
		m.FetchTime,
		m.RecoveringMembers,
		m.SinglePrimaryMode,
		m.Conflicts,
		m.GTIDErrors,
		m.TransactionsCommitted,
		m.TransactionsRolledback,
		m.Up,
		m.LastScrapeError,
		m.ScrapeErrors,
	}
}

// Register adds every metric to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
