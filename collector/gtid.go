package collector

import (
	"context"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	gtidExecuted = "gtid_executed"
	gtidErrors   = "gtid_errors"

	gtidExecutedQuery = `SELECT @@global.gtid_executed`

	gtidErrorsVariable = "group_replication_gtid_errors"
)

// countGTIDSets returns the number of comma separated elements in an
// executed GTID set descriptor. The empty descriptor counts as one element.
func countGTIDSets(descriptor string) int {
	return strings.Count(descriptor, ",") + 1
}

// ScrapeGTIDExecuted collects the size of @@global.gtid_executed.
type ScrapeGTIDExecuted struct{}

// Name of the Scraper. Should be unique.
func (ScrapeGTIDExecuted) Name() string {
	return gtidExecuted
}

// Help describes the role of the Scraper.
func (ScrapeGTIDExecuted) Help() string {
	return "Collect the number of elements of @@global.gtid_executed"
}

// Scrape collects data from database connection and writes it into the metric sink.
func (ScrapeGTIDExecuted) Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error {
	executed, err := queryString(ctx, db, gtidExecutedQuery)
	if err != nil {
		return err
	}
	m.GTIDExecuted.Set(float64(countGTIDSets(executed)))
	return nil
}

// ScrapeGTIDErrors collects group_replication_gtid_errors. Servers that do
// not report the variable are assumed to have zero errors.
type ScrapeGTIDErrors struct{}

// Name of the Scraper. Should be unique.
func (ScrapeGTIDErrors) Name() string {
	return gtidErrors
}

// Help describes the role of the Scraper.
func (ScrapeGTIDErrors) Help() string {
	return "Collect group_replication_gtid_errors from performance_schema.global_status"
}

// Scrape collects data from database connection and writes it into the metric sink.
func (ScrapeGTIDErrors) Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error {
	n, ok, err := queryOptionalInt(ctx, db, globalStatusQuery, gtidErrorsVariable)
	if err != nil {
		return err
	}
	if !ok {
		level.Warn(logger).Log("msg", "Status variable not found, assuming 0", "variable", gtidErrorsVariable)
	}
	m.GTIDErrors.Set(float64(n))
	return nil
}

var (
	_ Scraper = ScrapeGTIDExecuted{}
	_ Scraper = ScrapeGTIDErrors{}
)
