package collector

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	singlePrimaryMode = "single_primary_mode"
	conflicts         = "conflicts"

	singlePrimaryModeVariable = "group_replication_single_primary_mode"
	conflictsVariable         = "group_replication_conflicts_detected"
)

// ScrapeSinglePrimaryMode collects group_replication_single_primary_mode.
type ScrapeSinglePrimaryMode struct{}

// Name of the Scraper. Should be unique.
func (ScrapeSinglePrimaryMode) Name() string {
	return singlePrimaryMode
}

// Help describes the role of the Scraper.
func (ScrapeSinglePrimaryMode) Help() string {
	return "Collect group_replication_single_primary_mode from performance_schema.global_variables"
}

// Scrape collects data from database connection and writes it into the metric sink.
func (ScrapeSinglePrimaryMode) Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error {
	mode, err := queryString(ctx, db, globalVariablesQuery, singlePrimaryModeVariable)
	if err != nil {
		return err
	}
	on := 0.0
	if mode == "ON" {
		on = 1
	}
	m.SinglePrimaryMode.Set(on)
	return nil
}

// ScrapeConflicts collects group_replication_conflicts_detected, assuming
// zero when the server does not report it.
type ScrapeConflicts struct{}

// Name of the Scraper. Should be unique.
func (ScrapeConflicts) Name() string {
	return conflicts
}

// Help describes the role of the Scraper.
func (ScrapeConflicts) Help() string {
	return "Collect group_replication_conflicts_detected from performance_schema.global_status"
}

// Scrape collects data from database connection and writes it into the metric sink.
func (ScrapeConflicts) Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error {
	n, ok, err := queryOptionalInt(ctx, db, globalStatusQuery, conflictsVariable)
	if err != nil {
		return err
	}
	if !ok {
		level.Warn(logger).Log("msg", "Status variable not found, assuming 0", "variable", conflictsVariable)
	}
	m.Conflicts.Set(float64(n))
	return nil
}

var (
	_ Scraper = ScrapeSinglePrimaryMode{}
	_ Scraper = ScrapeConflicts{}
)
