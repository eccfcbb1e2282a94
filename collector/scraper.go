package collector

import (
	"context"
	"database/sql"

	"github.com/go-kit/log"
)

// Querier is the part of a database connection the scrapers need.
// *sql.Conn and *sql.DB both satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Scraper is minimal interface that lets you add new group replication metrics.
type Scraper interface {
	// Name of the Scraper. Should be unique.
	Name() string

	// Help describes the role of the Scraper. It doubles as the help text
	// of the scraper's collect.<name> flag.
	// Example: "Collect from performance_schema.replication_group_members"
	Help() string

	// Scrape queries db and writes the result into m. Any returned error
	// aborts the rest of the collection pass.
	Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error
}
