package collector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Conn is a database connection scoped to one collection pass.
type Conn interface {
	Querier
	Close() error
}

// ConnFactory hands out a ready connection for one pass.
type ConnFactory func(ctx context.Context) (Conn, error)

// DBConnFactory takes a dedicated connection from db's pool and pings it,
// so an unreachable server fails at acquisition rather than at the first query.
func DBConnFactory(db *sql.DB) ConnFactory {
	return func(ctx context.Context) (Conn, error) {
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// DefaultScrapers returns the scrapers of a collection pass in the order
// they run.
func DefaultScrapers(state *State) []Scraper {
	return []Scraper{
		ScrapeGroupMembers{},
		ScrapeGTIDExecuted{},
		ScrapeGTIDErrors{},
		ScrapePrimaryMember{State: state},
		ScrapeMemberStats{},
		ScrapeSinglePrimaryMode{},
		ScrapeConflicts{},
	}
}

// Sampler runs collection passes against a group replication member.
type Sampler struct {
	connect      ConnFactory
	metrics      *Metrics
	scrapers     []Scraper
	queryTimeout time.Duration
	logger       log.Logger
}

// NewSampler returns a Sampler running scrapers in the given order. A zero
// queryTimeout lets a pass block until the driver gives up.
func NewSampler(connect ConnFactory, metrics *Metrics, scrapers []Scraper, queryTimeout time.Duration, logger log.Logger) *Sampler {
	return &Sampler{
		connect:      connect,
		metrics:      metrics,
		scrapers:     scrapers,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Collect runs one pass. Each scraper writes its metrics as soon as it
// finishes; when a scraper fails the remaining ones are skipped and the
// values already written stay in place. A failed connection skips the pass
// and is not reported as an error.
func (s *Sampler) Collect(ctx context.Context) error {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	conn, err := s.connect(ctx)
	if err != nil {
		level.Error(s.logger).Log("msg", "Error connecting to MySQL, skipping collection", "err", err)
		s.metrics.Up.Set(0)
		s.metrics.LastScrapeError.Set(1)
		return nil
	}
	defer func() {
		if err := conn.Close(); err != nil {
			level.Warn(s.logger).Log("msg", "Error releasing MySQL connection", "err", err)
		}
	}()
	s.metrics.Up.Set(1)

	for _, scraper := range s.scrapers {
		logger := log.With(s.logger, "scraper", scraper.Name())
		if err := scraper.Scrape(ctx, conn, s.metrics, logger); err != nil {
			level.Error(logger).Log("msg", "Error collecting group replication metrics, skipping remaining scrapers", "err", err)
			s.metrics.ScrapeErrors.WithLabelValues(scraper.Name()).Inc()
			s.metrics.LastScrapeError.Set(1)
			return fmt.Errorf("scraper %s: %w", scraper.Name(), err)
		}
	}
	s.metrics.LastScrapeError.Set(0)
	return nil
}
