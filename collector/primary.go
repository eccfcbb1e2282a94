package collector

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	primaryMember = "primary_member"

	primaryMemberVariable = "group_replication_primary_member"
)

// State is carried from one collection pass to the next.
// It is not safe for concurrent use; the poll loop is its only writer.
type State struct {
	lastKnownPrimary string
}

// LastKnownPrimary returns the primary seen by the latest pass, or "" if
// none has been observed yet.
func (s *State) LastKnownPrimary() string {
	return s.lastKnownPrimary
}

// ObservePrimary records primary as the latest observation and reports the
// previous value. changed is true when a primary was known and the new value
// differs from it, including when the group lost its primary (""). Going
// from no primary to one is not a change.
func (s *State) ObservePrimary(primary string) (previous string, changed bool) {
	previous = s.lastKnownPrimary
	changed = previous != "" && previous != primary
	s.lastKnownPrimary = primary
	return previous, changed
}

// ScrapePrimaryMember collects the current primary and logs when it moves
// to another member.
type ScrapePrimaryMember struct {
	State *State
}

// Name of the Scraper. Should be unique.
func (ScrapePrimaryMember) Name() string {
	return primaryMember
}

// Help describes the role of the Scraper.
func (ScrapePrimaryMember) Help() string {
	return "Collect group_replication_primary_member from performance_schema.global_status"
}

// Scrape collects data from database connection and writes it into the metric sink.
func (s ScrapePrimaryMember) Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error {
	primary, err := queryString(ctx, db, globalStatusQuery, primaryMemberVariable)
	if err != nil {
		return err
	}

	if previous, changed := s.State.ObservePrimary(primary); changed {
		level.Warn(logger).Log("msg", "Group replication primary changed", "previous", previous, "current", primary)
	}

	// Without a primary (multi-primary mode, or the group lost quorum) no
	// series is exported.
	m.PrimaryMember.Reset()
	if primary == "" {
		return nil
	}
	return setGauge(m.PrimaryMember, 1, primary)
}

var _ Scraper = ScrapePrimaryMember{}
