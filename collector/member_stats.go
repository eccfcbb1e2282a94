// Scrape `performance_schema.replication_group_member_stats`.

package collector

import (
	"context"
	"database/sql"

	"github.com/go-kit/log"
)

const (
	memberStats = "member_stats"

	memberStatsQuery = `
		SELECT rgm.MEMBER_ID, rgm.MEMBER_HOST, rgms.COUNT_TRANSACTIONS_REMOTE_IN_APPLIER_QUEUE
		  FROM performance_schema.replication_group_member_stats rgms
		  JOIN performance_schema.replication_group_members rgm
		    ON rgms.MEMBER_ID = rgm.MEMBER_ID`
)

// MemberStat is a member's applier backlog.
type MemberStat struct {
	ID                     string
	Host                   string
	QueuedTransactionCount uint64
}

// ScrapeMemberStats collects the applier queue length of every member.
type ScrapeMemberStats struct{}

// Name of the Scraper. Should be unique.
func (ScrapeMemberStats) Name() string {
	return memberStats
}

// Help describes the role of the Scraper.
func (ScrapeMemberStats) Help() string {
	return "Collect from performance_schema.replication_group_member_stats"
}

// Scrape collects data from database connection and writes it into the metric sink.
func (ScrapeMemberStats) Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error {
	rows, err := db.QueryContext(ctx, memberStatsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	var stats []MemberStat
	for rows.Next() {
		var id, host sql.NullString
		var queued sql.NullInt64
		if err := rows.Scan(&id, &host, &queued); err != nil {
			return err
		}
		stats = append(stats, MemberStat{
			ID:                     id.String,
			Host:                   host.String,
			QueuedTransactionCount: uint64(queued.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	m.LaggingMembers.Reset()
	for _, stat := range stats {
		if err := setGauge(m.LaggingMembers, float64(stat.QueuedTransactionCount), stat.ID, stat.Host); err != nil {
			return err
		}
	}
	return nil
}

var _ Scraper = ScrapeMemberStats{}
