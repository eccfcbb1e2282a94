// Scrape `performance_schema.replication_group_members`.

package collector

import (
	"context"
	"database/sql"

	"github.com/go-kit/log"
)

const (
	// groupMembers is the name of the group members scraper.
	groupMembers = "group_members"

	groupMembersQuery = `
		SELECT MEMBER_ID, MEMBER_HOST, MEMBER_ROLE, MEMBER_STATE
		  FROM performance_schema.replication_group_members`
)

// MemberRole is the MEMBER_ROLE column.
type MemberRole string

const (
	RolePrimary   MemberRole = "PRIMARY"
	RoleSecondary MemberRole = "SECONDARY"
)

// MemberState is the MEMBER_STATE column.
type MemberState string

const (
	StateOnline     MemberState = "ONLINE"
	StateRecovering MemberState = "RECOVERING"
)

// ClusterMember is one row of replication_group_members.
type ClusterMember struct {
	ID    string
	Host  string
	Role  MemberRole
	State MemberState
}

// Online reports whether the member is serving.
func (c ClusterMember) Online() bool { return c.State == StateOnline }

// Recovering reports whether the member is catching up with the group.
func (c ClusterMember) Recovering() bool { return c.State == StateRecovering }

// ScrapeGroupMembers collects membership, per-member status and the number
// of recovering members.
type ScrapeGroupMembers struct{}

// Name of the Scraper. Should be unique.
func (ScrapeGroupMembers) Name() string {
	return groupMembers
}

// Help describes the role of the Scraper.
func (ScrapeGroupMembers) Help() string {
	return "Collect from performance_schema.replication_group_members"
}

// Scrape collects data from database connection and writes it into the metric sink.
func (ScrapeGroupMembers) Scrape(ctx context.Context, db Querier, m *Metrics, logger log.Logger) error {
	members, err := fetchGroupMembers(ctx, db)
	if err != nil {
		return err
	}

	m.MemberCount.Set(float64(len(members)))

	// Members that left the group drop out of the vector.
	m.MemberStatus.Reset()
	recovering := 0
	for _, member := range members {
		online := 0.0
		if member.Online() {
			online = 1
		}
		if err := setGauge(m.MemberStatus, online, member.ID, member.Host, string(member.Role)); err != nil {
			return err
		}
		if member.Recovering() {
			recovering++
		}
	}
	m.RecoveringMembers.Set(float64(recovering))

	return nil
}

func fetchGroupMembers(ctx context.Context, db Querier) ([]ClusterMember, error) {
	rows, err := db.QueryContext(ctx, groupMembersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []ClusterMember
	for rows.Next() {
		var id, host, role, state sql.NullString
		if err := rows.Scan(&id, &host, &role, &state); err != nil {
			return nil, err
		}
		members = append(members, ClusterMember{
			ID:    id.String,
			Host:  host.String,
			Role:  MemberRole(role.String),
			State: MemberState(state.String),
		})
	}
	return members, rows.Err()
}

// check interface
var _ Scraper = ScrapeGroupMembers{}
