package collector

import (
	"bytes"
	"context"
	"database/sql"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

var memberColumns = []string{"MEMBER_ID", "MEMBER_HOST", "MEMBER_ROLE", "MEMBER_STATE"}

// logBuffer is a concurrency safe sink for a logfmt logger.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// lines returns the log lines containing every one of substrs.
func (b *logBuffer) lines(substrs ...string) []string {
	var matched []string
	for _, line := range strings.Split(b.String(), "\n") {
		ok := line != ""
		for _, s := range substrs {
			ok = ok && strings.Contains(line, s)
		}
		if ok {
			matched = append(matched, line)
		}
	}
	return matched
}

func newTestLogger() (log.Logger, *logBuffer) {
	buf := &logBuffer{}
	return log.NewLogfmtLogger(buf), buf
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// connCounter hands out pooled connections and records how often passes
// acquired and released them.
type connCounter struct {
	db       *sql.DB
	err      error
	acquired int
	released int
}

func (c *connCounter) connect(ctx context.Context) (Conn, error) {
	if c.err != nil {
		return nil, c.err
	}
	conn, err := DBConnFactory(c.db)(ctx)
	if err != nil {
		return nil, err
	}
	c.acquired++
	return &countingConn{Conn: conn, counter: c}, nil
}

type countingConn struct {
	Conn
	counter *connCounter
}

func (c *countingConn) Close() error {
	c.counter.released++
	return c.Conn.Close()
}

func valueRows(values ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"VARIABLE_VALUE"})
	for _, v := range values {
		rows.AddRow(v)
	}
	return rows
}

func expectStatus(mock sqlmock.Sqlmock, name string, values ...string) {
	mock.ExpectQuery(regexp.QuoteMeta(globalStatusQuery)).WithArgs(name).WillReturnRows(valueRows(values...))
}

func expectMembers(mock sqlmock.Sqlmock, members ...ClusterMember) {
	rows := sqlmock.NewRows(memberColumns)
	for _, m := range members {
		rows.AddRow(m.ID, m.Host, string(m.Role), string(m.State))
	}
	mock.ExpectQuery(regexp.QuoteMeta(groupMembersQuery)).WillReturnRows(rows)
}

func expectGTIDExecuted(mock sqlmock.Sqlmock, descriptor string) {
	mock.ExpectQuery(regexp.QuoteMeta(gtidExecutedQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"@@global.gtid_executed"}).AddRow(descriptor))
}

func expectMemberStats(mock sqlmock.Sqlmock, stats ...MemberStat) {
	rows := sqlmock.NewRows([]string{"MEMBER_ID", "MEMBER_HOST", "COUNT_TRANSACTIONS_REMOTE_IN_APPLIER_QUEUE"})
	for _, s := range stats {
		rows.AddRow(s.ID, s.Host, int64(s.QueuedTransactionCount))
	}
	mock.ExpectQuery(regexp.QuoteMeta(memberStatsQuery)).WillReturnRows(rows)
}

func expectSinglePrimaryMode(mock sqlmock.Sqlmock, value string) {
	mock.ExpectQuery(regexp.QuoteMeta(globalVariablesQuery)).
		WithArgs(singlePrimaryModeVariable).
		WillReturnRows(valueRows(value))
}

var threeMembers = []ClusterMember{
	{ID: "uuid-1", Host: "db1", Role: RolePrimary, State: StateOnline},
	{ID: "uuid-2", Host: "db2", Role: RoleSecondary, State: StateOnline},
	{ID: "uuid-3", Host: "db3", Role: RoleSecondary, State: StateRecovering},
}

// expectFullPass queues the queries of one complete pass.
func expectFullPass(mock sqlmock.Sqlmock, primary string) {
	expectMembers(mock, threeMembers...)
	expectGTIDExecuted(mock, "a:1-5,b:1-3")
	expectStatus(mock, gtidErrorsVariable, "0")
	expectStatus(mock, primaryMemberVariable, primary)
	expectMemberStats(mock,
		MemberStat{ID: "uuid-1", Host: "db1", QueuedTransactionCount: 0},
		MemberStat{ID: "uuid-2", Host: "db2", QueuedTransactionCount: 4},
		MemberStat{ID: "uuid-3", Host: "db3", QueuedTransactionCount: 120},
	)
	expectSinglePrimaryMode(mock, "ON")
	expectStatus(mock, conflictsVariable, "3")
}
