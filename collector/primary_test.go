package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateObservePrimary(t *testing.T) {
	var s State
	assert.Equal(t, "", s.LastKnownPrimary())

	previous, changed := s.ObservePrimary("hostA")
	assert.Equal(t, "", previous)
	assert.False(t, changed, "first observation is not a change")
	assert.Equal(t, "hostA", s.LastKnownPrimary())

	_, changed = s.ObservePrimary("hostA")
	assert.False(t, changed)

	previous, changed = s.ObservePrimary("hostB")
	assert.Equal(t, "hostA", previous)
	assert.True(t, changed)
	assert.Equal(t, "hostB", s.LastKnownPrimary())

	previous, changed = s.ObservePrimary("")
	assert.Equal(t, "hostB", previous)
	assert.True(t, changed, "losing the primary is a change")
	assert.Equal(t, "", s.LastKnownPrimary())

	_, changed = s.ObservePrimary("")
	assert.False(t, changed)

	_, changed = s.ObservePrimary("hostC")
	assert.False(t, changed, "electing a primary after none is not a change")
	assert.Equal(t, "hostC", s.LastKnownPrimary())
}

func TestScrapePrimaryMemberLogsChange(t *testing.T) {
	db, mock := newMock(t)
	logger, logs := newTestLogger()
	m := NewMetrics()
	state := &State{}
	scraper := ScrapePrimaryMember{State: state}

	const changeMsg = "Group replication primary changed"

	expectStatus(mock, primaryMemberVariable, "hostA")
	require.NoError(t, scraper.Scrape(context.Background(), db, m, logger))
	assert.Empty(t, logs.lines(changeMsg))
	assert.Equal(t, "hostA", state.LastKnownPrimary())

	expectStatus(mock, primaryMemberVariable, "hostA")
	require.NoError(t, scraper.Scrape(context.Background(), db, m, logger))
	assert.Empty(t, logs.lines(changeMsg))

	expectStatus(mock, primaryMemberVariable, "hostB")
	require.NoError(t, scraper.Scrape(context.Background(), db, m, logger))
	changes := logs.lines(changeMsg)
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0], "level=warn")
	assert.Contains(t, changes[0], "hostA")
	assert.Contains(t, changes[0], "hostB")
	assert.Equal(t, "hostB", state.LastKnownPrimary())

	assert.Equal(t, 1, testutil.CollectAndCount(m.PrimaryMember))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrimaryMember.WithLabelValues("hostB")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScrapePrimaryMemberMissing(t *testing.T) {
	db, mock := newMock(t)
	logger, _ := newTestLogger()
	state := &State{}
	state.ObservePrimary("hostA")
	expectStatus(mock, primaryMemberVariable)

	err := ScrapePrimaryMember{State: state}.Scrape(context.Background(), db, NewMetrics(), logger)
	assert.Error(t, err)
	assert.Equal(t, "hostA", state.LastKnownPrimary(), "a failed lookup keeps the last observation")
}

func TestScrapePrimaryMemberLost(t *testing.T) {
	db, mock := newMock(t)
	logger, logs := newTestLogger()
	m := NewMetrics()
	state := &State{}
	scraper := ScrapePrimaryMember{State: state}

	expectStatus(mock, primaryMemberVariable, "hostA")
	expectStatus(mock, primaryMemberVariable, "")
	require.NoError(t, scraper.Scrape(context.Background(), db, m, logger))
	require.NoError(t, scraper.Scrape(context.Background(), db, m, logger))

	changes := logs.lines("Group replication primary changed")
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0], "level=warn")
	assert.Contains(t, changes[0], "previous=hostA")
	assert.Equal(t, "", state.LastKnownPrimary())
	assert.Equal(t, 0, testutil.CollectAndCount(m.PrimaryMember), "no series without a primary")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScrapePrimaryMemberInvalidUTF8(t *testing.T) {
	db, mock := newMock(t)
	logger, _ := newTestLogger()
	m := NewMetrics()
	expectStatus(mock, primaryMemberVariable, "db\xff1")

	assert.NotPanics(t, func() {
		require.NoError(t, ScrapePrimaryMember{State: &State{}}.Scrape(context.Background(), db, m, logger))
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrimaryMember.WithLabelValues("db\uFFFD1")))
}
