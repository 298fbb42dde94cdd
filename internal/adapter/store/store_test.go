package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
)

const (
	testRootID     = "urn:oid:2.49.0.1.840.0.ABC123.001.1"
	testFollowUpID = "urn:oid:2.49.0.1.840.0.ABC123.002.1"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(fullID string) domain.AlertRecord {
	id, err := domain.ParseAlertID(fullID)
	if err != nil {
		panic(err)
	}
	return domain.AlertRecord{
		FullID:      id.FullID,
		Identifier:  id.Identifier,
		Sequence:    id.Sequence,
		Version:     id.Version,
		AreaDesc:    "Travis, TX; Williamson, TX",
		SAMECodes:   "048453, 048491",
		UGCCodes:    "TXC453, TXC491",
		Event:       "Tornado Warning",
		Severity:    "Extreme",
		VTEC:        "/O.NEW.KEWX.TO.W.0012.240502T2100Z-240502T2145Z/",
		Coordinates: "[[[-97.7,30.2],[-97.6,30.3],[-97.7,30.2]]]",
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestStore_InsertAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	missing, err := s.FindByFullID(ctx, testRootID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ref, err := s.Insert(ctx, record(testRootID), nil)
	require.NoError(t, err)
	assert.Positive(t, ref.ID)
	assert.Equal(t, testRootID, ref.FullID)

	found, err := s.FindByFullID(ctx, testRootID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ref, *found)

	got, err := s.get(ctx, ref.ID)
	require.NoError(t, err)
	want := record(testRootID)
	want.ID = ref.ID
	assert.Equal(t, want, got)
}

func TestStore_FindRootByIdentifier(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root, err := s.FindRootByIdentifier(ctx, "ABC123")
	require.NoError(t, err)
	assert.Nil(t, root)

	rootRef, err := s.Insert(ctx, record(testRootID), nil)
	require.NoError(t, err)
	childRef, err := s.Insert(ctx, record(testFollowUpID), &rootRef)
	require.NoError(t, err)

	root, err = s.FindRootByIdentifier(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, rootRef, *root)

	child, err := s.get(ctx, childRef.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, rootRef.ID, *child.ParentID)

	other, err := s.FindRootByIdentifier(ctx, "XYZ789")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestStore_InsertDuplicateFullID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, record(testRootID), nil)
	require.NoError(t, err)

	_, err = s.Insert(ctx, record(testRootID), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersist)
	assert.Contains(t, err.Error(), testRootID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_GetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)
}

func TestStore_EachRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rootRef, err := s.Insert(ctx, record(testRootID), nil)
	require.NoError(t, err)
	_, err = s.Insert(ctx, record(testFollowUpID), &rootRef)
	require.NoError(t, err)

	var seen []string
	require.NoError(t, s.EachRecord(ctx, func(rec domain.AlertRecord) error {
		seen = append(seen, rec.FullID)
		return nil
	}))
	assert.Equal(t, []string{testRootID, testFollowUpID}, seen)

	stop := errors.New("stop")
	calls := 0
	err = s.EachRecord(ctx, func(domain.AlertRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStore_PollState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last, err := s.LastPoll(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	ids, err := s.Ledger(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	at := time.Date(2024, time.May, 2, 21, 15, 0, 0, time.UTC)
	require.NoError(t, s.SetLastPoll(ctx, at))
	require.NoError(t, s.SetLastPoll(ctx, at.Add(time.Minute)))
	require.NoError(t, s.SetLedger(ctx, []string{testRootID}))
	require.NoError(t, s.SetLedger(ctx, []string{testRootID, testFollowUpID}))

	last, err = s.LastPoll(ctx)
	require.NoError(t, err)
	assert.True(t, at.Add(time.Minute).Equal(last))

	ids, err = s.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testRootID, testFollowUpID}, ids)
}

func TestStore_CheckReadiness(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.CheckReadiness(context.Background()))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "alerts.db?_pragma=busy_timeout(5000)", SQLiteDSN("alerts.db"))
	assert.Equal(t, "file:alerts.db?mode=rwc&_pragma=busy_timeout(5000)", SQLiteDSN("file:alerts.db?mode=rwc"))
	assert.Equal(t, "file:alerts.db?_pragma=busy_timeout(100)", SQLiteDSN("file:alerts.db?_pragma=busy_timeout(100)"))
}

func TestStore_BusyTimeoutApplied(t *testing.T) {
	s := openTestStore(t)
	var timeout int
	require.NoError(t, s.db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	assert.Equal(t, 5000, timeout)
}

func TestStore_Lock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.May, 2, 21, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ok, err := s.TryAcquire(ctx, "poll", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryAcquire(ctx, "poll", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held by a")

	ok, err = s.TryAcquire(ctx, "other", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are independent by name")

	require.NoError(t, s.Release(ctx, "poll", "b"), "releasing a lock you do not hold is a no-op")
	ok, err = s.TryAcquire(ctx, "poll", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "poll", "a"))
	ok, err = s.TryAcquire(ctx, "poll", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_LockExpires(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.May, 2, 21, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ok, err := s.TryAcquire(ctx, "poll", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	ok, err = s.TryAcquire(ctx, "poll", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, err = s.TryAcquire(ctx, "poll", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lease is taken over")

	require.NoError(t, s.Release(ctx, "poll", "a"))
	ok, err = s.TryAcquire(ctx, "poll", "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a stale owner cannot release the new lease")
}
