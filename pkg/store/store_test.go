package store

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testValue(n int) structured.Value {
	return structured.Map(
		structured.Entry{Key: "id", Value: structured.Int(n)},
		structured.Entry{Key: "name", Value: structured.String("record")},
	)
}

func TestCreateSessionAndAppend(t *testing.T) {
	s := testStore(t)

	session, err := s.CreateSession("run1", "github", "list_repos", "first run")
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "github", session.APIName)

	added, err := s.Append(session.SessionID, testValue(1), nil, map[string]interface{}{"page": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)

	got, err := s.GetSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalRecords)
	require.NotNil(t, got.LastOperationAt)

	records, err := s.List(session.SessionID, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	raw, err := records[0].Raw()
	require.NoError(t, err)
	assert.True(t, raw.Equal(testValue(1)))

	params, err := records[0].Params()
	require.NoError(t, err)
	assert.Equal(t, float64(1), params["page"])
}

func TestAppendDeduplicatesByContentHash(t *testing.T) {
	s := testStore(t)

	session, err := s.CreateSession("run", "api", "ep", "")
	require.NoError(t, err)

	added, err := s.Append(session.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)

	// Same content again: no new record, count unchanged.
	added, err = s.Append(session.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), added)

	got, err := s.GetSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalRecords)

	// Key order does not defeat deduplication.
	reordered := structured.Map(
		structured.Entry{Key: "name", Value: structured.String("record")},
		structured.Entry{Key: "id", Value: structured.Int(1)},
	)
	added, err = s.Append(session.SessionID, reordered, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), added)

	// Different content is appended.
	added, err = s.Append(session.SessionID, testValue(2), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)
}

func TestSameSecondSessionsGetSeparateRecordFiles(t *testing.T) {
	s := testStore(t)

	// Back-to-back sessions for the same API/endpoint land within one
	// second; their record files must still be distinct.
	a, err := s.CreateSession("a", "api", "ep", "")
	require.NoError(t, err)
	b, err := s.CreateSession("b", "api", "ep", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.FilePath, b.FilePath)

	// Identical content in different sessions is not cross-deduplicated.
	added, err := s.Append(a.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)

	added, err = s.Append(b.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)

	// Deleting one session leaves the other's records intact.
	require.NoError(t, s.DeleteSession(a.SessionID))

	records, err := s.List(b.SessionID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestConcurrentAppendsOfSameValue(t *testing.T) {
	s := testStore(t)

	session, err := s.CreateSession("run", "api", "ep", "")
	require.NoError(t, err)

	const n = 8
	var (
		wg    sync.WaitGroup
		added int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := s.Append(session.SessionID, testValue(1), nil, nil)
			assert.NoError(t, err)
			atomic.AddInt64(&added, count)
		}()
	}
	wg.Wait()

	// Exactly one append observed the hash absent.
	assert.Equal(t, int64(1), atomic.LoadInt64(&added))

	records, err := s.List(session.SessionID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	got, err := s.GetSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalRecords)
}

func TestDuplicateAppendStillLogsOperation(t *testing.T) {
	s := testStore(t)

	session, err := s.CreateSession("run", "api", "ep", "")
	require.NoError(t, err)

	_, err = s.Append(session.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)
	_, err = s.Append(session.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)

	ops, err := s.Operations(session.SessionID)
	require.NoError(t, err)

	// create_session + two store_data entries, one with zero records.
	require.Len(t, ops, 3)
	var zeros int
	for _, op := range ops {
		if op.OperationType == "store_data" && op.RecordsAffected == 0 {
			zeros++
		}
	}
	assert.Equal(t, 1, zeros)
}

func TestAppendStoresProcessedValue(t *testing.T) {
	s := testStore(t)

	session, err := s.CreateSession("run", "api", "ep", "")
	require.NoError(t, err)

	processed := structured.Map(structured.Entry{Key: "kept", Value: structured.Bool(true)})
	_, err = s.Append(session.SessionID, testValue(1), &processed, nil)
	require.NoError(t, err)

	records, err := s.List(session.SessionID, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got, err := records[0].Processed()
	require.NoError(t, err)
	assert.True(t, got.Equal(processed))
}

func TestAppendUnknownSession(t *testing.T) {
	s := testStore(t)

	_, err := s.Append("no-such-session", testValue(1), nil, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := testStore(t)

	first, err := s.CreateSession("first", "api", "ep", "")
	require.NoError(t, err)
	second, err := s.CreateSession("second", "api", "ep", "")
	require.NoError(t, err)

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	ids := []string{sessions[0].SessionID, sessions[1].SessionID}
	assert.Contains(t, ids, first.SessionID)
	assert.Contains(t, ids, second.SessionID)
}

func TestListLimitAndOffset(t *testing.T) {
	s := testStore(t)

	session, err := s.CreateSession("run", "api", "ep", "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.Append(session.SessionID, testValue(i), nil, nil)
		require.NoError(t, err)
	}

	records, err := s.List(session.SessionID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = s.List(session.SessionID, 0, 3)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDeleteSession(t *testing.T) {
	s := testStore(t)

	doomed, err := s.CreateSession("doomed", "api", "ep", "")
	require.NoError(t, err)
	survivor, err := s.CreateSession("survivor", "api", "ep", "")
	require.NoError(t, err)

	_, err = s.Append(survivor.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(doomed.SessionID))

	_, err = s.GetSession(doomed.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = os.Stat(doomed.FilePath)
	assert.True(t, os.IsNotExist(err))

	// The surviving session is untouched.
	records, err := s.List(survivor.SessionID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDeleteUnknownSession(t *testing.T) {
	s := testStore(t)
	assert.ErrorIs(t, s.DeleteSession("nope"), ErrSessionNotFound)
}

func TestDeleteSessionToleratesMissingFile(t *testing.T) {
	s := testStore(t)

	session, err := s.CreateSession("run", "api", "ep", "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(session.FilePath))
	require.NoError(t, s.DeleteSession(session.SessionID))

	_, err = s.GetSession(session.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionsSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, nil)
	require.NoError(t, err)

	session, err := s.CreateSession("run", "api", "ep", "")
	require.NoError(t, err)
	_, err = s.Append(session.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.List(session.SessionID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Deduplication still holds across restarts.
	added, err := reopened.Append(session.SessionID, testValue(1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), added)
}
