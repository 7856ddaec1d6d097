package sink

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/datasynth/synth/pkg/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDB implements DB for testing
type MockDB struct {
	mock.Mock
	copied [][]any
}

func (m *MockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql)
	return pgconn.CommandTag{}, args.Error(0)
}

func (m *MockDB) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	var n int64
	for rowSrc.Next() {
		values, err := rowSrc.Values()
		if err != nil {
			return n, err
		}
		m.copied = append(m.copied, values)
		n++
	}
	args := m.Called(ctx, tableName, columnNames)
	return n, args.Error(0)
}

func TestPostgresSink_CreatesTable(t *testing.T) {
	db := new(MockDB)
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, `CREATE TABLE IF NOT EXISTS "ledger"."items"`)
	})).Return(nil)

	s, err := newPostgresSink(context.Background(), db, "ledger.items", "s-1", 10, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "postgres", s.Name())
	assert.Equal(t, pgx.Identifier{"ledger", "items"}, s.table)
	db.AssertExpectations(t)
}

func TestPostgresSink_CreateTableError(t *testing.T) {
	db := new(MockDB)
	db.On("Exec", mock.Anything, mock.Anything).Return(errors.New("permission denied"))

	_, err := newPostgresSink(context.Background(), db, "", "s-1", 10, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultTable)
}

func TestPostgresSink_BatchesDataItems(t *testing.T) {
	db := new(MockDB)
	db.On("Exec", mock.Anything, mock.Anything).Return(nil)
	db.On("CopyFrom", mock.Anything, pgx.Identifier{DefaultTable}, postgresColumns).Return(nil)

	ctx := context.Background()
	s, err := newPostgresSink(ctx, db, "", "s-1", 2, testLogger())
	require.NoError(t, err)

	require.NoError(t, s.Process(ctx, events.NewDataEvent(testItem{ID: "a", Amount: 1})))
	require.NoError(t, s.Process(ctx, events.NewProgressEvent(events.Progress{})))
	require.NoError(t, s.Process(ctx, events.NewDataEvent(events.PhaseComplete{Phase: "master_data"})))
	db.AssertNotCalled(t, "CopyFrom", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, s.Process(ctx, events.NewDataEvent(testItem{ID: "b", Amount: 2})))
	db.AssertNumberOfCalls(t, "CopyFrom", 1)
	require.Len(t, db.copied, 2)

	row := db.copied[0]
	assert.Equal(t, "s-1", row[0])
	assert.Equal(t, "test_item", row[1])
	assert.JSONEq(t, `{"id":"a","amount":1}`, string(row[2].([]byte)))

	require.NoError(t, s.Process(ctx, events.NewDataEvent(testItem{ID: "c"})))
	require.NoError(t, s.Flush(ctx))
	db.AssertNumberOfCalls(t, "CopyFrom", 2)
	assert.Len(t, db.copied, 3)

	require.NoError(t, s.Flush(ctx))
	db.AssertNumberOfCalls(t, "CopyFrom", 2)
	require.NoError(t, s.Close())
}

func TestPostgresSink_CopyError(t *testing.T) {
	db := new(MockDB)
	db.On("Exec", mock.Anything, mock.Anything).Return(nil)
	db.On("CopyFrom", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	ctx := context.Background()
	s, err := newPostgresSink(ctx, db, "", "s-1", 1, testLogger())
	require.NoError(t, err)

	err = s.Process(ctx, events.NewDataEvent(testItem{ID: "a"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
