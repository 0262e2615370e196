package stats

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdiff/internal/adapter"
)

// mockQuerier adapts a sqlmock database to the Querier interface.
type mockQuerier struct {
	db *sql.DB
}

func (q *mockQuerier) Query(ctx context.Context, sqlStr string) (*adapter.Rows, error) {
	rows, err := q.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	return &adapter.Rows{Rows: rows}, nil
}

func (q *mockQuerier) QuoteIdent(name string) string {
	return `"` + name + `"`
}

func newMockSide(t *testing.T, relation string) (Side, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return Side{Querier: &mockQuerier{db: db}, Relation: relation}, mock
}

func TestBuildAggregateQuery(t *testing.T) {
	side, _ := newMockSide(t, "main.orders")
	columns := []ColumnSpec{
		{Name: "name"},
		{Name: "amount", Numeric: true},
	}

	query := BuildAggregateQuery(side, columns)

	assert.Equal(t,
		`SELECT COUNT(*) AS "row_count"`+
			`, COUNT("name") AS "non_null_count__name"`+
			`, COUNT(DISTINCT "name") AS "distinct_count__name"`+
			`, COUNT("amount") AS "non_null_count__amount"`+
			`, COUNT(DISTINCT "amount") AS "distinct_count__amount"`+
			`, MIN("amount") AS "min__amount"`+
			`, MAX("amount") AS "max__amount"`+
			`, AVG("amount") AS "avg__amount"`+
			` FROM main.orders`,
		query)
}

func TestBuildAggregateQuery_SidePhysicalNames(t *testing.T) {
	// The old side spells the column "Amount"; aliases stay canonical so both
	// sides' results match up.
	side, _ := newMockSide(t, "old.orders")
	side.Names = map[string]string{"amount": "Amount"}

	query := BuildAggregateQuery(side, []ColumnSpec{{Name: "amount", Numeric: true}})

	assert.Contains(t, query, `COUNT("Amount") AS "non_null_count__amount"`)
	assert.Contains(t, query, `MIN("Amount") AS "min__amount"`)
	assert.NotContains(t, query, `COUNT("amount")`, "measured identifier must use the side's physical casing")
}

func expectAggregate(mock sqlmock.Sqlmock, cols []string, vals []driverValueList) {
	for _, v := range vals {
		rows := sqlmock.NewRows(cols).AddRow(v...)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS")).WillReturnRows(rows)
	}
}

type driverValueList = []driver.Value

func TestCompare_RowCountDelta(t *testing.T) {
	oldSide, oldMock := newMockSide(t, "old.orders")
	newSide, newMock := newMockSide(t, "new.orders")

	cols := []string{"row_count"}
	expectAggregate(oldMock, cols, []driverValueList{{int64(100)}})
	expectAggregate(newMock, cols, []driverValueList{{int64(120)}})

	c := NewComparator(nil)
	result, err := c.Compare(context.Background(), "orders", oldSide, newSide, nil)
	require.NoError(t, err)

	assert.Equal(t, "orders", result.Dataset.Scope)
	assert.Equal(t, MetricRowCount, result.Dataset.Metric)
	assert.Equal(t, 100.0, result.Dataset.OldValue)
	assert.Equal(t, 120.0, result.Dataset.NewValue)
	assert.Equal(t, 20.0, result.Dataset.Difference)
	assert.Equal(t, 20.0, result.Dataset.PercentChange)

	assert.NoError(t, oldMock.ExpectationsWereMet())
	assert.NoError(t, newMock.ExpectationsWereMet())
}

func TestCompare_OneQueryPerSide(t *testing.T) {
	oldSide, oldMock := newMockSide(t, "old.orders")
	newSide, newMock := newMockSide(t, "new.orders")

	cols := []string{"row_count", "non_null_count__amount", "distinct_count__amount", "min__amount", "max__amount", "avg__amount"}
	expectAggregate(oldMock, cols, []driverValueList{{int64(10), int64(9), int64(5), 1.0, 50.0, 12.5}})
	expectAggregate(newMock, cols, []driverValueList{{int64(10), int64(10), int64(6), 1.0, 60.0, 14.0}})

	c := NewComparator(nil)
	result, err := c.Compare(context.Background(), "orders", oldSide, newSide, []ColumnSpec{{Name: "amount", Numeric: true}})
	require.NoError(t, err)

	// All five column metrics from one pass each.
	require.Len(t, result.Columns, 5)
	require.NoError(t, oldMock.ExpectationsWereMet(), "exactly one aggregate query against the old side")
	require.NoError(t, newMock.ExpectationsWereMet(), "exactly one aggregate query against the new side")
}

func TestCompare_SelfComparisonYieldsZeroDeltas(t *testing.T) {
	oldSide, oldMock := newMockSide(t, "main.orders")
	newSide, newMock := newMockSide(t, "main.orders")

	cols := []string{"row_count", "non_null_count__name", "distinct_count__name"}
	row := driverValueList{int64(42), int64(40), int64(7)}
	expectAggregate(oldMock, cols, []driverValueList{row})
	expectAggregate(newMock, cols, []driverValueList{row})

	c := NewComparator(nil)
	result, err := c.Compare(context.Background(), "orders", oldSide, newSide, []ColumnSpec{{Name: "name"}})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Dataset.Difference)
	assert.Equal(t, 0.0, result.Dataset.PercentChange)
	for _, d := range result.Columns {
		assert.Equal(t, 0.0, d.Difference, "metric %s", d.Metric)
		assert.Equal(t, 0.0, d.PercentChange, "metric %s", d.Metric)
	}
}

func TestCompare_ZeroBaselineSentinel(t *testing.T) {
	oldSide, oldMock := newMockSide(t, "old.orders")
	newSide, newMock := newMockSide(t, "new.orders")

	cols := []string{"row_count"}
	expectAggregate(oldMock, cols, []driverValueList{{int64(0)}})
	expectAggregate(newMock, cols, []driverValueList{{int64(5)}})

	c := NewComparator(nil)
	result, err := c.Compare(context.Background(), "orders", oldSide, newSide, nil)
	require.NoError(t, err)

	assert.Equal(t, 5.0, result.Dataset.Difference)
	assert.Equal(t, ZeroBaselinePercent, result.Dataset.PercentChange,
		"zero baseline must report the sentinel, not attempt division")
}

func TestCompare_MissingColumnSkippedWithWarning(t *testing.T) {
	oldSide, oldMock := newMockSide(t, "old.orders")
	newSide, newMock := newMockSide(t, "new.orders")

	// The old side's executed aggregate is missing the "ghost" column.
	oldCols := []string{"row_count", "non_null_count__name", "distinct_count__name"}
	newCols := []string{"row_count", "non_null_count__name", "distinct_count__name", "non_null_count__ghost", "distinct_count__ghost"}
	expectAggregate(oldMock, oldCols, []driverValueList{{int64(10), int64(10), int64(3)}})
	expectAggregate(newMock, newCols, []driverValueList{{int64(10), int64(10), int64(3), int64(8), int64(2)}})

	c := NewComparator(nil)
	result, err := c.Compare(context.Background(), "orders", oldSide, newSide,
		[]ColumnSpec{{Name: "name"}, {Name: "ghost"}})
	require.NoError(t, err, "a missing column must not abort the comparison")

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "ghost", result.Skipped[0].Column)

	for _, d := range result.Columns {
		assert.NotContains(t, d.Scope, "ghost", "skipped column must not contribute deltas")
	}
	require.Len(t, result.Columns, 2)
}

func TestCompare_QueryFailureIsExecutionError(t *testing.T) {
	oldSide, oldMock := newMockSide(t, "old.orders")
	newSide, _ := newMockSide(t, "new.orders")

	oldMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS")).WillReturnError(sql.ErrConnDone)

	c := NewComparator(nil)
	_, err := c.Compare(context.Background(), "orders", oldSide, newSide, nil)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "old.orders", execErr.Relation)
}

func TestDeltaScopes(t *testing.T) {
	oldSide, oldMock := newMockSide(t, "old.orders")
	newSide, newMock := newMockSide(t, "new.orders")

	cols := []string{"row_count", "non_null_count__name", "distinct_count__name"}
	expectAggregate(oldMock, cols, []driverValueList{{int64(1), int64(1), int64(1)}})
	expectAggregate(newMock, cols, []driverValueList{{int64(1), int64(1), int64(1)}})

	c := NewComparator(nil)
	result, err := c.Compare(context.Background(), "orders", oldSide, newSide, []ColumnSpec{{Name: "name"}})
	require.NoError(t, err)

	for _, d := range result.Columns {
		assert.Equal(t, "orders.name", d.Scope)
		assert.Equal(t, "name", d.Column)
	}
}
