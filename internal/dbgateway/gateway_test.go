package dbgateway

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNamePrefixesExceptSharedTables(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewFromDB(db, 4).WithPrefix(7)
	assert.Equal(t, "p7_td_node_1", g.TableName("td_node_1"))
	assert.Equal(t, "problem", g.TableName("problem"))
}

func TestBagTableAndViewNames(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewFromDB(db, 4).WithPrefix(3)
	assert.Equal(t, "p3_td_node_5", g.BagTableName(5))
	assert.Equal(t, "p3_td_node_5_v", g.BagViewName(5))
	assert.Equal(t, "p3_td_node_5_candidate", g.BagCandidateTableName(5))
}

func TestReplaceDynamicTabsExpandsTemplatedSQL(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewFromDB(db, 4).WithPrefix(2)
	out := g.ReplaceDynamicTabs("SELECT * FROM td_node_1 JOIN td_node_2_v ON td_node_1.v1 = td_node_2_v.v1")
	assert.Equal(t, "SELECT * FROM p2_td_node_1 JOIN p2_td_node_2_v ON p2_td_node_1.v1 = p2_td_node_2_v.v1", out)
}

func TestCreateBagTableExecutesCreateAndIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE").WillReturnResult(sqlmock.NewResult(0, 0))

	g := NewFromDB(db, 4).WithPrefix(1)
	err = g.CreateBagTable(context.Background(), 2,
		[]ColumnDef{{Name: "v1", Type: "BOOLEAN"}},
		[]ColumnDef{{Name: "model_count", Type: "NUMERIC"}},
		[]string{"v1"},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMergeUsesOnDuplicateKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO .* ON DUPLICATE KEY UPDATE").WillReturnResult(sqlmock.NewResult(1, 1))

	g := NewFromDB(db, 4).WithPrefix(1)
	err = g.UpsertMerge(context.Background(), "td_node_1", []string{"v1", "model_count"}, []interface{}{true, 3}, []string{"v1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
