package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/metadata"
)

func newMockSource(t *testing.T) (*Source, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Source{db: db, schema: "shop", queryTimeout: 5 * time.Second}, mock
}

func TestListTables(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "table_comment"}).
			AddRow("shop", "orders", "customer orders").
			AddRow("shop", "users", ""))

	tables, err := src.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, metadata.TableRef{Schema: "shop", Name: "orders"}, tables[0].Ref)
	assert.Equal(t, "customer orders", tables[0].Comment)
	assert.Equal(t, "users", tables[1].Ref.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable(t *testing.T) {
	src, mock := newMockSource(t)
	ref := metadata.TableRef{Schema: "shop", Name: "orders"}

	mock.ExpectQuery("SELECT COALESCE\\(table_comment").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"table_comment"}).AddRow("customer orders"))

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{
			"column_name", "column_type", "is_nullable", "column_default", "column_key", "extra", "column_comment",
		}).
			AddRow("id", "bigint", false, nil, "PRI", "auto_increment", "order id").
			AddRow("user_id", "bigint", false, nil, "MUL", "", "").
			AddRow("note", "varchar(255)", true, "''", "", "", "free text"))

	mock.ExpectQuery("FROM information_schema.key_column_usage").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "referenced_table_name", "referenced_column_name"}).
			AddRow("user_id", "users", "id"))

	mock.ExpectQuery("FROM information_schema.statistics").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "column_name", "unique"}).
			AddRow("PRIMARY", "id", true).
			AddRow("idx_user_created", "user_id", false).
			AddRow("idx_user_created", "created_at", false))

	st, err := src.DescribeTable(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, ref, st.Ref)
	assert.Equal(t, "customer orders", st.Comment)

	require.Len(t, st.Columns, 3)
	assert.Equal(t, "id", st.Columns[0].Name)
	assert.Equal(t, "auto_increment", st.Columns[0].Extra)
	assert.True(t, st.Columns[2].Nullable)
	require.NotNil(t, st.Columns[2].Default)
	assert.Equal(t, "''", *st.Columns[2].Default)

	assert.Equal(t, []string{"id"}, st.PrimaryKey)

	require.Len(t, st.ForeignKeys, 1)
	assert.Equal(t, metadata.ForeignKey{Column: "user_id", RefTable: "users", RefColumn: "id"}, st.ForeignKeys[0])

	require.Len(t, st.Indexes, 2)
	assert.True(t, st.Indexes[0].Unique)
	assert.Equal(t, []string{"user_id", "created_at"}, st.Indexes[1].Columns)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable_NotFound(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery("SELECT COALESCE\\(table_comment").
		WithArgs("shop", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"table_comment"}))

	_, err := src.DescribeTable(context.Background(), metadata.TableRef{Schema: "shop", Name: "ghost"})
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestGenerateDDL(t *testing.T) {
	src, mock := newMockSource(t)

	mock.ExpectQuery("SHOW CREATE TABLE").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow("orders", "CREATE TABLE `orders` (...)"))

	ddl, err := src.GenerateDDL(context.Background(), metadata.TableRef{Schema: "shop", Name: "orders"})
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE")
}

func TestClassifyMySQLCode(t *testing.T) {
	tests := []struct {
		code uint16
		want errs.ErrKind
	}{
		{1045, errs.ErrKindPermissionDenied},
		{1142, errs.ErrKindPermissionDenied},
		{1049, errs.ErrKindConnectionFailed},
		{1146, errs.ErrKindNotFound},
		{1064, errs.ErrKindQueryFailed},
		{9999, errs.ErrKindQueryFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyMySQLCode(tt.code), "code %d", tt.code)
	}
}

func TestQuoteRef(t *testing.T) {
	tests := []struct {
		ref  metadata.TableRef
		want string
	}{
		{metadata.TableRef{Schema: "shop", Name: "orders"}, "`shop`.`orders`"},
		{metadata.TableRef{Name: "orders"}, "`orders`"},
		// Backticks inside an identifier must not break out of the quoting.
		{metadata.TableRef{Schema: "shop", Name: "or`ders"}, "`shop`.`or``ders`"},
		{metadata.TableRef{Name: "x` DROP TABLE y; --"}, "`x`` DROP TABLE y; --`"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quoteRef(tt.ref))
	}
}
