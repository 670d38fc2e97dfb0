// Package dbgateway is a thin typed SQL composer over a bounded connection
// pool: it prefixes every bag table per problem id, exposes the handful of
// operations the DP core needs (create/drop table, create view, index,
// insert/select, upsert), and folds a templated "td_node_<k>" substitution so
// transition SQL can be built against bare bag ids and prefixed afterward.
package dbgateway

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dpdb/dpdb-go/internal/config"
	"github.com/dpdb/dpdb-go/internal/sqlutil"
)

// BuildDSN constructs a MySQL DSN from a database role's configuration.
func BuildDSN(cfg config.DBConfig) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	params := "?parseTime=true&multiStatements=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	default:
		params += "&tls=preferred"
	}
	return dsn + params
}

// Config names the database connection and the bounded pool's size.
type Config struct {
	DSN            string
	MaxConnections int
	MaxIdle        int
	ConnMaxLife    time.Duration
}

// Gateway is a connection pool plus a per-problem table prefix. The prefix
// is set once at construction and is immutable for the gateway's lifetime,
// matching the concurrency model's "per-problem prefixing is immutable
// during solve" guarantee.
type Gateway struct {
	db     *sql.DB
	prefix string
	sem    chan struct{} // counting semaphore bounding concurrent acquisitions
}

// Connect opens the pool, configures pool limits, and pings once; a failed
// ping closes the pool and returns the error without retrying.
func Connect(ctx context.Context, cfg Config) (*Gateway, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbgateway: opening: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLife)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbgateway: ping: %w", err)
	}

	permits := cfg.MaxConnections
	if permits <= 0 {
		permits = 12
	}
	return &Gateway{db: db, sem: make(chan struct{}, permits)}, nil
}

// NewFromDB wraps an already-open *sql.DB (used by tests with sqlmock, and
// by callers that share one pool across several problem-scoped gateways).
func NewFromDB(db *sql.DB, permits int) *Gateway {
	if permits <= 0 {
		permits = 12
	}
	return &Gateway{db: db, sem: make(chan struct{}, permits)}
}

// WithPrefix returns a copy of the gateway scoped to problem id's table
// prefix ("p<id>_"), sharing the same underlying pool and semaphore.
func (g *Gateway) WithPrefix(problemID int) *Gateway {
	return &Gateway{db: g.db, prefix: fmt.Sprintf("p%d_", problemID), sem: g.sem}
}

// Close closes the underlying pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// acquire blocks until a pool permit is free; release always runs via defer
// at the call site, matching the spec's "release is guaranteed on all exit
// paths" contract.
func (g *Gateway) acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) release() {
	<-g.sem
}

// sharedTables marks table names that must NOT receive the per-problem
// prefix (shared tables like "problem", "problem_option").
var sharedTables = map[string]struct{}{
	"problem":        {},
	"problem_option": {},
}

// TableName returns the prefixed identifier for name, unless name is one of
// the shared tables exempted from prefixing.
func (g *Gateway) TableName(name string) string {
	if _, skip := sharedTables[name]; skip {
		return name
	}
	return g.prefix + name
}

// BagTableName returns the prefixed table name for a tree-decomposition bag.
func (g *Gateway) BagTableName(bagID int) string {
	return g.TableName(fmt.Sprintf("td_node_%d", bagID))
}

// BagViewName returns the prefixed assignment-view name for a bag.
func (g *Gateway) BagViewName(bagID int) string {
	return g.TableName(fmt.Sprintf("td_node_%d_v", bagID))
}

// BagCandidateTableName returns the prefixed candidate-store table name for
// a bag (used when candidate_store=table).
func (g *Gateway) BagCandidateTableName(bagID int) string {
	return g.TableName(fmt.Sprintf("td_node_%d_candidate", bagID))
}

var dynamicTabPattern = regexp.MustCompile(`td_node_(\d+)(_v|_candidate)?`)

// ReplaceDynamicTabs textually substitutes every "td_node_<k>" occurrence in
// a SQL fragment with its prefixed form, so transition SQL can be authored
// against bare bag ids and templated afterward.
func (g *Gateway) ReplaceDynamicTabs(sqlFragment string) string {
	return dynamicTabPattern.ReplaceAllStringFunc(sqlFragment, func(match string) string {
		sub := dynamicTabPattern.FindStringSubmatch(match)
		id, err := strconv.Atoi(sub[1])
		if err != nil {
			return match
		}
		switch sub[2] {
		case "_v":
			return g.BagViewName(id)
		case "_candidate":
			return g.BagCandidateTableName(id)
		default:
			return g.BagTableName(id)
		}
	})
}

// ColumnDef is one column of a bag table: its name and SQL type.
type ColumnDef struct {
	Name string
	Type string
}

// CreateBagTable creates td_node_<bagID> with one boolean column per vertex
// plus problem-variant extra columns, and a unique index over the
// constraint-relevant columns enabling the upsert merge.
func (g *Gateway) CreateBagTable(ctx context.Context, bagID int, vertexCols []ColumnDef, extraCols []ColumnDef, constraintRelevant []string) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()

	table := g.BagTableName(bagID)
	var cols []string
	for _, c := range vertexCols {
		cols = append(cols, fmt.Sprintf("%s %s", sqlutil.QuoteIdentifier(c.Name), c.Type))
	}
	for _, c := range extraCols {
		cols = append(cols, fmt.Sprintf("%s %s", sqlutil.QuoteIdentifier(c.Name), c.Type))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", sqlutil.QuoteIdentifier(table), strings.Join(cols, ", "))
	if _, err := g.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("dbgateway: creating %s: %w", table, err)
	}

	if len(constraintRelevant) > 0 {
		idxCols := make([]string, len(constraintRelevant))
		for i, c := range constraintRelevant {
			idxCols[i] = sqlutil.QuoteIdentifier(c)
		}
		idxName := sqlutil.QuoteIdentifier(fmt.Sprintf("%s_constraint_uq", table))
		idxStmt := fmt.Sprintf("ALTER TABLE %s ADD UNIQUE INDEX %s (%s)",
			sqlutil.QuoteIdentifier(table), idxName, strings.Join(idxCols, ", "))
		if _, err := g.db.ExecContext(ctx, idxStmt); err != nil {
			return fmt.Errorf("dbgateway: indexing %s: %w", table, err)
		}
	}
	return nil
}

// DropTable drops a table if it exists.
func (g *Gateway) DropTable(ctx context.Context, name string) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	_, err := g.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", sqlutil.QuoteIdentifier(g.TableName(name))))
	return err
}

// CreateView creates (or replaces) a SQL view from a SELECT statement.
func (g *Gateway) CreateView(ctx context.Context, viewName, selectSQL string) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", sqlutil.QuoteIdentifier(viewName), g.ReplaceDynamicTabs(selectSQL))
	_, err := g.db.ExecContext(ctx, stmt)
	return err
}

// Exec runs an arbitrary templated statement (insert/insert-select/update)
// through the pool, expanding td_node_<k> references first.
func (g *Gateway) Exec(ctx context.Context, stmt string, args ...interface{}) (sql.Result, error) {
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.release()
	return g.db.ExecContext(ctx, g.ReplaceDynamicTabs(stmt), args...)
}

// QueryRow runs a templated single-row query through the pool.
func (g *Gateway) QueryRow(ctx context.Context, query string, args ...interface{}) (*sql.Row, error) {
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.release()
	return g.db.QueryRowContext(ctx, g.ReplaceDynamicTabs(query), args...), nil
}

// Query runs a templated multi-row query through the pool. The caller must
// close the returned rows.
func (g *Gateway) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.release()
	return g.db.QueryContext(ctx, g.ReplaceDynamicTabs(query), args...)
}

// UpsertMerge builds the idempotent-merge INSERT used by the iterative /
// approximate solving loop: MySQL's ON DUPLICATE KEY UPDATE, keyed by the
// table's unique index (the constraint-relevant index CreateBagTable adds),
// with model_count taking the greater of the existing and incoming value.
// constraintRelevant is quoted but does not appear in the statement.
func (g *Gateway) UpsertMerge(ctx context.Context, table string, cols []string, values []interface{}, constraintRelevant []string) error {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "?"
	}
	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = sqlutil.QuoteIdentifier(c)
	}
	conflictCols := make([]string, len(constraintRelevant))
	for i, c := range constraintRelevant {
		conflictCols[i] = sqlutil.QuoteIdentifier(c)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE model_count = GREATEST(%s.model_count, VALUES(model_count))",
		sqlutil.QuoteIdentifier(g.TableName(table)),
		strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ", "),
		sqlutil.QuoteIdentifier(g.TableName(table)),
	)
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	_, err := g.db.ExecContext(ctx, stmt, values...)
	return err
}
