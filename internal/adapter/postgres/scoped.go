package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
)

// ErrTenantOverride is returned when a write names the owner column.
// Ownership is stamped from the context and cannot be supplied or changed.
var ErrTenantOverride = errors.New("tenant_id is assigned from the request context")

const (
	idColumn     = "id"
	tenantColumn = "tenant_id"
)

// Values maps column names to values for Scoped.Insert and Scoped.Update.
type Values map[string]any

// Table describes a tenant-owned table.
type Table[T any] struct {
	Name string
	// Columns are selected in this order and handed to Scan.
	Columns []string
	// Writable lists the columns accepted in Values.
	Writable []string
	OrderBy  string
	// Touch, if set, is assigned now() on every Update.
	Touch string
	Scan  func(row scannable) (T, error)
}

// Scoped is a repository over one tenant-owned table. Every read and write
// it issues carries the tenant predicate taken from the context, except
// Locate which binds an identifier for a subsequent ownership check.
type Scoped[T any] struct {
	db    querier
	table Table[T]

	columns string // sanitized select list
	name    string // sanitized table name
}

// NewScoped returns a Scoped repository for table.
func NewScoped[T any](db querier, table Table[T]) *Scoped[T] {
	return &Scoped[T]{
		db:      db,
		table:   table,
		columns: identList(table.Columns),
		name:    ident(table.Name),
	}
}

// List returns one page of the tenant's rows in the table's order.
func (s *Scoped[T]) List(ctx context.Context, page domain.PageRequest) ([]T, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name, err)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1%s LIMIT $2 OFFSET $3",
		s.columns, s.name, ident(tenantColumn), s.orderBy())
	return s.collect(ctx, q, tid, page.Size, page.Offset())
}

// All returns every row of the tenant in the table's order.
func (s *Scoped[T]) All(ctx context.Context) ([]T, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name, err)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1%s",
		s.columns, s.name, ident(tenantColumn), s.orderBy())
	return s.collect(ctx, q, tid)
}

// Count returns the number of rows the tenant owns.
func (s *Scoped[T]) Count(ctx context.Context) (int, error) {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table.Name, err)
	}
	var n int
	q := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1", s.name, ident(tenantColumn))
	if err := s.db.QueryRow(ctx, q, tid).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table.Name, err)
	}
	return n, nil
}

// Get returns the row with id if the tenant owns it.
func (s *Scoped[T]) Get(ctx context.Context, id any) (T, error) {
	return s.FindBy(ctx, idColumn, id)
}

// FindBy returns the tenant's row whose column equals value.
func (s *Scoped[T]) FindBy(ctx context.Context, column string, value any) (T, error) {
	var zero T
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", s.table.Name, err)
	}
	if !slices.Contains(s.table.Columns, column) {
		return zero, fmt.Errorf("get %s: unknown column %q", s.table.Name, column)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 AND %s = $2",
		s.columns, s.name, ident(column), ident(tenantColumn))
	item, err := s.table.Scan(s.db.QueryRow(ctx, q, value, tid))
	if err != nil {
		return zero, notFoundWrap(err, "get %s %s=%v", s.table.Name, column, value)
	}
	return item, nil
}

// Locate returns the row with id regardless of its owner. The caller must
// pass the row's tenant_id to tenant.Authorize before exposing or modifying
// it. A tenant must still be bound to ctx.
func (s *Scoped[T]) Locate(ctx context.Context, id any) (T, error) {
	var zero T
	if _, err := tenant.IDFromContext(ctx); err != nil {
		return zero, fmt.Errorf("locate %s: %w", s.table.Name, err)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", s.columns, s.name, ident(idColumn))
	item, err := s.table.Scan(s.db.QueryRow(ctx, q, id))
	if err != nil {
		return zero, notFoundWrap(err, "locate %s %v", s.table.Name, id)
	}
	return item, nil
}

// Insert creates a row owned by the context tenant.
func (s *Scoped[T]) Insert(ctx context.Context, values Values) (T, error) {
	var zero T
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return zero, fmt.Errorf("insert %s: %w", s.table.Name, err)
	}
	cols, err := s.writableColumns(values)
	if err != nil {
		return zero, fmt.Errorf("insert %s: %w", s.table.Name, err)
	}

	names := []string{ident(tenantColumn)}
	marks := []string{"$1"}
	args := []any{tid}
	for _, c := range cols {
		args = append(args, values[c])
		names = append(names, ident(c))
		marks = append(marks, fmt.Sprintf("$%d", len(args)))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.name, strings.Join(names, ", "), strings.Join(marks, ", "), s.columns)

	item, err := s.table.Scan(s.db.QueryRow(ctx, q, args...))
	if err != nil {
		return zero, uniqueWrap(err, "insert %s", s.table.Name)
	}
	return item, nil
}

// Update changes the given columns of the tenant's row with id and returns
// the updated row. A row owned by another tenant is not found.
func (s *Scoped[T]) Update(ctx context.Context, id any, values Values) (T, error) {
	var zero T
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", s.table.Name, err)
	}
	cols, err := s.writableColumns(values)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", s.table.Name, err)
	}

	var sets []string
	var args []any
	for _, c := range cols {
		args = append(args, values[c])
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(c), len(args)))
	}
	if s.table.Touch != "" {
		sets = append(sets, ident(s.table.Touch)+" = now()")
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	args = append(args, id, tid)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d AND %s = $%d RETURNING %s",
		s.name, strings.Join(sets, ", "), ident(idColumn), len(args)-1, ident(tenantColumn), len(args), s.columns)

	item, err := s.table.Scan(s.db.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, notFoundWrap(err, "update %s %v", s.table.Name, id)
		}
		return zero, uniqueWrap(err, "update %s %v", s.table.Name, id)
	}
	return item, nil
}

// Delete removes the tenant's row with id.
func (s *Scoped[T]) Delete(ctx context.Context, id any) error {
	tid, err := tenant.IDFromContext(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table.Name, err)
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2", s.name, ident(idColumn), ident(tenantColumn))
	tag, err := s.db.Exec(ctx, q, id, tid)
	return execExpectOne(tag, err, "delete %s %v", s.table.Name, id)
}

func (s *Scoped[T]) collect(ctx context.Context, q string, args ...any) ([]T, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name, err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := s.table.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table.Name, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name, err)
	}
	return orEmpty(items), nil
}

func (s *Scoped[T]) orderBy() string {
	if s.table.OrderBy == "" {
		return ""
	}
	return " ORDER BY " + s.table.OrderBy
}

// writableColumns validates the keys of values and returns them sorted so
// the generated SQL is deterministic.
func (s *Scoped[T]) writableColumns(values Values) ([]string, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if c == tenantColumn {
			return nil, ErrTenantOverride
		}
		if !slices.Contains(s.table.Writable, c) {
			return nil, fmt.Errorf("column %q is not writable", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = ident(n)
	}
	return strings.Join(out, ", ")
}
