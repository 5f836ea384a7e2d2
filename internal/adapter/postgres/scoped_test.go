package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/tenant"
)

// --- fake querier ---

type call struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls    []call
	row      []any // values returned by QueryRow, nil means pgx.ErrNoRows
	rows     [][]any
	affected int64
	err      error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{sql, args})
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("DELETE " + strconv.FormatInt(f.affected, 10)), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, call{sql, args})
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{sql, args})
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	if f.row == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: f.row}
}

func (f *fakeDB) last(t *testing.T) call {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("no query issued")
	}
	return f.calls[len(f.calls)-1]
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.vals, dest)
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx < len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return assign(r.rows[r.idx], dest) }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func assign(vals, dest []any) error {
	if len(vals) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = vals[i].(int64)
		case *int:
			*p = vals[i].(int)
		case *string:
			*p = vals[i].(string)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

// --- fixture table ---

type note struct {
	ID       int64
	TenantID int64
	Body     string
}

var noteTable = Table[note]{
	Name:     "notes",
	Columns:  []string{"id", "tenant_id", "body"},
	Writable: []string{"body"},
	OrderBy:  `"id" DESC`,
	Touch:    "updated_at",
	Scan: func(row scannable) (note, error) {
		var n note
		err := row.Scan(&n.ID, &n.TenantID, &n.Body)
		return n, err
	},
}

func tenantCtx(id int64) context.Context {
	return tenant.NewContext(context.Background(), tenant.Tenant{ID: id, Name: "t"})
}

func TestScopedFailsClosedWithoutTenant(t *testing.T) {
	db := &fakeDB{row: []any{int64(1), int64(7), "x"}}
	repo := NewScoped(db, noteTable)
	ctx := context.Background()

	ops := map[string]func() error{
		"List":   func() error { _, err := repo.List(ctx, domain.PageRequest{Number: 1, Size: 15}); return err },
		"All":    func() error { _, err := repo.All(ctx); return err },
		"Count":  func() error { _, err := repo.Count(ctx); return err },
		"Get":    func() error { _, err := repo.Get(ctx, int64(1)); return err },
		"FindBy": func() error { _, err := repo.FindBy(ctx, "body", "x"); return err },
		"Locate": func() error { _, err := repo.Locate(ctx, int64(1)); return err },
		"Insert": func() error { _, err := repo.Insert(ctx, Values{"body": "x"}); return err },
		"Update": func() error { _, err := repo.Update(ctx, int64(1), Values{"body": "x"}); return err },
		"Delete": func() error { return repo.Delete(ctx, int64(1)) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, tenant.ErrNoTenant) {
				t.Fatalf("expected ErrNoTenant, got %v", err)
			}
		})
	}
	if len(db.calls) != 0 {
		t.Fatalf("expected no queries without a tenant, got %d", len(db.calls))
	}
}

func TestScopedListCarriesTenantPredicate(t *testing.T) {
	db := &fakeDB{rows: [][]any{{int64(2), int64(7), "b"}, {int64(1), int64(7), "a"}}}
	repo := NewScoped(db, noteTable)

	items, err := repo.List(tenantCtx(7), domain.PageRequest{Number: 2, Size: 15})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Body != "b" {
		t.Fatalf("unexpected items: %+v", items)
	}

	c := db.last(t)
	want := `SELECT "id", "tenant_id", "body" FROM "notes" WHERE "tenant_id" = $1 ORDER BY "id" DESC LIMIT $2 OFFSET $3`
	if c.sql != want {
		t.Fatalf("sql:\n got %s\nwant %s", c.sql, want)
	}
	if c.args[0] != int64(7) || c.args[1] != 15 || c.args[2] != 15 {
		t.Fatalf("unexpected args: %v", c.args)
	}
}

func TestScopedListEmptyIsNotNil(t *testing.T) {
	repo := NewScoped(&fakeDB{}, noteTable)
	items, err := repo.All(tenantCtx(7))
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if items == nil {
		t.Fatal("expected empty slice, got nil")
	}
}

func TestScopedCount(t *testing.T) {
	db := &fakeDB{row: []any{42}}
	n, err := NewScoped(db, noteTable).Count(tenantCtx(3))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
	c := db.last(t)
	if c.sql != `SELECT count(*) FROM "notes" WHERE "tenant_id" = $1` || c.args[0] != int64(3) {
		t.Fatalf("unexpected query %q %v", c.sql, c.args)
	}
}

func TestScopedGet(t *testing.T) {
	db := &fakeDB{row: []any{int64(5), int64(7), "x"}}
	n, err := NewScoped(db, noteTable).Get(tenantCtx(7), int64(5))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.ID != 5 {
		t.Fatalf("unexpected note: %+v", n)
	}
	c := db.last(t)
	if !strings.HasSuffix(c.sql, `WHERE "id" = $1 AND "tenant_id" = $2`) {
		t.Fatalf("missing tenant predicate: %s", c.sql)
	}
	if c.args[0] != int64(5) || c.args[1] != int64(7) {
		t.Fatalf("unexpected args: %v", c.args)
	}
}

func TestScopedGetNotFound(t *testing.T) {
	_, err := NewScoped(&fakeDB{}, noteTable).Get(tenantCtx(7), int64(5))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScopedFindByRejectsUnknownColumn(t *testing.T) {
	db := &fakeDB{}
	_, err := NewScoped(db, noteTable).FindBy(tenantCtx(7), "body; DROP TABLE notes", "x")
	if err == nil {
		t.Fatal("expected error for unknown column")
	}
	if len(db.calls) != 0 {
		t.Fatal("expected no query")
	}
}

func TestScopedLocateIsUnfiltered(t *testing.T) {
	db := &fakeDB{row: []any{int64(5), int64(9), "other"}}
	n, err := NewScoped(db, noteTable).Locate(tenantCtx(7), int64(5))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if n.TenantID != 9 {
		t.Fatalf("expected owner 9, got %d", n.TenantID)
	}
	c := db.last(t)
	if strings.Contains(c.sql, "tenant_id\" =") || len(c.args) != 1 {
		t.Fatalf("locate must bind by id only: %s %v", c.sql, c.args)
	}
	if err := tenant.Authorize(tenantCtx(7), n.TenantID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected foreign row to be not found, got %v", err)
	}
}

func TestScopedInsertStampsTenant(t *testing.T) {
	db := &fakeDB{row: []any{int64(1), int64(7), "hello"}}
	n, err := NewScoped(db, noteTable).Insert(tenantCtx(7), Values{"body": "hello"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n.TenantID != 7 {
		t.Fatalf("unexpected tenant: %d", n.TenantID)
	}
	c := db.last(t)
	want := `INSERT INTO "notes" ("tenant_id", "body") VALUES ($1, $2) RETURNING "id", "tenant_id", "body"`
	if c.sql != want {
		t.Fatalf("sql:\n got %s\nwant %s", c.sql, want)
	}
	if c.args[0] != int64(7) || c.args[1] != "hello" {
		t.Fatalf("unexpected args: %v", c.args)
	}
}

func TestScopedRejectsTenantOverride(t *testing.T) {
	db := &fakeDB{row: []any{int64(1), int64(7), "x"}}
	repo := NewScoped(db, noteTable)
	ctx := tenantCtx(7)

	if _, err := repo.Insert(ctx, Values{"body": "x", "tenant_id": int64(9)}); !errors.Is(err, ErrTenantOverride) {
		t.Fatalf("insert: expected ErrTenantOverride, got %v", err)
	}
	if _, err := repo.Update(ctx, int64(1), Values{"tenant_id": int64(9)}); !errors.Is(err, ErrTenantOverride) {
		t.Fatalf("update: expected ErrTenantOverride, got %v", err)
	}
	if len(db.calls) != 0 {
		t.Fatalf("expected no queries, got %d", len(db.calls))
	}
}

func TestScopedRejectsUnwritableColumn(t *testing.T) {
	db := &fakeDB{}
	if _, err := NewScoped(db, noteTable).Insert(tenantCtx(7), Values{"id": int64(99)}); err == nil {
		t.Fatal("expected error for unwritable column")
	}
}

func TestScopedUpdate(t *testing.T) {
	db := &fakeDB{row: []any{int64(5), int64(7), "new"}}
	n, err := NewScoped(db, noteTable).Update(tenantCtx(7), int64(5), Values{"body": "new"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Body != "new" {
		t.Fatalf("unexpected body: %q", n.Body)
	}
	c := db.last(t)
	want := `UPDATE "notes" SET "body" = $1, "updated_at" = now() WHERE "id" = $2 AND "tenant_id" = $3 RETURNING "id", "tenant_id", "body"`
	if c.sql != want {
		t.Fatalf("sql:\n got %s\nwant %s", c.sql, want)
	}
	if c.args[1] != int64(5) || c.args[2] != int64(7) {
		t.Fatalf("unexpected args: %v", c.args)
	}
}

func TestScopedUpdateForeignRowNotFound(t *testing.T) {
	_, err := NewScoped(&fakeDB{}, noteTable).Update(tenantCtx(7), int64(5), Values{"body": "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScopedDelete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"foreign or missing", 0, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{affected: tt.affected}
			err := NewScoped(db, noteTable).Delete(tenantCtx(7), int64(5))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			c := db.last(t)
			if c.sql != `DELETE FROM "notes" WHERE "id" = $1 AND "tenant_id" = $2` {
				t.Fatalf("unexpected sql: %s", c.sql)
			}
		})
	}
}

func TestUniqueWrap(t *testing.T) {
	err := uniqueWrap(&pgconn.PgError{Code: "23505"}, "insert users")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	err = uniqueWrap(errors.New("boom"), "insert users")
	if errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatal("unexpected ErrAlreadyExists")
	}
}
