package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"products-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB stands in for the pool. Each call records the SQL and arguments it received.
type fakeDB struct {
	rows     []*domain.Product
	err      error
	block    bool
	lastSQL  string
	lastArgs []any
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{products: f.rows, index: -1}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	if f.block {
		<-ctx.Done()
		return fakeRow{err: ctx.Err()}
	}
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{product: f.rows[0]}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not used")
}

type fakeRow struct {
	product *domain.Product
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.product, dest)
}

type fakeRows struct {
	products []*domain.Product
	index    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.index++
	return r.index < len(r.products)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.products[r.index], dest)
}

func scanInto(p *domain.Product, dest []any) error {
	if len(dest) != 5 {
		return fmt.Errorf("expected 5 destinations, got %d", len(dest))
	}
	*dest[0].(*int64) = p.ID
	*dest[1].(*string) = p.Name
	*dest[2].(*string) = p.Price
	*dest[3].(**string) = p.Description
	*dest[4].(*time.Time) = p.CreatedAt
	return nil
}

func strPtr(s string) *string {
	return &s
}
