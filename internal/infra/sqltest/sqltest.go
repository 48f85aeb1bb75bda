// Package sqltest provides an in-memory infra.SQLExecutor for unit tests.
package sqltest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call records one statement sent to the executor.
type Call struct {
	Query string
	Args  []any
}

// Executor dispatches statements to the configured funcs. Unset funcs behave
// like an empty database: Exec affects one row, QueryRow finds nothing and
// Query returns no rows.
type Executor struct {
	ExecFn     func(query string, args []any) (pgconn.CommandTag, error)
	QueryRowFn func(query string, args []any) pgx.Row
	QueryFn    func(query string, args []any) (pgx.Rows, error)

	mu    sync.Mutex
	calls []Call
}

func (e *Executor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	e.record(query, args)
	if e.ExecFn != nil {
		return e.ExecFn(query, args)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (e *Executor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	e.record(query, args)
	if e.QueryRowFn != nil {
		return e.QueryRowFn(query, args)
	}
	return Row{Err: pgx.ErrNoRows}
}

func (e *Executor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	e.record(query, args)
	if e.QueryFn != nil {
		return e.QueryFn(query, args)
	}
	return &Rows{}, nil
}

// Calls returns a copy of the recorded statements.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallsFor returns the recorded calls for one statement.
func (e *Executor) CallsFor(query string) []Call {
	var out []Call
	for _, c := range e.Calls() {
		if c.Query == query {
			out = append(out, c)
		}
	}
	return out
}

func (e *Executor) record(query string, args []any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Query: query, Args: args})
}

// Tag builds a command tag reporting n affected rows.
func Tag(n int) pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n))
}

// Row is a single result row. Values are assigned to Scan destinations in order.
type Row struct {
	Values []any
	Err    error
}

func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assignAll(dest, r.Values)
}

// Rows iterates over Data. Err is reported after iteration ends.
type Rows struct {
	Data   [][]any
	Failed error

	idx    int
	closed bool
}

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error { return r.Failed }

func (r *Rows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *Rows) Next() bool {
	if r.closed || r.idx >= len(r.Data) {
		return false
	}
	r.idx++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.Data) {
		return fmt.Errorf("sqltest: scan called without a current row")
	}
	return assignAll(dest, r.Data[r.idx-1])
}

func (r *Rows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.Data) {
		return nil, fmt.Errorf("sqltest: no current row")
	}
	return r.Data[r.idx-1], nil
}

func (r *Rows) RawValues() [][]byte { return nil }

func (r *Rows) Conn() *pgx.Conn { return nil }

func assignAll(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("sqltest: scan %d destinations from %d values", len(dest), len(values))
	}
	for i := range dest {
		if err := assign(dest[i], values[i]); err != nil {
			return fmt.Errorf("sqltest: column %d: %w", i, err)
		}
	}
	return nil
}

// assign copies src into the pointer dest. Values may be given as the element
// type of a pointer destination, and convertible types are converted.
func assign(dest, src any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	target := dv.Elem()
	if src == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(target.Type()):
		target.Set(sv)
	case target.Kind() == reflect.Pointer && sv.Type().AssignableTo(target.Type().Elem()):
		ptr := reflect.New(target.Type().Elem())
		ptr.Elem().Set(sv)
		target.Set(ptr)
	case sv.Type().ConvertibleTo(target.Type()):
		target.Set(sv.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", src, target.Type())
	}
	return nil
}
