// Package reader runs metadata queries in two passes: a count pass that
// sizes the progress denominator and an emit pass that streams each row's
// definition text.
package reader

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"iter"
	"net"
	"strings"

	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/pkg/errors"
)

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Template is an opaque query. Column names the result column that holds
// the definition text; empty means the first column.
type Template struct {
	Name   string
	Text   string
	Column string
}

type Cursor struct {
	q       Querier
	tmpl    Template
	args    []any
	total   int
	partial bool
}

func Open(q Querier, tmpl Template, args ...any) *Cursor {
	return &Cursor{q: q, tmpl: tmpl, args: args}
}

// Total is the row count from the last Count call.
func (c *Cursor) Total() int { return c.total }

// Partial reports whether the count pass was cut short by cancellation.
func (c *Cursor) Partial() bool { return c.partial }

// Count executes the query and counts rows across every result set without
// keeping them. Cancellation is not an error here: the rows seen so far
// are returned and Partial reports true.
func (c *Cursor) Count(ctx context.Context) (int, error) {
	c.total, c.partial = 0, false

	rows, err := c.execute(ctx)
	if err != nil {
		if domain.IsCancellation(err) {
			c.partial = true
			return 0, nil
		}
		return 0, err
	}
	defer rows.Close()

	total := 0
	for range resultSets(rows) {
		for rows.Next() {
			if ctx.Err() != nil {
				c.total, c.partial = total, true
				return total, nil
			}
			total++
		}
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			c.total, c.partial = total, true
			return total, nil
		}
		return total, classify(c.tmpl.Name, err)
	}

	c.total = total
	return total, nil
}

// Emit re-executes the query and calls fn with the definition text of each
// row, in server order across result sets. Cancellation is checked before
// every row; when it trips no further rows are passed to fn and
// domain.ErrCancellationRequested is returned with the number emitted.
func (c *Cursor) Emit(ctx context.Context, fn func(text string) error) (int, error) {
	if ctx.Err() != nil {
		return 0, domain.ErrCancellationRequested
	}

	rows, err := c.execute(ctx)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	emitted := 0
	for range resultSets(rows) {
		target, dest, err := c.scanTargets(rows)
		if err != nil {
			return emitted, err
		}
		if target == nil {
			continue
		}
		for rows.Next() {
			if ctx.Err() != nil {
				return emitted, domain.ErrCancellationRequested
			}
			if err := rows.Scan(dest...); err != nil {
				return emitted, &domain.QueryError{Query: c.tmpl.Name, Err: errors.Wrap(err, "scan row")}
			}
			if err := fn(target.String); err != nil {
				return emitted, err
			}
			emitted++
		}
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return emitted, domain.ErrCancellationRequested
		}
		return emitted, classify(c.tmpl.Name, err)
	}
	return emitted, nil
}

// execute waits for the query on a goroutine so that cancellation is
// observed even while the driver is still blocked.
func (c *Cursor) execute(ctx context.Context) (*sql.Rows, error) {
	type result struct {
		rows *sql.Rows
		err  error
	}
	done := make(chan result, 1)
	go func() {
		rows, err := c.q.QueryContext(ctx, c.tmpl.Text, c.args...)
		done <- result{rows: rows, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, domain.ErrCancellationRequested
			}
			return nil, classify(c.tmpl.Name, r.err)
		}
		return r.rows, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.rows != nil {
				_ = r.rows.Close()
			}
		}()
		return nil, domain.ErrCancellationRequested
	}
}

// scanTargets builds Scan destinations for the current result set. The
// definition column lands in the returned NullString; NULL reads as "".
// A result set without columns, as returned for a batch that selected
// nothing, yields a nil target and is skipped.
func (c *Cursor) scanTargets(rows *sql.Rows) (*sql.NullString, []any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, classify(c.tmpl.Name, err)
	}
	if len(cols) == 0 {
		return nil, nil, nil
	}

	idx := 0
	if c.tmpl.Column != "" {
		idx = -1
		for i, col := range cols {
			if strings.EqualFold(col, c.tmpl.Column) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, &domain.QueryError{Query: c.tmpl.Name, Err: errors.Errorf("column %s not in result set", c.tmpl.Column)}
		}
	}

	target := new(sql.NullString)
	dest := make([]any, len(cols))
	for i := range dest {
		if i == idx {
			dest[i] = target
			continue
		}
		dest[i] = new(any)
	}
	return target, dest, nil
}

// resultSets yields once per result set, advancing rows between yields.
func resultSets(rows *sql.Rows) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
			if !rows.NextResultSet() {
				return
			}
		}
	}
}

func classify(name string, err error) error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.As(err, &netErr) {
		return &domain.ConnectionError{Op: "query " + name, Err: err}
	}
	return &domain.QueryError{Query: name, Err: err}
}
