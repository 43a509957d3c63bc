package reader

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// fakeSets is a database/sql driver whose queries return canned result
// sets, so multi-result-set cursors can be exercised without a server.
const fakeDriverName = "sqribe-fakesets"

type fakeQuery struct {
	// noColumns mimics a batch that ran without selecting anything.
	noColumns bool
	sets      [][]any
	err       error
	onNext    func(set, row int)
}

var (
	fakeMu      sync.Mutex
	fakeQueries = map[string]*fakeQuery{}
	fakeOnce    sync.Once
)

func registerFake(text string, q *fakeQuery) {
	fakeOnce.Do(func() { sql.Register(fakeDriverName, fakeDriver{}) })
	fakeMu.Lock()
	defer fakeMu.Unlock()
	fakeQueries[text] = q
}

func openFake() (*sql.DB, error) {
	fakeOnce.Do(func() { sql.Register(fakeDriverName, fakeDriver{}) })
	return sql.Open(fakeDriverName, "")
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{}, nil }

type fakeConn struct{}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c *fakeConn) QueryContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	fakeMu.Lock()
	q, ok := fakeQueries[query]
	fakeMu.Unlock()
	if !ok {
		return nil, errors.New("Invalid object name '" + query + "'")
	}
	if q.err != nil {
		return nil, q.err
	}
	return &fakeRows{q: q}, nil
}

type fakeRows struct {
	q   *fakeQuery
	set int
	row int
}

func (r *fakeRows) Columns() []string {
	if r.q.noColumns {
		return nil
	}
	return []string{"definition"}
}

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.set >= len(r.q.sets) {
		return io.EOF
	}
	rows := r.q.sets[r.set]
	if r.row >= len(rows) {
		return io.EOF
	}
	if r.q.onNext != nil {
		r.q.onNext(r.set, r.row)
	}
	dest[0] = rows[r.row]
	r.row++
	return nil
}

func (r *fakeRows) HasNextResultSet() bool { return r.set+1 < len(r.q.sets) }

func (r *fakeRows) NextResultSet() error {
	if !r.HasNextResultSet() {
		return io.EOF
	}
	r.set++
	r.row = 0
	return nil
}
