package mocks

import (
	"context"
	"errors"
	"sync"

	"aitale-server/internal/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errFakeDB = errors.New("fake querier: no database behind mocked repositories")

// FakeDBTX is passed to mocked repositories. It never talks to a database.
type FakeDBTX struct{}

var _ interfaces.DBTX = FakeDBTX{}

func (FakeDBTX) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errFakeDB
}
func (FakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errFakeDB
}
func (FakeDBTX) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{}
}

type fakeRow struct{}

func (fakeRow) Scan(...any) error { return errFakeDB }

// FakeConn is a released-on-demand FakeDBTX.
type FakeConn struct {
	FakeDBTX
	released bool
}

func (c *FakeConn) Release() { c.released = true }

// TxManager runs WithinTx callbacks inline and counts commits and rollbacks.
type TxManager struct {
	mu         sync.Mutex
	AcquireErr error
	Commits    int
	Rollbacks  int
	Acquired   int
}

var _ interfaces.TxManager = (*TxManager)(nil)

func (m *TxManager) Querier() interfaces.DBTX { return FakeDBTX{} }

func (m *TxManager) Acquire(ctx context.Context) (interfaces.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}
	m.Acquired++
	return &FakeConn{}, nil
}

func (m *TxManager) WithinTx(ctx context.Context, fn func(tx interfaces.DBTX) error) error {
	err := fn(FakeDBTX{})
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// Stats returns commits and rollbacks seen so far.
func (m *TxManager) Stats() (commits, rollbacks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Commits, m.Rollbacks
}
