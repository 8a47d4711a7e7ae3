package postgres

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/errors"
	"github.com/ajitpratap0/voterelay/pkg/models"
	"github.com/ajitpratap0/voterelay/pkg/testutil"
)

type execCall struct {
	sql  string
	args []any
}

type mockTx struct {
	pgx.Tx
	pool        *mockPool
	committed   bool
	rolledBack  bool
	execErr     error
	commitErr   error
	rollbackErr error
}

func (tx *mockTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.pool.execs = append(tx.pool.execs, execCall{sql: sql, args: args})
	if tx.execErr != nil {
		return pgconn.CommandTag{}, tx.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *mockTx) Commit(context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *mockTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return tx.rollbackErr
}

type mockPool struct {
	pingErr     error
	beginErr    error
	execErr     error
	rollbackErr error
	closed      bool
	execs       []execCall
	txs         []*mockTx
}

func (p *mockPool) Ping(context.Context) error { return p.pingErr }

func (p *mockPool) Begin(context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	tx := &mockTx{pool: p, execErr: p.execErr, rollbackErr: p.rollbackErr}
	p.txs = append(p.txs, tx)
	return tx, nil
}

func (p *mockPool) Close() { p.closed = true }

// withPools makes newPool hand out the given pools in order
func withPools(t *testing.T, pools ...*mockPool) *int {
	t.Helper()
	orig := newPool
	calls := 0
	newPool = func(context.Context, string, int32) (pgxPool, error) {
		if calls >= len(pools) {
			return nil, stderrors.New("no more pools")
		}
		p := pools[calls]
		calls++
		return p, nil
	}
	t.Cleanup(func() { newPool = orig })
	return &calls
}

func newTestSink(t *testing.T) *Sink {
	sink, err := NewSink(config.Default(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return sink.(*Sink)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.PostgresConfig{
		Host:     "postgresql",
		Port:     5432,
		Database: "db",
		User:     "admin",
		Password: `it's a \secret`,
	})
	assert.Equal(t, `host='postgresql' port=5432 dbname='db' user='admin' password='it\'s a \\secret'`, dsn)
}

func TestSink_EnsureTable(t *testing.T) {
	pool := &mockPool{}
	withPools(t, pool)
	sink := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.EnsureTable(ctx))
	require.NoError(t, sink.EnsureTable(ctx))

	require.Len(t, pool.execs, 2)
	assert.Equal(t, createTableSQL, pool.execs[0].sql)
	assert.Contains(t, pool.execs[0].sql, "IF NOT EXISTS")
	for _, tx := range pool.txs {
		assert.True(t, tx.committed)
	}
}

func TestSink_Insert(t *testing.T) {
	pool := &mockPool{}
	withPools(t, pool)
	sink := newTestSink(t)

	require.NoError(t, sink.Insert(context.Background(), &models.Vote{VoterID: "abc123", Vote: "b"}))

	require.Len(t, pool.execs, 1)
	assert.Equal(t, "INSERT INTO votes VALUES ($1, $2)", pool.execs[0].sql)
	assert.Equal(t, []any{"abc123", "b"}, pool.execs[0].args)
	assert.True(t, pool.txs[0].committed)
	assert.False(t, pool.txs[0].rolledBack)
}

func TestSink_InsertFailureRollsBack(t *testing.T) {
	pool := &mockPool{execErr: stderrors.New("duplicate key value")}
	withPools(t, pool)
	sink := newTestSink(t)

	err := sink.Insert(context.Background(), &models.Vote{VoterID: "abc123", Vote: "b"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInsert))
	assert.Contains(t, err.Error(), "duplicate key value")

	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].rolledBack)
	assert.False(t, pool.txs[0].committed)
}

func TestSink_RollbackFailureIsLogged(t *testing.T) {
	withPools(t, &mockPool{
		execErr:     stderrors.New("constraint"),
		rollbackErr: stderrors.New("connection lost"),
	})

	logger, logs := testutil.ObservedLogger()
	sink, err := NewSink(config.Default(), logger)
	require.NoError(t, err)

	err = sink.Insert(context.Background(), &models.Vote{VoterID: "1", Vote: "a"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInsert))
	assert.Equal(t, 1, logs.FilterMessage("rollback failed").Len())
}

func TestSink_ConnectFailureThenLazyReconnect(t *testing.T) {
	down := &mockPool{pingErr: stderrors.New("connection refused")}
	up := &mockPool{}
	calls := withPools(t, down, up)
	sink := newTestSink(t)
	ctx := context.Background()

	err := sink.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.True(t, down.closed)

	// the next operation creates a new pool
	require.NoError(t, sink.Insert(ctx, &models.Vote{VoterID: "1", Vote: "a"}))
	assert.Equal(t, 2, *calls)
	assert.Len(t, up.execs, 1)

	// and keeps using it
	require.NoError(t, sink.Insert(ctx, &models.Vote{VoterID: "2", Vote: "b"}))
	assert.Equal(t, 2, *calls)
}

func TestSink_InsertWhenUnreachable(t *testing.T) {
	withPools(t, &mockPool{pingErr: stderrors.New("connection refused")})
	sink := newTestSink(t)

	err := sink.Insert(context.Background(), &models.Vote{VoterID: "1", Vote: "a"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestSink_BeginFailure(t *testing.T) {
	withPools(t, &mockPool{beginErr: stderrors.New("pool exhausted")})
	sink := newTestSink(t)

	err := sink.Insert(context.Background(), &models.Vote{VoterID: "1", Vote: "a"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInsert))
}

func TestSink_Close(t *testing.T) {
	pool := &mockPool{}
	withPools(t, pool)
	sink := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Close(ctx))
	require.NoError(t, sink.Connect(ctx))
	require.NoError(t, sink.Close(ctx))
	assert.True(t, pool.closed)
	assert.Nil(t, sink.pool)
}

func TestSink_Integration(t *testing.T) {
	pgCfg := testutil.NewPostgres(t)
	ctx := testutil.TestContext(t)

	cfg := config.Default()
	cfg.Postgres = pgCfg
	raw, err := NewSink(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	sink := raw.(*Sink)
	t.Cleanup(func() { _ = sink.Close(context.Background()) })

	require.NoError(t, sink.Connect(ctx))
	require.NoError(t, sink.EnsureTable(ctx))
	require.NoError(t, sink.EnsureTable(ctx))

	require.NoError(t, sink.Insert(ctx, &models.Vote{VoterID: "abc123", Vote: "b"}))
	require.NoError(t, sink.Insert(ctx, &models.Vote{VoterID: "abc123", Vote: "a"}))

	pool, err := sink.getPool(ctx)
	require.NoError(t, err)
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	var count int
	require.NoError(t, tx.QueryRow(ctx, `SELECT count(*) FROM public.votes WHERE id = $1`, "abc123").Scan(&count))
	assert.Equal(t, 2, count)
}
