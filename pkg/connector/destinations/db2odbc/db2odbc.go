// Package db2odbc implements the DB2 vote sink over ODBC.
package db2odbc

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/alexbrainman/odbc" // registers the "odbc" driver
	"go.uber.org/zap"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/core"
	"github.com/ajitpratap0/voterelay/pkg/errors"
	"github.com/ajitpratap0/voterelay/pkg/metrics"
	"github.com/ajitpratap0/voterelay/pkg/models"
)

const driverName = "odbc"

// conn is a connection scoped to one sink call
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// database is the part of *sql.DB the sink uses
type database interface {
	PingContext(ctx context.Context) error
	Conn(ctx context.Context) (conn, error)
	Close() error
}

type sqlDatabase struct {
	*sql.DB
}

func (d sqlDatabase) Conn(ctx context.Context) (conn, error) {
	return d.DB.Conn(ctx)
}

// openDatabase is replaced in tests
var openDatabase = func(dsn string) (database, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	// one iteration at a time; a second connection is never needed
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	return sqlDatabase{DB: db}, nil
}

// Sink writes votes to DB2 through the ODBC driver
type Sink struct {
	cfg    config.DB2Config
	logger *zap.Logger

	mu sync.Mutex
	db database
}

var _ core.Sink = (*Sink)(nil)

// NewSink creates an unconnected DB2 ODBC sink
func NewSink(cfg *config.Config, logger *zap.Logger) (core.Sink, error) {
	return &Sink{cfg: cfg.DB2, logger: logger}, nil
}

// Name returns the registry name
func (s *Sink) Name() string { return config.SinkDB2ODBC }

// Connect opens the handle and pings DB2. On failure the sink stays usable
// and the next operation tries again.
func (s *Sink) Connect(ctx context.Context) error {
	timer := metrics.NewTimer()
	_, err := s.getDB(ctx)
	metrics.ObserveSinkOperation(s.Name(), "connect", timer.Stop(), err)
	return err
}

func (s *Sink) getDB(ctx context.Context) (database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	dsn := DSN(s.cfg)
	s.logger.Debug("connecting to db2", zap.String("dsn", MaskDSN(dsn)))

	db, err := openDatabase(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to db2").
			WithDetail("hostname", s.cfg.Hostname)
	}
	if err := db.PingContext(ctx); err != nil {
		if cerr := db.Close(); cerr != nil {
			s.logger.Warn("failed to close db2 handle", zap.Error(cerr))
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to db2").
			WithDetail("hostname", s.cfg.Hostname)
	}

	s.logger.Info("connected to db2",
		zap.String("hostname", s.cfg.Hostname),
		zap.String("port", s.cfg.Port),
		zap.String("database", s.cfg.Database))
	s.db = db
	return db, nil
}

// EnsureTable creates {SCHEMA}.VOTES when missing
func (s *Sink) EnsureTable(ctx context.Context) error {
	timer := metrics.NewTimer()
	err := s.exec(ctx, CreateTableSQL(s.cfg.Schema), nil, errors.ErrorTypeInternal, "failed to create votes table")
	metrics.ObserveSinkOperation(s.Name(), "ensure_table", timer.Stop(), err)
	if err == nil {
		s.logger.Info("votes table ready", zap.String("table", s.cfg.Schema+".VOTES"))
	}
	return err
}

// Insert writes a single vote
func (s *Sink) Insert(ctx context.Context, vote *models.Vote) error {
	timer := metrics.NewTimer()
	err := s.exec(ctx, InsertSQL(s.cfg.Schema), []any{vote.VoterID, vote.Vote}, errors.ErrorTypeInsert, "failed to insert vote")
	metrics.ObserveSinkOperation(s.Name(), "insert", timer.Stop(), err)
	return err
}

func (s *Sink) exec(ctx context.Context, query string, args []any, errType errors.ErrorType, msg string) error {
	db, err := s.getDB(ctx)
	if err != nil {
		return err
	}

	c, err := db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to acquire db2 connection")
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			s.logger.Warn("failed to release db2 connection", zap.Error(cerr))
		}
	}()

	if _, err := c.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, errType, msg).WithDetail("schema", s.cfg.Schema)
	}
	return nil
}

// Close closes the handle and every pooled connection
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeClose, "failed to close db2 handle")
	}
	return nil
}

// DSN renders the ODBC connection string. DRIVER is always braced; other
// values are braced only when they contain ODBC delimiters.
func DSN(cfg config.DB2Config) string {
	return fmt.Sprintf("DRIVER=%s;DATABASE=%s;HOSTNAME=%s;PORT=%s;PROTOCOL=%s;UID=%s;PWD=%s;",
		brace(cfg.Driver), odbcValue(cfg.Database), odbcValue(cfg.Hostname), odbcValue(cfg.Port),
		odbcValue(cfg.Protocol), odbcValue(cfg.User), odbcValue(cfg.Password))
}

func odbcValue(v string) string {
	if strings.ContainsAny(v, ";{}=") || strings.TrimSpace(v) != v {
		return brace(v)
	}
	return v
}

// brace wraps v in braces, doubling any closing brace inside it
func brace(v string) string {
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}

var pwdPattern = regexp.MustCompile(`(?i)(PWD=)(\{(?:[^}]|\}\})*\}|[^;]*)`)

// MaskDSN hides the password of an ODBC connection string
func MaskDSN(dsn string) string {
	return pwdPattern.ReplaceAllString(dsn, "${1}****")
}

// CreateTableSQL returns the idempotent DDL for schema
func CreateTableSQL(schema string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.VOTES (ID VARCHAR(255) NOT NULL, VOTE VARCHAR(255) NOT NULL)", schema)
}

// InsertSQL returns the insert statement for schema
func InsertSQL(schema string) string {
	return fmt.Sprintf("INSERT INTO %s.VOTES VALUES (?, ?)", schema)
}
