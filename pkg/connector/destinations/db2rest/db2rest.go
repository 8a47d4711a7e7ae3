// Package db2rest implements the DB2 vote sink that posts each vote to a
// REST service in front of the database.
package db2rest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voterelay/pkg/clients"
	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/core"
	"github.com/ajitpratap0/voterelay/pkg/errors"
	"github.com/ajitpratap0/voterelay/pkg/metrics"
	"github.com/ajitpratap0/voterelay/pkg/models"
)

// maxLoggedBody caps how much of a response body is read for logging
const maxLoggedBody = 4096

// Sink posts votes to the DB2 REST endpoint
type Sink struct {
	cfg    config.DB2Config
	debug  bool
	logger *zap.Logger
	client *clients.HTTPClient

	mu       sync.Mutex
	endpoint string
}

var _ core.Sink = (*Sink)(nil)

// NewSink creates a REST sink. No request is made until Insert.
func NewSink(cfg *config.Config, logger *zap.Logger) (core.Sink, error) {
	return &Sink{
		cfg:    cfg.DB2,
		debug:  cfg.Debug,
		logger: logger,
		client: clients.NewHTTPClient(clients.DefaultHTTPConfig(), logger),
	}, nil
}

// Name returns the registry name
func (s *Sink) Name() string { return config.SinkDB2REST }

// Connect checks the configured URL. It makes no network call.
func (s *Sink) Connect(ctx context.Context) error {
	timer := metrics.NewTimer()
	_, err := s.getEndpoint()
	metrics.ObserveSinkOperation(s.Name(), "connect", timer.Stop(), err)
	return err
}

func (s *Sink) getEndpoint() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endpoint != "" {
		return s.endpoint, nil
	}

	u, err := url.Parse(s.cfg.RESTURL)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid DB2 REST URL")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.Newf(errors.ErrorTypeConfig, "invalid DB2 REST URL %q", s.cfg.RESTURL)
	}

	s.logger.Info("using db2 rest endpoint", zap.String("url", u.Redacted()))
	s.endpoint = u.String()
	return s.endpoint, nil
}

// EnsureTable does nothing: the table behind the REST service is
// provisioned with the service.
func (s *Sink) EnsureTable(ctx context.Context) error {
	s.logger.Info("table provisioning is handled by the db2 rest service")
	return nil
}

// Insert posts one vote. Anything but 200 OK is an insert error.
func (s *Sink) Insert(ctx context.Context, vote *models.Vote) error {
	timer := metrics.NewTimer()
	err := s.post(ctx, vote)
	metrics.ObserveSinkOperation(s.Name(), "insert", timer.Stop(), err)
	return err
}

func (s *Sink) post(ctx context.Context, vote *models.Vote) error {
	endpoint, err := s.getEndpoint()
	if err != nil {
		return err
	}

	body, err := gojson.Marshal(vote.RESTPayload())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInsert, "failed to encode vote")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInsert, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.SetBasicAuth(s.cfg.User, s.cfg.Password)

	if s.debug {
		s.logger.Debug("db2 rest request",
			zap.String("url", endpoint),
			zap.Any("headers", maskedHeaders(req.Header)),
			zap.ByteString("body", body),
			zap.String("user", s.cfg.User),
			zap.String("password", "****"))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInsert, "failed to post vote")
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if s.debug {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		if readErr != nil {
			s.logger.Debug("failed to read db2 rest response", zap.Error(readErr))
		}
		s.logger.Debug("db2 rest response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("unexpected db2 rest response", zap.Int("status", resp.StatusCode))
		return errors.Newf(errors.ErrorTypeInsert, "unexpected status %d from db2 rest service", resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	}
	return nil
}

func maskedHeaders(h http.Header) http.Header {
	masked := h.Clone()
	if masked.Get("Authorization") != "" {
		masked.Set("Authorization", "****")
	}
	return masked
}

// Close releases idle connections
func (s *Sink) Close(ctx context.Context) error {
	if err := s.client.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeClose, "failed to close http client")
	}
	return nil
}
