package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSinksCommand(t *testing.T) {
	out, err := execute(t, "sinks")
	require.NoError(t, err)
	assert.Contains(t, out, "db2-odbc")
	assert.Contains(t, out, "db2-rest")
	assert.Contains(t, out, "postgres")
	assert.Contains(t, out, "WHICH_DBM=POSTGRES")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vote-worker v"+version)
}

func TestValidateCommand(t *testing.T) {
	t.Setenv("WHICH_DBM", "POSTGRES")
	t.Setenv("PG_PASSWORD", "hunter2")

	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "sink: postgres")
	assert.Contains(t, out, "****")
	assert.NotContains(t, out, "hunter2")
}

func TestValidateCommand_Invalid(t *testing.T) {
	t.Setenv("WHICH_DBM", "MYSQL")

	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "WHICH_DBM")
}

func TestValidateCommand_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  which_dbm: DB2
  db2_method: REST
db2:
  rest_url: ${VOTE_TEST_REST_URL}
`), 0o600))
	t.Setenv("VOTE_TEST_REST_URL", "https://db2.example.com/votes")

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "https://db2.example.com/votes")
	assert.Contains(t, out, "sink: db2-rest")
}

func TestRunCommand_InvalidConfigFails(t *testing.T) {
	t.Setenv("WHICH_DBM", "DB2")
	t.Setenv("DB2_METHOD", "JDBC")

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunCommand_UnreachableRedisFails(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	logFile := filepath.Join(t.TempDir(), "worker.log")
	t.Setenv("WHICH_DBM", "DB2")
	t.Setenv("DB2_METHOD", "REST")
	t.Setenv("DB2_REST_APIURL", "http://127.0.0.1:9/votes")
	t.Setenv("REDIS_HOST", "127.0.0.1")
	t.Setenv("REDIS_PORT", strconv.Itoa(port))
	t.Setenv("REDIS_TIMEOUT", "1s")
	t.Setenv("OPERATION_TIMEOUT", "3s")
	t.Setenv("LOG_OUTPUT", logFile)

	_, err = execute(t, "run")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	logs := string(data)
	ensured := strings.Index(logs, "table provisioning is handled by the db2 rest service")
	failed := strings.Index(logs, "failed to connect to redis")
	require.NotEqual(t, -1, ensured)
	require.NotEqual(t, -1, failed)
	assert.Less(t, ensured, failed, "table is ensured before redis is checked")
}

func TestLoggerConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "info", loggerConfig(cfg).Level)
	assert.Equal(t, "json", loggerConfig(cfg).Encoding)

	assert.Empty(t, loggerConfig(cfg).OutputPaths)

	cfg.Debug = true
	cfg.Logging.Output = "/var/log/vote-worker.log"
	assert.Equal(t, "debug", loggerConfig(cfg).Level)
	assert.Equal(t, []string{"/var/log/vote-worker.log"}, loggerConfig(cfg).OutputPaths)
}
