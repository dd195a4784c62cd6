package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
api:
  base_url: https://appliances.example.com
  auth_header: "Bearer abc"
  actor_email: ops@example.com
`

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))

	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().String("address", "", "")
	cmd.Flags().String("data-dir", "", "")
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("log-json", false, "")
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--address", "127.0.0.1:9090",
		"--data-dir", "/tmp/elsewhere",
		"--log-level", "debug",
		"--log-json",
	}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
	assert.Equal(t, "/tmp/elsewhere", cfg.Storage.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadConfigRejectsBadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))

	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().String("address", "", "")
	cmd.Flags().String("data-dir", "", "")
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("log-json", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--log-level", "loud"}))

	_, err := loadConfig(cmd)
	assert.Error(t, err)
}

func TestPrintOperations(t *testing.T) {
	var buf bytes.Buffer
	printOperations(&buf, []*types.Operation{
		{
			ID:                2,
			ApplianceID:       "a1",
			OperationType:     types.OperationTypeRemediate,
			ProcessedAt:       time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC),
			RemediationID:     "R1",
			RemediationResult: "SUCCESS",
		},
		{
			ID:                   1,
			ApplianceID:          "a1",
			OperationType:        types.OperationTypeDrain,
			ProcessedAt:          time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			DrainID:              "D1",
			EstimatedTimeToDrain: "PT1H",
		},
	})

	out := buf.String()
	assert.Contains(t, out, "APPLIANCE")
	assert.Contains(t, out, "remediation=R1 result=SUCCESS")
	assert.Contains(t, out, "drain=D1 eta=PT1H")
	assert.Contains(t, out, "2024-05-01T12:00:00Z")
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/queue":
			_, _ = w.Write([]byte(`{"backlog": 3, "pending": 5, "capacity": 10}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "operation not found: 9"}`))
		}
	}))
	defer srv.Close()

	var stats metrics.QueueStats
	require.NoError(t, getJSON(context.Background(), srv.URL+"/", "/api/v1/queue", &stats))
	assert.Equal(t, metrics.QueueStats{Backlog: 3, Pending: 5, Capacity: 10}, stats)

	var op types.Operation
	err := getJSON(context.Background(), srv.URL, "/api/v1/operations/9", &op)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation not found: 9")
	assert.Contains(t, err.Error(), "404")
}
