package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/live-auction/go/internal/config"
	"github.com/mcdev12/live-auction/go/internal/store/workbook"
)

func TestNew_Memory(t *testing.T) {
	cfg := config.Default()
	svc, err := New(context.Background(), &cfg)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.EnsureSchema(context.Background()))
	st, err := svc.Repo.GetState(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.RefreshToken)

	n, err := testutil.GatherAndCount(svc.Registry, "auction_store_operations_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestNew_Workbook(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = config.BackendWorkbook
	cfg.Store.Workbook.Path = filepath.Join(t.TempDir(), "auction.xlsx")

	svc, err := New(context.Background(), &cfg)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.EnsureSchema(context.Background()))
	_, err = workbook.New(cfg.Store.Workbook.Path).ReadTable(context.Background(), cfg.Store.Tables.LiveAuction)
	assert.NoError(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "redis"
	_, err := New(context.Background(), &cfg)
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetupLogging(config.LogConfig{Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	SetupLogging(config.LogConfig{Level: "nonsense"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
