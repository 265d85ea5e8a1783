package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/densify/internal/engine"
	"github.com/cleared-dev/densify/internal/model"
)

var _ engine.Recorder = (*Collector)(nil)

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.AccountDensified(model.Stock, 2*time.Millisecond)
	c.AccountDensified(model.Stock, time.Millisecond)
	c.AccountDensified(model.Flow, time.Millisecond)
	c.ConflictsFound(0)
	c.ConflictsFound(3)
	c.Balanced(model.Balancing{Name: model.BalancingAccountName}, 125.5)
	c.RunFinished(nil)
	c.RunFinished(errors.New("boom"))
	c.RunFinished(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.accounts.WithLabelValues("stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accounts.WithLabelValues("flow")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.conflicts))
	assert.Equal(t, 125.5, testutil.ToFloat64(c.maxAdjustment))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.accountSeconds))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ConflictsFound(2)
	c.RunFinished(nil)

	path := filepath.Join(t.TempDir(), "densify.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "densify_conflicts_total 2")
	assert.Contains(t, string(data), `densify_runs_total{result="ok"} 1`)
}

func TestRunRecordsEngineStats(t *testing.T) {
	l := &model.Ledger{
		Stock: []model.StockAccount{{
			Name: "Cash", Type: model.AccountTypeAsset, Method: model.Linear,
			Snapshots: []model.Snapshot{{Date: time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC), Value: 100}},
		}},
	}
	c := NewCollector()
	_, err := engine.Run(l, engine.Options{Seed: 1, Recorder: c})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.accounts.WithLabelValues("stock")))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.maxAdjustment))
}
