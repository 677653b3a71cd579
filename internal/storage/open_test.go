package storage

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/vento/internal/storetest"
	"github.com/mesh-intelligence/vento/pkg/types"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		cfg      types.Config
		wantName string
		wantErr  error
	}{
		{
			name:     "textfile",
			cfg:      types.Config{Backend: types.BackendTextFile},
			wantName: types.BackendTextFile,
		},
		{
			name:     "sqlite",
			cfg:      types.Config{Backend: types.BackendSQLite},
			wantName: types.BackendSQLite,
		},
		{
			name:    "empty backend",
			cfg:     types.Config{},
			wantErr: types.ErrBackendEmpty,
		},
		{
			name:    "unknown backend",
			cfg:     types.Config{Backend: "redis"},
			wantErr: types.ErrBackendUnknown,
		},
		{
			name:    "mongo without uri",
			cfg:     types.Config{Backend: types.BackendMongo},
			wantErr: types.ErrMongoURIEmpty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.DataDir = t.TempDir()
			b, err := Open(context.Background(), tt.cfg, zaptest.NewLogger(t))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer b.Close()
			assert.Equal(t, tt.wantName, b.Name())
		})
	}
}

func openInstrumented(t *testing.T, reg prometheus.Registerer) types.Backend {
	t.Helper()
	cfg := types.Config{Backend: types.BackendTextFile, DataDir: t.TempDir()}
	b, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return Instrument(b, reg)
}

func TestInstrumentedConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) types.Backend {
		return openInstrumented(t, prometheus.NewRegistry())
	})
}

func TestInstrumentCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := openInstrumented(t, reg)
	ctx := context.Background()

	require.NoError(t, b.Products().Add(ctx, "alice", types.Product{ID: 1, Name: "Bolt", Price: 1, Quantity: 1}))
	assert.ErrorIs(t, b.Products().Add(ctx, "alice", types.Product{ID: 1, Name: "Bolt", Price: 1, Quantity: 1}), types.ErrDuplicateID)
	_, err := b.Users().Get(ctx, "ghost")
	assert.ErrorIs(t, err, types.ErrUserNotFound)

	ops, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, ops)

	b2 := b.(*instrumented)
	counter := b2.products.m.ops
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(types.BackendTextFile, "product_add", resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(types.BackendTextFile, "product_add", resultConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(types.BackendTextFile, "user_get", resultNotFound)))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, resultOK},
		{types.ErrNotFound, resultNotFound},
		{types.ErrUserNotFound, resultNotFound},
		{types.ErrDuplicateID, resultConflict},
		{types.ErrInsufficientStock, resultConflict},
		{types.ErrInvalidPrice, resultInvalid},
		{context.Canceled, resultError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err))
	}
}
