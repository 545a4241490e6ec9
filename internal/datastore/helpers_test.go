package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/plantdoc/internal/conf"
)

type recordedOp struct {
	operation string
	size      int
	err       error
}

type fakeRecorder struct {
	ops []recordedOp
}

func (f *fakeRecorder) RecordOperation(operation string, _ float64, size int, err error) {
	f.ops = append(f.ops, recordedOp{operation: operation, size: size, err: err})
}

// newTestStore opens an empty SQLite store in a temporary directory with
// the schema created.
func newTestStore(t *testing.T, opts ...Option) Interface {
	t.Helper()

	settings := &conf.DatabaseSettings{
		Type: conf.DatabaseSQLite,
		Path: filepath.Join(t.TempDir(), "data", "plantdoc.db"),
	}
	store, err := New(settings, opts...)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateSchema(t.Context()))
	return store
}

// newSeededStore returns a store loaded with the bundled reference data.
func newSeededStore(t *testing.T, opts ...Option) Interface {
	t.Helper()

	store := newTestStore(t, opts...)
	seed, err := DefaultSeed()
	require.NoError(t, err)
	require.NoError(t, store.Seed(t.Context(), seed))
	return store
}
