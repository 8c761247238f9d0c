package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/history"
	"github.com/loykin/curator/internal/history/opensearch"
	"github.com/loykin/curator/internal/history/s3"
)

func TestNewSinkFromDSN(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{"empty", "", true},
		{"unknown scheme", "invalid://test", true},
		{"sqlite memory", "sqlite://:memory:", false},
		{"sqlite file", "sqlite://" + filepath.Join(t.TempDir(), "h.db"), false},
		{"bare path", filepath.Join(t.TempDir(), "bare.db"), false},
		{"opensearch", "opensearch://localhost:9200/logs", false},
		{"opensearch without host", "opensearch:///logs", true},
		{"s3", "s3://audit/curator?region=us-east-1", false},
		{"s3 without bucket", "s3:///x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSinkFromDSN(ctx, tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, sink)
			if c, ok := sink.(interface{ Close() error }); ok {
				_ = c.Close()
			}
		})
	}
}

func TestNewSinkFromDSNHidesCredentials(t *testing.T) {
	ctx := context.Background()
	for _, dsn := range []string{
		"bogus://u:secret@h",
		"clickhouse://u:secret@h:badport/db",
		"s3://u:secret@b:badport/p",
	} {
		_, err := NewSinkFromDSN(ctx, dsn)
		require.Error(t, err, dsn)
		assert.NotContains(t, err.Error(), "secret", dsn)
	}

	_, err := NewDispatcher(ctx, nil, []string{"clickhouse://u:secret@h:badport/db"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "clickhouse://...")
}

func TestOpenSearchDSNTypes(t *testing.T) {
	s, err := NewSinkFromDSN(context.Background(), "opensearch+https://search.local:9200")
	require.NoError(t, err)
	assert.IsType(t, &opensearch.Sink{}, s)

	s, err = NewSinkFromDSN(context.Background(), "elasticsearch://es:9200/events")
	require.NoError(t, err)
	assert.IsType(t, &opensearch.Sink{}, s)

	s, err = NewSinkFromDSN(context.Background(), "s3://bucket")
	require.NoError(t, err)
	assert.IsType(t, &s3.Sink{}, s)
}

func TestNewDispatcher(t *testing.T) {
	ctx := context.Background()
	d, err := NewDispatcher(ctx, nil, []string{"sqlite://:memory:", "opensearch://localhost:9200/h"})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	require.NoError(t, d.Close())

	_, err = NewDispatcher(ctx, nil, []string{"sqlite://:memory:", "bogus://u:secret@h"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")

	empty, err := NewDispatcher(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	empty.Emit(ctx, history.NewEvent(history.EventCreated, "Book", 1, "", nil))
}
