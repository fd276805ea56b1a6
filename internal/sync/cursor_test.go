package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorStore_LoadMissing(t *testing.T) {
	c := NewCursorStore(filepath.Join(t.TempDir(), "cursor.json"))

	_, ok, err := c.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorStore_RoundTrip(t *testing.T) {
	c := NewCursorStore(filepath.Join(t.TempDir(), "nested", "cursor.json"))

	want := Position{HistoryID: 12345, Watermark: 1756200000}
	require.NoError(t, c.Save(want))

	got, ok, err := c.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCursorStore_Overwrite(t *testing.T) {
	c := NewCursorStore(filepath.Join(t.TempDir(), "cursor.json"))

	require.NoError(t, c.Save(Position{HistoryID: 1}))
	require.NoError(t, c.Save(Position{HistoryID: 2, Watermark: 10}))

	got, ok, err := c.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Position{HistoryID: 2, Watermark: 10}, got)
}

func TestCursorStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, _, err := NewCursorStore(path).Load()
	assert.Error(t, err)
}

func TestCursorStore_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"v": 99, "history_id": 1}`), 0o644))

	_, _, err := NewCursorStore(path).Load()
	assert.Error(t, err)
}

func TestPosition_After(t *testing.T) {
	tests := []struct {
		name string
		p, o Position
		want bool
	}{
		{"both advanced", Position{2, 20}, Position{1, 10}, true},
		{"history advanced", Position{2, 10}, Position{1, 10}, true},
		{"watermark advanced", Position{1, 20}, Position{1, 10}, true},
		{"equal", Position{1, 10}, Position{1, 10}, false},
		{"history regressed", Position{0, 20}, Position{1, 10}, false},
		{"zero vs zero", Position{}, Position{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.After(tt.o))
		})
	}
}

func TestPosition_Merge(t *testing.T) {
	got := Position{HistoryID: 5, Watermark: 10}.Merge(Position{HistoryID: 3, Watermark: 20})
	assert.Equal(t, Position{HistoryID: 5, Watermark: 20}, got)
}
