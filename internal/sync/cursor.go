package sync

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

const cursorFileVersion = 1

// cursorFile is the on-disk form of the stored position.
type cursorFile struct {
	Version   int    `json:"v"`
	HistoryID uint64 `json:"history_id"`
	Watermark int64  `json:"watermark"`
}

// CursorStore persists the sync position as a small JSON file. Writes go
// through a temp file and rename so a crash never leaves a torn cursor.
type CursorStore struct {
	path string
}

// NewCursorStore creates a cursor store at the given file path.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// Load reads the stored position. ok is false when no cursor exists yet.
func (c *CursorStore) Load() (pos Position, ok bool, err error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, eris.Wrapf(err, "cursor: read %s", c.path)
	}

	var f cursorFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Position{}, false, eris.Wrapf(err, "cursor: parse %s", c.path)
	}
	if f.Version != cursorFileVersion {
		return Position{}, false, eris.Errorf("cursor: unsupported version %d in %s", f.Version, c.path)
	}

	return Position{HistoryID: f.HistoryID, Watermark: f.Watermark}, true, nil
}

// Save atomically replaces the stored position.
func (c *CursorStore) Save(pos Position) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return eris.Wrapf(err, "cursor: create dir for %s", c.path)
	}

	data, err := json.Marshal(cursorFile{
		Version:   cursorFileVersion,
		HistoryID: pos.HistoryID,
		Watermark: pos.Watermark,
	})
	if err != nil {
		return eris.Wrap(err, "cursor: marshal")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "cursor: write %s", tmp)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return eris.Wrapf(err, "cursor: rename %s", c.path)
	}
	return nil
}
