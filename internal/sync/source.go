// Package sync drives incremental mailbox synchronization: it pulls new
// messages from a source, runs them through the pipeline, and tracks both a
// resumable position and the set of messages already handled.
package sync

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// ErrPositionExpired signals that the source can no longer resume from the
// given position, typically because its change log was truncated. Callers
// fall back to a bounded rescan of recent messages.
var ErrPositionExpired = eris.New("sync: position expired")

// Position is a resumable point in the mailbox change stream. HistoryID is
// the provider's change-log cursor; Watermark is the unix receive time of
// the newest message seen. Either component may be zero when the provider
// cannot supply it.
type Position struct {
	HistoryID uint64 `json:"history_id"`
	Watermark int64  `json:"watermark"`
}

// IsZero reports whether the position carries no information.
func (p Position) IsZero() bool { return p.HistoryID == 0 && p.Watermark == 0 }

// After reports whether p has advanced past o in at least one component
// without regressing in the other. Used to keep the stored cursor monotone.
func (p Position) After(o Position) bool {
	if p.HistoryID < o.HistoryID || p.Watermark < o.Watermark {
		return false
	}
	return p.HistoryID > o.HistoryID || p.Watermark > o.Watermark
}

// Merge returns the component-wise maximum of the two positions.
func (p Position) Merge(o Position) Position {
	out := p
	if o.HistoryID > out.HistoryID {
		out.HistoryID = o.HistoryID
	}
	if o.Watermark > out.Watermark {
		out.Watermark = o.Watermark
	}
	return out
}

// Source is a mailbox the engine can synchronize from.
type Source interface {
	// CurrentPosition returns the source's present position without
	// listing messages. Called before an initial scan so changes arriving
	// during the scan are replayed on the next run instead of lost.
	CurrentPosition(ctx context.Context) (Position, error)

	// ListRecent returns up to max of the newest messages.
	ListRecent(ctx context.Context, max int64) ([]model.Message, error)

	// ListSince returns messages that arrived after the position. Returns
	// ErrPositionExpired when the source cannot resume from there.
	ListSince(ctx context.Context, pos Position) ([]model.Message, error)

	// FetchByID returns the single message with the given id.
	FetchByID(ctx context.Context, id string) (model.Message, error)
}
