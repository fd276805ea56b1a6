package sync

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasfleet/dispatch-cli/internal/model"
	"github.com/atlasfleet/dispatch-cli/internal/pipeline"
)

// Processor runs one message through the processing stages.
type Processor interface {
	Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error)
}

// Report summarizes one synchronization run.
type Report struct {
	Fetched   int
	Skipped   int
	Processed int
	Orders    int
	Failed    int
	Position  Position
}

// Options tunes engine behavior.
type Options struct {
	// InitialScanLimit bounds the first-run scan of an unseen mailbox.
	InitialScanLimit int64
	// Buffer is subtracted from the watermark on incremental runs so
	// messages that raced the previous cursor write are not missed.
	Buffer time.Duration
}

// Engine synchronizes a mailbox source into the pipeline exactly once per
// message: a message is retried on later runs until it reaches a terminal
// state, then never touched again.
type Engine struct {
	src    Source
	proc   Processor
	cursor *CursorStore
	seen   *SeenSet
	opts   Options
}

// NewEngine assembles a synchronization engine.
func NewEngine(src Source, proc Processor, cursor *CursorStore, seen *SeenSet, opts Options) *Engine {
	if opts.InitialScanLimit <= 0 {
		opts.InitialScanLimit = 100
	}
	return &Engine{src: src, proc: proc, cursor: cursor, seen: seen, opts: opts}
}

// Synchronize performs one run: fetch new messages, process each, and
// advance the cursor. Message-level failures are counted, not returned;
// only infrastructure faults (source listing, cursor persistence) error.
func (e *Engine) Synchronize(ctx context.Context) (*Report, error) {
	log := zap.L()

	prev, hasCursor, err := e.cursor.Load()
	if err != nil {
		return nil, eris.Wrap(err, "sync: load cursor")
	}

	var msgs []model.Message
	var scanPos Position
	fullScan := !hasCursor

	if hasCursor {
		since := prev
		if buf := int64(e.opts.Buffer / time.Second); buf > 0 && since.Watermark > buf {
			since.Watermark -= buf
		}
		msgs, err = e.src.ListSince(ctx, since)
		if errors.Is(err, ErrPositionExpired) {
			log.Warn("sync: stored position expired, falling back to full scan",
				zap.Uint64("history_id", prev.HistoryID))
			fullScan = true
		} else if err != nil {
			return nil, eris.Wrap(err, "sync: list since cursor")
		}
	}

	if fullScan {
		// Record the source position before listing: anything that arrives
		// mid-scan falls after this position and is replayed next run.
		scanPos, err = e.src.CurrentPosition(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "sync: current position")
		}
		msgs, err = e.src.ListRecent(ctx, e.opts.InitialScanLimit)
		if err != nil {
			return nil, eris.Wrap(err, "sync: list recent")
		}
	}

	report := &Report{Fetched: len(msgs)}
	maxPos := Position{}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "sync: cancelled")
		}
		if e.seen.Contains(msg.ID) {
			report.Skipped++
			continue
		}

		pos := Position{HistoryID: msg.HistoryID, Watermark: msg.ReceivedAt.Unix()}

		pc, err := e.proc.Execute(ctx, pipeline.NewContext(msg))
		if err != nil {
			// Critical failure: leave the message unseen so the next run
			// retries it, and hold the cursor back from covering it.
			report.Failed++
			log.Error("sync: message processing aborted",
				zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}

		if terminal(pc) {
			if err := e.seen.Add(msg.ID); err != nil {
				return report, eris.Wrap(err, "sync: record seen")
			}
			report.Processed++
			if pc.IsOrder() {
				report.Orders++
			}
			maxPos = maxPos.Merge(pos)
		} else {
			report.Failed++
			log.Warn("sync: message left for retry",
				zap.String("message_id", msg.ID),
				zap.Strings("failed_stages", pc.Failed()))
		}
	}

	next := prev.Merge(maxPos)
	if fullScan {
		// The pre-scan position is authoritative for an initial or
		// fallback scan even when every message failed.
		next = next.Merge(scanPos)
	}
	if next.After(prev) || !hasCursor {
		if err := e.cursor.Save(next); err != nil {
			return report, eris.Wrap(err, "sync: save cursor")
		}
	}
	report.Position = next

	log.Info("sync: run complete",
		zap.Int("fetched", report.Fetched),
		zap.Int("skipped", report.Skipped),
		zap.Int("processed", report.Processed),
		zap.Int("orders", report.Orders),
		zap.Int("failed", report.Failed),
		zap.Uint64("history_id", next.HistoryID),
		zap.Int64("watermark", next.Watermark),
	)
	return report, nil
}

// ProcessOne fetches a single message by id and runs it through the
// pipeline, bypassing listing entirely. The cursor is left alone; the
// seen-set is consulted and updated the same way a full run would.
func (e *Engine) ProcessOne(ctx context.Context, id string) (*Report, error) {
	report := &Report{}

	if e.seen.Contains(id) {
		report.Skipped = 1
		return report, nil
	}

	msg, err := e.src.FetchByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sync: fetch message %s", id)
	}
	report.Fetched = 1

	pc, err := e.proc.Execute(ctx, pipeline.NewContext(msg))
	if err != nil {
		report.Failed = 1
		return report, eris.Wrapf(err, "sync: process message %s", id)
	}

	if terminal(pc) {
		if err := e.seen.Add(id); err != nil {
			return report, eris.Wrap(err, "sync: record seen")
		}
		report.Processed = 1
		if pc.IsOrder() {
			report.Orders = 1
		}
	} else {
		report.Failed = 1
		zap.L().Warn("sync: message left for retry",
			zap.String("message_id", id),
			zap.Strings("failed_stages", pc.Failed()))
	}
	return report, nil
}

// terminal reports whether the message needs no further runs: either it is
// not an order, or the order made it into the primary store.
func terminal(pc *pipeline.Context) bool {
	if pc.Classification == model.ClassificationUnknown {
		return false
	}
	if !pc.IsOrder() {
		return true
	}
	return pc.HasCompleted(pipeline.StagePersistStore)
}
