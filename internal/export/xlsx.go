// Package export appends persisted orders to an XLSX workbook so
// dispatchers can work the sheet they already know.
package export

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

var headerRow = []string{
	"Message ID",
	"Received",
	"Processed",
	"Sender",
	"Subject",
	"Reference",
	"Loading Address",
	"Loading Coordinates",
	"Loading Date",
	"Unloading Address",
	"Unloading Coordinates",
	"Unloading Date",
	"Cargo",
	"Weight",
	"Vehicle",
	"Special Requirements",
}

// Workbook is an XLSX order sink. Each Persist re-reads the file so manual
// edits between runs survive; a message id already present in the sheet is
// skipped instead of appended twice.
type Workbook struct {
	mu        sync.Mutex
	path      string
	sheetName string
}

// NewWorkbook creates a workbook sink writing to path.
func NewWorkbook(path, sheetName string) *Workbook {
	if sheetName == "" {
		sheetName = "Orders"
	}
	return &Workbook{path: path, sheetName: sheetName}
}

// Persist appends the draft as a row, creating the file and header on first
// use. Idempotent on the draft's message id.
func (w *Workbook) Persist(_ context.Context, draft *model.OrderDraft) error {
	if draft == nil || draft.MessageID == "" {
		return eris.New("export: draft missing message id")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, sheet, err := w.openSheet()
	if err != nil {
		return err
	}

	// Column 0 holds the message id; skip rows we already wrote.
	for i, row := range sheet.Rows {
		if i == 0 || len(row.Cells) == 0 {
			continue
		}
		if row.Cells[0].String() == draft.MessageID {
			zap.L().Info("export: order already in workbook",
				zap.String("message_id", draft.MessageID),
				zap.String("path", w.path),
			)
			return nil
		}
	}

	appendDraftRow(sheet, draft)

	if err := f.Save(w.path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", w.path)
	}
	zap.L().Info("export: order appended to workbook",
		zap.String("message_id", draft.MessageID),
		zap.String("path", w.path),
	)
	return nil
}

func (w *Workbook) openSheet() (*xlsx.File, *xlsx.Sheet, error) {
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		f := xlsx.NewFile()
		sheet, err := f.AddSheet(w.sheetName)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "export: add sheet %s", w.sheetName)
		}
		row := sheet.AddRow()
		for _, h := range headerRow {
			row.AddCell().SetString(h)
		}
		return f, sheet, nil
	}

	f, err := xlsx.OpenFile(w.path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "export: open workbook %s", w.path)
	}
	sheet, ok := f.Sheet[w.sheetName]
	if !ok {
		sheet, err = f.AddSheet(w.sheetName)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "export: add sheet %s", w.sheetName)
		}
		row := sheet.AddRow()
		for _, h := range headerRow {
			row.AddCell().SetString(h)
		}
	}
	return f, sheet, nil
}

func appendDraftRow(sheet *xlsx.Sheet, draft *model.OrderDraft) {
	row := sheet.AddRow()
	for _, v := range []string{
		draft.MessageID,
		formatTime(draft.ReceivedAt),
		formatTime(draft.ProcessedAt),
		draft.MessageSender,
		draft.MessageSubject,
		draft.ReferenceNumber,
		draft.LoadingAddress,
		draft.LoadingCoordinates.String(),
		draft.LoadingDate,
		draft.UnloadingAddress,
		draft.UnloadingCoordinates.String(),
		draft.UnloadingDate,
		draft.CargoDescription,
		draft.Weight,
		draft.VehicleType,
		draft.SpecialRequirements,
	} {
		row.AddCell().SetString(v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
