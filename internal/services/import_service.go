package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"dinamifin/internal/amqp"
	"dinamifin/internal/core"
	"dinamifin/internal/log"
	"dinamifin/internal/storage"
)

const MaxImportRows = 5000

// ImportRow is one uploaded line before validation.
type ImportRow struct {
	Date     string     `json:"date"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
}

// RowError pins a validation failure to a zero-based row index.
type RowError struct {
	Row int
	Err error
}

// ImportError lists every rejected row of a batch.
type ImportError struct {
	Rows []RowError
}

func (e *ImportError) Error() string {
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		parts = append(parts, fmt.Sprintf("row %d: %v", r.Row, r.Err))
	}
	return "import rejected: " + strings.Join(parts, "; ")
}

// Unwrap exposes row causes so core.IsValidation sees them.
func (e *ImportError) Unwrap() []error {
	errs := make([]error, len(e.Rows))
	for i, r := range e.Rows {
		errs[i] = r.Err
	}
	return errs
}

var ErrEmptyImport = fmt.Errorf("%w: import has no rows", core.ErrInvalidInput)

// ImportResult identifies an applied batch.
type ImportResult struct {
	BatchID string `json:"batch_id"`
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
}

// ImportService applies bulk uploads as a single all-or-nothing upsert.
type ImportService struct {
	store  storage.Importer
	notify notifier
	now    func() time.Time
	logger *log.Logger
}

func NewImportService(store storage.Importer, publisher EventPublisher, inv CacheInvalidator, logger *log.Logger) *ImportService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentImport)
	return &ImportService{
		store:  store,
		notify: newNotifier(publisher, inv, logger),
		now:    time.Now,
		logger: logger,
	}
}

// Import validates every row first; nothing is written if any row fails.
// Rows replace existing records on the same day.
func (s *ImportService) Import(ctx context.Context, userID int64, kind core.Kind, rows []ImportRow) (ImportResult, error) {
	if err := validateKey(userID, kind); err != nil {
		return ImportResult{}, err
	}
	if len(rows) == 0 {
		return ImportResult{}, ErrEmptyImport
	}
	if len(rows) > MaxImportRows {
		return ImportResult{}, fmt.Errorf("%w: import exceeds %d rows", core.ErrInvalidInput, MaxImportRows)
	}

	records := make([]core.LedgerRecord, 0, len(rows))
	seen := make(map[string]int, len(rows))
	var rowErrs []RowError
	for i, row := range rows {
		date, err := core.ParseDate(row.Date)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i, Err: err})
			continue
		}
		if prev, dup := seen[date.String()]; dup {
			rowErrs = append(rowErrs, RowError{Row: i, Err: fmt.Errorf("%w: %s repeats row %d", core.ErrInvalidDate, date, prev)})
			continue
		}
		seen[date.String()] = i

		rec, err := normalize(core.LedgerRecord{
			UserID:   userID,
			Kind:     kind,
			Date:     date,
			Amount:   row.Amount,
			Category: row.Category,
		})
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i, Err: err})
			continue
		}
		records = append(records, rec)
	}
	if len(rowErrs) > 0 {
		return ImportResult{}, &ImportError{Rows: rowErrs}
	}

	batch := storage.ImportBatch{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Kind:      kind,
		Records:   records,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.ImportRecords(ctx, batch); err != nil {
		return ImportResult{}, fmt.Errorf("import %s: %w", kind, err)
	}

	evt := amqp.NewLedgerEvent(amqp.OpImported, userID, string(kind))
	evt.Count = len(records)
	s.notify.changed(ctx, evt)

	s.logger.InfoContext(ctx, "Import applied",
		log.FieldEventID, batch.ID, log.FieldUserID, userID, log.FieldKind, kind, log.FieldCount, len(records))
	return ImportResult{BatchID: batch.ID, Kind: string(kind), Count: len(records)}, nil
}

// IsImportError reports whether err carries per-row failures.
func IsImportError(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie)
}
