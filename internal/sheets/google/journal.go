// Package google appends ledger events to a Google Sheets journal.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"dinamifin/internal/amqp"
	"dinamifin/internal/core"
	"dinamifin/internal/log"
)

// Header is the column layout of a journal tab.
var Header = []any{"timestamp", "event_id", "op", "user_id", "kind", "date", "amount", "category", "count"}

// valuesAppender is the single Sheets call the journal makes.
type valuesAppender interface {
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (s sheetsValues) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// Journal writes one row per event into a tab named "<year> <sheet>",
// using the year of the event timestamp.
type Journal struct {
	values        valuesAppender
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// NewJournal authenticates with a service account and targets sheet of
// spreadsheetID. Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewJournal(ctx context.Context, spreadsheetID, sheet string, logger *log.Logger) (*Journal, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newJournal(sheetsValues{svc: svc}, spreadsheetID, sheet, logger), nil
}

func newJournal(values valuesAppender, spreadsheetID, sheet string, logger *log.Logger) *Journal {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Journal"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Journal{
		values:        values,
		spreadsheetID: spreadsheetID,
		sheet:         strings.TrimSpace(sheet),
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentials []byte
	switch {
	case inline != "":
		credentials = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentials = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// AppendEvent writes evt as a journal row and returns the range written to.
func (j *Journal) AppendEvent(ctx context.Context, evt *amqp.LedgerEvent) (string, error) {
	if evt == nil {
		return "", errors.New("nil event")
	}
	tab := yearPrefixedName(j.sheet, evt.Timestamp.Year())
	rng := fmt.Sprintf("%s!A:I", tab)
	if err := j.values.Append(ctx, j.spreadsheetID, rng, [][]any{Row(evt)}); err != nil {
		return "", fmt.Errorf("append to %s: %w", tab, err)
	}
	j.logger.DebugContext(ctx, "Journal row appended", log.FieldEventID, evt.ID, "range", rng)
	return rng, nil
}

// Row renders evt in Header order. Amounts are written as fixed two-decimal
// strings so the sheet never sees a float.
func Row(evt *amqp.LedgerEvent) []any {
	amount := ""
	if evt.AmountCents != 0 {
		amount = core.MoneyFromCents(evt.AmountCents).String()
	}
	count := ""
	if evt.Count > 0 {
		count = strconv.Itoa(evt.Count)
	}
	return []any{
		evt.Timestamp.UTC().Format(time.RFC3339),
		evt.ID,
		string(evt.Op),
		evt.UserID,
		evt.Kind,
		evt.Date,
		amount,
		evt.Category,
		count,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with
// a four-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
