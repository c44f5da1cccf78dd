package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dinamifin/internal/core"
	"dinamifin/internal/log"

	_ "modernc.org/sqlite"
)

// Repository is the database/sql implementation of Store.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
	logger  *log.Logger
}

// NewSQLiteRepository opens (creating if needed) the database file at
// dbPath and applies migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Migrations close their handle, so they get their own connection.
	migrateDB, err := sql.Open(DialectSQLite.DriverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}
	if err := RunMigrations(migrateDB, DialectSQLite); err != nil {
		migrateDB.Close()
		return nil, err
	}

	// _pragma parameters are understood by modernc.org/sqlite.
	db, err := sql.Open(DialectSQLite.DriverName(), dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	return newRepository(db, DialectSQLite, logger)
}

// NewPostgresRepository connects through connector and applies migrations.
// The connector is asked for a new connection each time the pool dials.
func NewPostgresRepository(ctx context.Context, connector driver.Connector, logger *log.Logger) (*Repository, error) {
	migrateDB := sql.OpenDB(connector)
	if err := RunMigrations(migrateDB, DialectPostgres); err != nil {
		migrateDB.Close()
		return nil, err
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newRepository(db, DialectPostgres, logger)
}

func newRepository(db *sql.DB, dialect Dialect, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{
		db:      db,
		dialect: dialect,
		queries: NewQueries(db, dialect),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) CreateRecord(ctx context.Context, rec core.LedgerRecord) error {
	n, err := r.queries.InsertRecord(ctx, toLedgerRow(rec))
	if err != nil {
		return fmt.Errorf("insert %s record: %w", rec.Kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s record for %s: %w", rec.Kind, rec.Date, ErrConflict)
	}
	r.logger.DebugContext(ctx, "Record inserted",
		log.NewFields().WithRecord(rec.UserID, string(rec.Kind), rec.Date.String(), rec.Amount.String()).ToSlice()...)
	return nil
}

func (r *Repository) UpdateRecord(ctx context.Context, rec core.LedgerRecord) error {
	n, err := r.queries.UpdateRecord(ctx, toLedgerRow(rec))
	if err != nil {
		return fmt.Errorf("update %s record: %w", rec.Kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s record for %s: %w", rec.Kind, rec.Date, ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteRecord(ctx context.Context, userID int64, kind core.Kind, date core.Date) error {
	n, err := r.queries.DeleteRecord(ctx, userID, string(kind), date.String())
	if err != nil {
		return fmt.Errorf("delete %s record: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s record for %s: %w", kind, date, ErrNotFound)
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, userID int64, kind core.Kind, date core.Date) (core.LedgerRecord, error) {
	row, err := r.queries.GetRecord(ctx, userID, string(kind), date.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerRecord{}, fmt.Errorf("%s record for %s: %w", kind, date, ErrNotFound)
	}
	if err != nil {
		return core.LedgerRecord{}, fmt.Errorf("get %s record: %w", kind, err)
	}
	return fromLedgerRow(row)
}

func (r *Repository) ListRecords(ctx context.Context, userID int64, kind core.Kind) ([]core.LedgerRecord, error) {
	rows, err := r.queries.ListRecords(ctx, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}
	return fromLedgerRows(rows)
}

func (r *Repository) QueryRecords(ctx context.Context, userID int64, kind core.Kind, rng core.DateRange) ([]core.LedgerRecord, error) {
	rows, err := r.queries.RecordsBetween(ctx, userID, string(kind), rng.From.String(), rng.To.String())
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", kind, err)
	}
	return fromLedgerRows(rows)
}

func (r *Repository) SumRecords(ctx context.Context, userID int64, kind core.Kind, rng core.DateRange) (core.Money, error) {
	cents, err := r.queries.SumRecords(ctx, userID, string(kind), rng.From.String(), rng.To.String())
	if err != nil {
		return core.Money{}, fmt.Errorf("sum %s records: %w", kind, err)
	}
	return core.MoneyFromCents(cents), nil
}

func (r *Repository) ImportRecords(ctx context.Context, batch ImportBatch) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.ErrorContext(ctx, "Import rollback failed", log.FieldError, rbErr)
			}
		}
	}()

	q := r.queries.WithTx(tx)
	for _, rec := range batch.Records {
		if err = q.UpsertRecord(ctx, toLedgerRow(rec)); err != nil {
			return fmt.Errorf("import %s record %s: %w", rec.Kind, rec.Date, err)
		}
	}
	err = q.InsertImportBatch(ctx, ImportBatchRow{
		ID:        batch.ID,
		UserID:    batch.UserID,
		Kind:      string(batch.Kind),
		RowCount:  int64(len(batch.Records)),
		CreatedAt: batch.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("record import batch: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	r.logger.InfoContext(ctx, "Import committed",
		log.FieldEventID, batch.ID, log.FieldUserID, batch.UserID, log.FieldKind, batch.Kind, log.FieldCount, len(batch.Records))
	return nil
}

func (r *Repository) UpsertGoal(ctx context.Context, g core.Goal) error {
	if err := r.queries.UpsertGoal(ctx, toGoalRow(g)); err != nil {
		return fmt.Errorf("upsert %s: %w", g.Kind, err)
	}
	return nil
}

func (r *Repository) DeleteGoal(ctx context.Context, userID int64, kind core.GoalKind, month core.Date) error {
	n, err := r.queries.DeleteGoal(ctx, userID, string(kind), month.String())
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s for %s: %w", kind, month.MonthKey(), ErrNotFound)
	}
	return nil
}

func (r *Repository) GetGoal(ctx context.Context, userID int64, kind core.GoalKind, month core.Date) (core.Goal, error) {
	row, err := r.queries.GetGoal(ctx, userID, string(kind), month.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("%s for %s: %w", kind, month.MonthKey(), ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return fromGoalRow(row)
}

func (r *Repository) LatestGoal(ctx context.Context, userID int64, kind core.GoalKind) (core.Goal, error) {
	row, err := r.queries.LatestGoal(ctx, userID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("%s: %w", kind, ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("latest %s: %w", kind, err)
	}
	return fromGoalRow(row)
}

func (r *Repository) ListGoals(ctx context.Context, userID int64, kind core.GoalKind) ([]core.Goal, error) {
	rows, err := r.queries.ListGoals(ctx, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return fromGoalRows(rows)
}

func (r *Repository) QueryGoals(ctx context.Context, userID int64, kind core.GoalKind, rng core.DateRange) ([]core.Goal, error) {
	rows, err := r.queries.GoalsBetween(ctx, userID, string(kind), rng.From.String(), rng.To.String())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	return fromGoalRows(rows)
}

func toLedgerRow(r core.LedgerRecord) LedgerRow {
	return LedgerRow{
		UserID:      r.UserID,
		Kind:        string(r.Kind),
		Date:        r.Date.String(),
		AmountCents: r.Amount.Cents(),
		Category:    r.Category,
	}
}

func fromLedgerRow(row LedgerRow) (core.LedgerRecord, error) {
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.LedgerRecord{}, fmt.Errorf("scan record date: %w", err)
	}
	return core.LedgerRecord{
		UserID:   row.UserID,
		Kind:     core.Kind(row.Kind),
		Date:     d,
		Amount:   core.MoneyFromCents(row.AmountCents),
		Category: row.Category,
	}, nil
}

func fromLedgerRows(rows []LedgerRow) ([]core.LedgerRecord, error) {
	out := make([]core.LedgerRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromLedgerRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toGoalRow(g core.Goal) GoalRow {
	return GoalRow{
		UserID:     g.UserID,
		Kind:       string(g.Kind),
		Month:      g.Month.String(),
		ValueCents: g.Value.Cents(),
	}
}

func fromGoalRow(row GoalRow) (core.Goal, error) {
	m, err := core.ParseDate(row.Month)
	if err != nil {
		return core.Goal{}, fmt.Errorf("scan goal month: %w", err)
	}
	return core.Goal{
		UserID: row.UserID,
		Kind:   core.GoalKind(row.Kind),
		Month:  m,
		Value:  core.MoneyFromCents(row.ValueCents),
	}, nil
}

func fromGoalRows(rows []GoalRow) ([]core.Goal, error) {
	out := make([]core.Goal, 0, len(rows))
	for _, row := range rows {
		g, err := fromGoalRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
