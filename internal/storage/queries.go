package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the hand-written statements, rebound for the dialect.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func NewQueries(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect}
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.Rebind(query), args...)
}

// Row types mirror table columns; dates travel as "YYYY-MM-DD" strings.
type (
	LedgerRow struct {
		UserID      int64
		Kind        string
		Date        string
		AmountCents int64
		Category    string
	}

	GoalRow struct {
		UserID     int64
		Kind       string
		Month      string
		ValueCents int64
	}

	ImportBatchRow struct {
		ID        string
		UserID    int64
		Kind      string
		RowCount  int64
		CreatedAt string
	}
)

const ledgerColumns = `user_id, kind, date, amount_cents, category`

const insertRecord = `INSERT INTO ledger_records (` + ledgerColumns + `)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, kind, date) DO NOTHING`

// InsertRecord returns the number of rows inserted: 0 on conflict.
func (q *Queries) InsertRecord(ctx context.Context, r LedgerRow) (int64, error) {
	res, err := q.exec(ctx, insertRecord, r.UserID, r.Kind, r.Date, r.AmountCents, r.Category)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const upsertRecord = `INSERT INTO ledger_records (` + ledgerColumns + `)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, kind, date) DO UPDATE SET
    amount_cents = excluded.amount_cents,
    category = excluded.category,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertRecord(ctx context.Context, r LedgerRow) error {
	_, err := q.exec(ctx, upsertRecord, r.UserID, r.Kind, r.Date, r.AmountCents, r.Category)
	return err
}

const updateRecord = `UPDATE ledger_records
SET amount_cents = ?, category = ?, updated_at = CURRENT_TIMESTAMP
WHERE user_id = ? AND kind = ? AND date = ?`

func (q *Queries) UpdateRecord(ctx context.Context, r LedgerRow) (int64, error) {
	res, err := q.exec(ctx, updateRecord, r.AmountCents, r.Category, r.UserID, r.Kind, r.Date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteRecord = `DELETE FROM ledger_records WHERE user_id = ? AND kind = ? AND date = ?`

func (q *Queries) DeleteRecord(ctx context.Context, userID int64, kind, date string) (int64, error) {
	res, err := q.exec(ctx, deleteRecord, userID, kind, date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getRecord = `SELECT ` + ledgerColumns + ` FROM ledger_records
WHERE user_id = ? AND kind = ? AND date = ?`

func (q *Queries) GetRecord(ctx context.Context, userID int64, kind, date string) (LedgerRow, error) {
	var r LedgerRow
	err := q.queryRow(ctx, getRecord, userID, kind, date).
		Scan(&r.UserID, &r.Kind, &r.Date, &r.AmountCents, &r.Category)
	return r, err
}

const listRecords = `SELECT ` + ledgerColumns + ` FROM ledger_records
WHERE user_id = ? AND kind = ?
ORDER BY date`

func (q *Queries) ListRecords(ctx context.Context, userID int64, kind string) ([]LedgerRow, error) {
	return q.scanLedger(q.query(ctx, listRecords, userID, kind))
}

const recordsBetween = `SELECT ` + ledgerColumns + ` FROM ledger_records
WHERE user_id = ? AND kind = ? AND date >= ? AND date <= ?
ORDER BY date`

func (q *Queries) RecordsBetween(ctx context.Context, userID int64, kind, from, to string) ([]LedgerRow, error) {
	return q.scanLedger(q.query(ctx, recordsBetween, userID, kind, from, to))
}

const sumRecords = `SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_records
WHERE user_id = ? AND kind = ? AND date >= ? AND date <= ?`

func (q *Queries) SumRecords(ctx context.Context, userID int64, kind, from, to string) (int64, error) {
	var total int64
	err := q.queryRow(ctx, sumRecords, userID, kind, from, to).Scan(&total)
	return total, err
}

func (q *Queries) scanLedger(rows *sql.Rows, err error) ([]LedgerRow, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerRow
	for rows.Next() {
		var r LedgerRow
		if err := rows.Scan(&r.UserID, &r.Kind, &r.Date, &r.AmountCents, &r.Category); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const goalColumns = `user_id, kind, month, value_cents`

const upsertGoal = `INSERT INTO goals (` + goalColumns + `)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, kind, month) DO UPDATE SET
    value_cents = excluded.value_cents,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertGoal(ctx context.Context, g GoalRow) error {
	_, err := q.exec(ctx, upsertGoal, g.UserID, g.Kind, g.Month, g.ValueCents)
	return err
}

const deleteGoal = `DELETE FROM goals WHERE user_id = ? AND kind = ? AND month = ?`

func (q *Queries) DeleteGoal(ctx context.Context, userID int64, kind, month string) (int64, error) {
	res, err := q.exec(ctx, deleteGoal, userID, kind, month)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getGoal = `SELECT ` + goalColumns + ` FROM goals
WHERE user_id = ? AND kind = ? AND month = ?`

func (q *Queries) GetGoal(ctx context.Context, userID int64, kind, month string) (GoalRow, error) {
	var g GoalRow
	err := q.queryRow(ctx, getGoal, userID, kind, month).Scan(&g.UserID, &g.Kind, &g.Month, &g.ValueCents)
	return g, err
}

const latestGoal = `SELECT ` + goalColumns + ` FROM goals
WHERE user_id = ? AND kind = ?
ORDER BY month DESC
LIMIT 1`

func (q *Queries) LatestGoal(ctx context.Context, userID int64, kind string) (GoalRow, error) {
	var g GoalRow
	err := q.queryRow(ctx, latestGoal, userID, kind).Scan(&g.UserID, &g.Kind, &g.Month, &g.ValueCents)
	return g, err
}

const listGoals = `SELECT ` + goalColumns + ` FROM goals
WHERE user_id = ? AND kind = ?
ORDER BY month`

func (q *Queries) ListGoals(ctx context.Context, userID int64, kind string) ([]GoalRow, error) {
	return q.scanGoals(q.query(ctx, listGoals, userID, kind))
}

const goalsBetween = `SELECT ` + goalColumns + ` FROM goals
WHERE user_id = ? AND kind = ? AND month >= ? AND month <= ?
ORDER BY month`

func (q *Queries) GoalsBetween(ctx context.Context, userID int64, kind, from, to string) ([]GoalRow, error) {
	return q.scanGoals(q.query(ctx, goalsBetween, userID, kind, from, to))
}

func (q *Queries) scanGoals(rows *sql.Rows, err error) ([]GoalRow, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GoalRow
	for rows.Next() {
		var g GoalRow
		if err := rows.Scan(&g.UserID, &g.Kind, &g.Month, &g.ValueCents); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

const insertImportBatch = `INSERT INTO import_batches (id, user_id, kind, row_count, created_at)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertImportBatch(ctx context.Context, b ImportBatchRow) error {
	_, err := q.exec(ctx, insertImportBatch, b.ID, b.UserID, b.Kind, b.RowCount, b.CreatedAt)
	return err
}
