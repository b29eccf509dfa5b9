package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const profileColumns = `id, company_name, email, vat_number, address, iban, default_notes, subscription_status, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.CompanyName, &p.Email, &p.VatNumber, &p.Address, &p.Iban,
		&p.DefaultNotes, &p.SubscriptionStatus, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getProfile = `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`

func (q *Queries) GetProfile(ctx context.Context, id string) (Profile, error) {
	return scanProfile(q.db.QueryRowContext(ctx, getProfile, id))
}

const upsertProfile = `
INSERT INTO profiles (id, company_name, email, vat_number, address, iban, default_notes, subscription_status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    company_name = excluded.company_name,
    email = excluded.email,
    vat_number = excluded.vat_number,
    address = excluded.address,
    iban = excluded.iban,
    default_notes = excluded.default_notes,
    subscription_status = excluded.subscription_status,
    updated_at = excluded.updated_at`

type UpsertProfileParams struct {
	ID                 string
	CompanyName        string
	Email              string
	VatNumber          string
	Address            string
	Iban               string
	DefaultNotes       string
	SubscriptionStatus string
	Now                string
}

func (q *Queries) UpsertProfile(ctx context.Context, arg UpsertProfileParams) error {
	_, err := q.db.ExecContext(ctx, upsertProfile,
		arg.ID, arg.CompanyName, arg.Email, arg.VatNumber, arg.Address, arg.Iban,
		arg.DefaultNotes, arg.SubscriptionStatus, arg.Now, arg.Now)
	return err
}

const listClients = `
SELECT id, profile_id, company_name, vat_number, address, email, created_at
FROM clients WHERE profile_id = ? ORDER BY company_name COLLATE NOCASE, created_at`

func (q *Queries) ListClients(ctx context.Context, profileID string) ([]Client, error) {
	rows, err := q.db.QueryContext(ctx, listClients, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.ProfileID, &c.CompanyName, &c.VatNumber, &c.Address, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const createClient = `
INSERT INTO clients (id, profile_id, company_name, vat_number, address, email, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateClient(ctx context.Context, c Client) error {
	_, err := q.db.ExecContext(ctx, createClient, c.ID, c.ProfileID, c.CompanyName, c.VatNumber, c.Address, c.Email, c.CreatedAt)
	return err
}

const deleteClient = `DELETE FROM clients WHERE profile_id = ? AND id = ?`

func (q *Queries) DeleteClient(ctx context.Context, profileID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteClient, profileID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listProducts = `
SELECT id, profile_id, description, default_price, vat_rate, created_at
FROM products WHERE profile_id = ? ORDER BY description COLLATE NOCASE, created_at`

func (q *Queries) ListProducts(ctx context.Context, profileID string) ([]Product, error) {
	rows, err := q.db.QueryContext(ctx, listProducts, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ProfileID, &p.Description, &p.DefaultPrice, &p.VatRate, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const createProduct = `
INSERT INTO products (id, profile_id, description, default_price, vat_rate, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateProduct(ctx context.Context, p Product) error {
	_, err := q.db.ExecContext(ctx, createProduct, p.ID, p.ProfileID, p.Description, p.DefaultPrice, p.VatRate, p.CreatedAt)
	return err
}

const deleteProduct = `DELETE FROM products WHERE profile_id = ? AND id = ?`

func (q *Queries) DeleteProduct(ctx context.Context, profileID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteProduct, profileID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const invoiceColumns = `id, profile_id, invoice_number, client_name, issue_date, due_date, data_snapshot,
    subtotal, vat_total, total_amount, status, reminders_enabled, reminder_count, last_reminder_sent_at,
    recurring_interval, next_generation_date, ledger_sync, ledger_ref, created_at, updated_at`

func scanInvoice(row interface{ Scan(...any) error }) (Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.ProfileID, &i.InvoiceNumber, &i.ClientName, &i.IssueDate, &i.DueDate, &i.DataSnapshot,
		&i.Subtotal, &i.VatTotal, &i.TotalAmount, &i.Status, &i.RemindersEnabled, &i.ReminderCount, &i.LastReminderSentAt,
		&i.RecurringInterval, &i.NextGenerationDate, &i.LedgerSync, &i.LedgerRef, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (q *Queries) listInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createInvoice = `
INSERT INTO invoices (` + invoiceColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInvoice(ctx context.Context, i Invoice) error {
	_, err := q.db.ExecContext(ctx, createInvoice,
		i.ID, i.ProfileID, i.InvoiceNumber, i.ClientName, i.IssueDate, i.DueDate, i.DataSnapshot,
		i.Subtotal, i.VatTotal, i.TotalAmount, i.Status, i.RemindersEnabled, i.ReminderCount, i.LastReminderSentAt,
		i.RecurringInterval, i.NextGenerationDate, i.LedgerSync, i.LedgerRef, i.CreatedAt, i.UpdatedAt)
	return err
}

const getInvoice = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

func (q *Queries) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, getInvoice, id))
}

const listInvoicesByProfile = `
SELECT ` + invoiceColumns + ` FROM invoices
WHERE profile_id = ?
ORDER BY created_at DESC, issue_date DESC`

func (q *Queries) ListInvoicesByProfile(ctx context.Context, profileID string) ([]Invoice, error) {
	return q.listInvoices(ctx, listInvoicesByProfile, profileID)
}

const updateInvoiceStatus = `UPDATE invoices SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

func (q *Queries) UpdateInvoiceStatus(ctx context.Context, id, from, to, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateInvoiceStatus, to, now, id, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markReminderSent = `
UPDATE invoices
SET reminder_count = reminder_count + 1,
    last_reminder_sent_at = ?,
    status = 'overdue',
    updated_at = ?
WHERE id = ? AND status IN ('pending', 'overdue')`

func (q *Queries) MarkReminderSent(ctx context.Context, id, sentAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markReminderSent, sentAt, sentAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const handOverRecurrence = `
UPDATE invoices
SET recurring_interval = 'none', next_generation_date = NULL, updated_at = ?
WHERE id = ? AND recurring_interval != 'none' AND next_generation_date = ?`

func (q *Queries) HandOverRecurrence(ctx context.Context, id, generationDate, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, handOverRecurrence, now, id, generationDate)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listDueRecurring = `
SELECT ` + invoiceColumns + ` FROM invoices
WHERE recurring_interval != 'none'
  AND next_generation_date IS NOT NULL
  AND next_generation_date <= ?
ORDER BY next_generation_date, created_at`

func (q *Queries) ListDueRecurring(ctx context.Context, asOf string) ([]Invoice, error) {
	return q.listInvoices(ctx, listDueRecurring, asOf)
}

const listReminderCandidates = `
SELECT ` + invoiceColumns + ` FROM invoices
WHERE status IN ('pending', 'overdue')
  AND reminders_enabled = 1
  AND reminder_count < ?
  AND (last_reminder_sent_at IS NULL OR last_reminder_sent_at < ?)
  AND due_date != '' AND due_date < ?
  AND COALESCE(json_extract(data_snapshot, '$.client.email'), '') != ''
ORDER BY due_date, created_at`

type ListReminderCandidatesParams struct {
	MaxCount      int64
	LastSentFloor string
	Today         string
}

func (q *Queries) ListReminderCandidates(ctx context.Context, arg ListReminderCandidatesParams) ([]Invoice, error) {
	return q.listInvoices(ctx, listReminderCandidates, arg.MaxCount, arg.LastSentFloor, arg.Today)
}

const listPendingLedgerSync = `
SELECT ` + invoiceColumns + ` FROM invoices
WHERE ledger_sync IN ('pending', 'error')
ORDER BY created_at
LIMIT ?`

func (q *Queries) ListPendingLedgerSync(ctx context.Context, limit int64) ([]Invoice, error) {
	return q.listInvoices(ctx, listPendingLedgerSync, limit)
}

const markLedgerSynced = `UPDATE invoices SET ledger_sync = 'synced', ledger_ref = ?, updated_at = ? WHERE id = ?`

func (q *Queries) MarkLedgerSynced(ctx context.Context, id, ref, now string) error {
	_, err := q.db.ExecContext(ctx, markLedgerSynced, ref, now, id)
	return err
}

const markLedgerError = `UPDATE invoices SET ledger_sync = 'error', updated_at = ? WHERE id = ?`

func (q *Queries) MarkLedgerError(ctx context.Context, id, now string) error {
	_, err := q.db.ExecContext(ctx, markLedgerError, now, id)
	return err
}
