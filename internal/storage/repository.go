package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"facturepro/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or belongs to another profile.
var ErrNotFound = errors.New("not found")

// ErrAlreadyGenerated is returned when a recurring parent no longer holds the
// schedule a child was built from.
var ErrAlreadyGenerated = errors.New("recurring invoice already generated")

// timestampLayout sorts lexicographically in the same order as time.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return formatTimestamp(r.now())
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// GetProfile returns the seller profile.
func (r *SQLiteRepository) GetProfile(ctx context.Context, id string) (core.Profile, error) {
	p, err := r.queries.GetProfile(ctx, id)
	if err != nil {
		return core.Profile{}, notFound(err, "profile")
	}
	return core.Profile{
		ID:                 p.ID,
		CompanyName:        p.CompanyName,
		Email:              p.Email,
		VATNumber:          p.VatNumber,
		Address:            p.Address,
		IBAN:               p.Iban,
		DefaultNotes:       p.DefaultNotes,
		SubscriptionStatus: p.SubscriptionStatus,
	}, nil
}

// UpsertProfile creates or replaces the seller profile.
func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p core.Profile) error {
	status := p.SubscriptionStatus
	if status == "" {
		status = "free"
	}
	err := r.queries.UpsertProfile(ctx, UpsertProfileParams{
		ID:                 p.ID,
		CompanyName:        p.CompanyName,
		Email:              p.Email,
		VatNumber:          p.VATNumber,
		Address:            p.Address,
		Iban:               p.IBAN,
		DefaultNotes:       p.DefaultNotes,
		SubscriptionStatus: status,
		Now:                r.timestamp(),
	})
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// ListClients returns the saved clients of a profile ordered by company name.
func (r *SQLiteRepository) ListClients(ctx context.Context, profileID string) ([]core.Client, error) {
	rows, err := r.queries.ListClients(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]core.Client, len(rows))
	for i, c := range rows {
		out[i] = core.Client{
			ID:          c.ID,
			ProfileID:   c.ProfileID,
			CompanyName: c.CompanyName,
			VATNumber:   c.VatNumber,
			Address:     c.Address,
			Email:       c.Email,
			CreatedAt:   parseTimestamp(c.CreatedAt),
		}
	}
	return out, nil
}

// CreateClient stores a client, assigning an ID when missing.
func (r *SQLiteRepository) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	if c.ID == "" {
		c.ID = core.NewID()
	}
	now := r.now()
	c.CreatedAt = now.UTC()
	err := r.queries.CreateClient(ctx, Client{
		ID:          c.ID,
		ProfileID:   c.ProfileID,
		CompanyName: strings.TrimSpace(c.CompanyName),
		VatNumber:   strings.TrimSpace(c.VATNumber),
		Address:     c.Address,
		Email:       strings.TrimSpace(c.Email),
		CreatedAt:   formatTimestamp(now),
	})
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

// DeleteClient removes a client of the profile.
func (r *SQLiteRepository) DeleteClient(ctx context.Context, profileID, id string) error {
	n, err := r.queries.DeleteClient(ctx, profileID, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListProducts returns the product catalog of a profile ordered by description.
func (r *SQLiteRepository) ListProducts(ctx context.Context, profileID string) ([]core.Product, error) {
	rows, err := r.queries.ListProducts(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]core.Product, len(rows))
	for i, p := range rows {
		out[i] = core.Product{
			ID:           p.ID,
			ProfileID:    p.ProfileID,
			Description:  p.Description,
			DefaultPrice: p.DefaultPrice,
			VATRate:      p.VatRate,
			CreatedAt:    parseTimestamp(p.CreatedAt),
		}
	}
	return out, nil
}

// CreateProduct stores a catalog product, assigning an ID when missing.
func (r *SQLiteRepository) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if p.ID == "" {
		p.ID = core.NewID()
	}
	now := r.now()
	p.CreatedAt = now.UTC()
	err := r.queries.CreateProduct(ctx, Product{
		ID:           p.ID,
		ProfileID:    p.ProfileID,
		Description:  strings.TrimSpace(p.Description),
		DefaultPrice: p.DefaultPrice,
		VatRate:      p.VATRate,
		CreatedAt:    formatTimestamp(now),
	})
	if err != nil {
		return core.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes a catalog product of the profile.
func (r *SQLiteRepository) DeleteProduct(ctx context.Context, profileID, id string) error {
	n, err := r.queries.DeleteProduct(ctx, profileID, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}

func toRow(inv core.Invoice) (Invoice, error) {
	snapshot, err := json.Marshal(inv.Data)
	if err != nil {
		return Invoice{}, fmt.Errorf("encode invoice snapshot: %w", err)
	}
	row := Invoice{
		ID:                inv.ID,
		ProfileID:         inv.ProfileID,
		InvoiceNumber:     inv.Number,
		ClientName:        inv.ClientName,
		IssueDate:         inv.IssueDate.String(),
		DueDate:           inv.Data.Details.DueDate,
		DataSnapshot:      string(snapshot),
		Subtotal:          inv.Totals.Subtotal,
		VatTotal:          inv.Totals.VATTotal,
		TotalAmount:       inv.Totals.GrandTotal,
		Status:            string(inv.Status),
		RemindersEnabled:  inv.RemindersEnabled,
		ReminderCount:     int64(inv.ReminderCount),
		RecurringInterval: string(inv.RecurringInterval),
		LedgerSync:        string(inv.LedgerSync),
	}
	if inv.LastReminderSentAt != nil {
		row.LastReminderSentAt = sql.NullString{String: formatTimestamp(*inv.LastReminderSentAt), Valid: true}
	}
	if !inv.NextGenerationDate.IsEmpty() {
		row.NextGenerationDate = sql.NullString{String: inv.NextGenerationDate.String(), Valid: true}
	}
	if row.Status == "" {
		row.Status = string(core.StatusPending)
	}
	if row.RecurringInterval == "" {
		row.RecurringInterval = string(core.IntervalNone)
	}
	if row.LedgerSync == "" {
		row.LedgerSync = string(core.LedgerPending)
	}
	return row, nil
}

func fromRow(row Invoice) (core.Invoice, error) {
	inv := core.Invoice{
		ID:                row.ID,
		ProfileID:         row.ProfileID,
		Number:            row.InvoiceNumber,
		ClientName:        row.ClientName,
		Status:            core.Status(row.Status),
		RemindersEnabled:  row.RemindersEnabled,
		ReminderCount:     int(row.ReminderCount),
		RecurringInterval: core.RecurringInterval(row.RecurringInterval),
		LedgerSync:        core.LedgerSyncState(row.LedgerSync),
		CreatedAt:         parseTimestamp(row.CreatedAt),
		Totals: core.InvoiceTotals{
			Subtotal:   row.Subtotal,
			VATTotal:   row.VatTotal,
			GrandTotal: row.TotalAmount,
		},
	}
	if err := json.Unmarshal([]byte(row.DataSnapshot), &inv.Data); err != nil {
		return core.Invoice{}, fmt.Errorf("decode snapshot of invoice %s: %w", row.ID, err)
	}
	if d, err := core.ParseDate(row.IssueDate); err == nil {
		inv.IssueDate = d
	}
	if row.NextGenerationDate.Valid {
		if d, err := core.ParseDate(row.NextGenerationDate.String); err == nil {
			inv.NextGenerationDate = d
		}
	}
	if row.LastReminderSentAt.Valid {
		if t := parseTimestamp(row.LastReminderSentAt.String); !t.IsZero() {
			inv.LastReminderSentAt = &t
		}
	}
	return inv, nil
}

func fromRows(rows []Invoice) ([]core.Invoice, error) {
	out := make([]core.Invoice, 0, len(rows))
	for _, row := range rows {
		inv, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// CreateInvoice persists a finalized invoice with its snapshot and totals.
func (r *SQLiteRepository) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if inv.ID == "" {
		inv.ID = core.NewID()
	}
	row, err := toRow(inv)
	if err != nil {
		return core.Invoice{}, err
	}
	now := r.now()
	row.CreatedAt = formatTimestamp(now)
	row.UpdatedAt = row.CreatedAt
	if err := r.queries.CreateInvoice(ctx, row); err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	slog.InfoContext(ctx, "Invoice saved to SQLite",
		"id", row.ID,
		"invoice_number", row.InvoiceNumber,
		"total_amount", row.TotalAmount,
		"status", row.Status)

	return fromRow(row)
}

// GetInvoice loads an invoice by ID.
func (r *SQLiteRepository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	row, err := r.queries.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, notFound(err, "invoice")
	}
	return fromRow(row)
}

// ListInvoices returns the invoices of a profile, newest first.
func (r *SQLiteRepository) ListInvoices(ctx context.Context, profileID string) ([]core.Invoice, error) {
	rows, err := r.queries.ListInvoicesByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return fromRows(rows)
}

// UpdateInvoiceStatus moves an invoice from one payment status to another.
// The write only applies while the stored status still equals from.
func (r *SQLiteRepository) UpdateInvoiceStatus(ctx context.Context, id string, from, to core.Status) error {
	n, err := r.queries.UpdateInvoiceStatus(ctx, id, string(from), string(to), r.timestamp())
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if n == 0 {
		return r.staleStatus(ctx, id, fmt.Sprintf("%s to %s", from, to))
	}
	return nil
}

// MarkReminderSent records a payment reminder and flags the invoice overdue.
// Paid and cancelled invoices are left untouched.
func (r *SQLiteRepository) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error {
	n, err := r.queries.MarkReminderSent(ctx, id, formatTimestamp(sentAt))
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if n == 0 {
		return r.staleStatus(ctx, id, "reminder")
	}
	return nil
}

// staleStatus explains why a guarded status write touched no row.
func (r *SQLiteRepository) staleStatus(ctx context.Context, id, change string) error {
	row, err := r.queries.GetInvoice(ctx, id)
	if err != nil {
		return notFound(err, "invoice "+id)
	}
	return fmt.Errorf("%w: invoice %s is %s, %s", core.ErrInvalidStatusChange, id, row.Status, change)
}

// DueRecurringInvoices returns recurring invoices whose next generation date
// is on or before asOf.
func (r *SQLiteRepository) DueRecurringInvoices(ctx context.Context, asOf core.Date) ([]core.Invoice, error) {
	rows, err := r.queries.ListDueRecurring(ctx, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due recurring invoices: %w", err)
	}
	return fromRows(rows)
}

// OverdueReminderCandidates returns open invoices past their due date that
// may receive a reminder: reminders enabled, fewer than maxCount sent, none
// within minGap, and a client e-mail on file.
func (r *SQLiteRepository) OverdueReminderCandidates(ctx context.Context, now time.Time, minGap time.Duration, maxCount int) ([]core.Invoice, error) {
	rows, err := r.queries.ListReminderCandidates(ctx, ListReminderCandidatesParams{
		MaxCount:      int64(maxCount),
		LastSentFloor: formatTimestamp(now.Add(-minGap)),
		Today:         core.DateOf(now).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return fromRows(rows)
}

// PendingLedgerSync returns invoices not yet exported to the ledger, oldest first.
func (r *SQLiteRepository) PendingLedgerSync(ctx context.Context, limit int) ([]core.Invoice, error) {
	rows, err := r.queries.ListPendingLedgerSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending ledger sync: %w", err)
	}
	return fromRows(rows)
}

// MarkLedgerSynced records the ledger row reference of an exported invoice.
func (r *SQLiteRepository) MarkLedgerSynced(ctx context.Context, id, ref string) error {
	if err := r.queries.MarkLedgerSynced(ctx, id, ref, r.timestamp()); err != nil {
		return fmt.Errorf("mark ledger synced: %w", err)
	}
	slog.InfoContext(ctx, "Invoice marked as synced to ledger", "id", id, "ledger_ref", ref)
	return nil
}

// MarkLedgerError flags a failed ledger export for the next sweep.
func (r *SQLiteRepository) MarkLedgerError(ctx context.Context, id string) error {
	if err := r.queries.MarkLedgerError(ctx, id, r.timestamp()); err != nil {
		return fmt.Errorf("mark ledger error: %w", err)
	}
	slog.WarnContext(ctx, "Invoice marked with ledger sync error", "id", id)
	return nil
}

// CreateRecurringChild inserts the generated invoice and hands the schedule
// over from the parent in a single transaction. The child's issue date must
// match the parent's pending generation date, otherwise nothing is written
// and ErrAlreadyGenerated is returned.
func (r *SQLiteRepository) CreateRecurringChild(ctx context.Context, parentID string, child core.Invoice) (core.Invoice, error) {
	if child.ID == "" {
		child.ID = core.NewID()
	}
	row, err := toRow(child)
	if err != nil {
		return core.Invoice{}, err
	}
	now := r.timestamp()
	row.CreatedAt = now
	row.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.CreateInvoice(ctx, row); err != nil {
		return core.Invoice{}, fmt.Errorf("create recurring invoice: %w", err)
	}
	n, err := q.HandOverRecurrence(ctx, parentID, child.IssueDate.String(), now)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("clear parent recurrence: %w", err)
	}
	if n == 0 {
		if _, err := q.GetInvoice(ctx, parentID); err != nil {
			return core.Invoice{}, notFound(err, "parent invoice "+parentID)
		}
		return core.Invoice{}, fmt.Errorf("parent invoice %s on %s: %w", parentID, child.IssueDate, ErrAlreadyGenerated)
	}
	if err := tx.Commit(); err != nil {
		return core.Invoice{}, fmt.Errorf("commit recurring invoice: %w", err)
	}
	return fromRow(row)
}
