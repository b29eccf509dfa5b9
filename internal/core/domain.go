package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

const (
	IntervalNone      RecurringInterval = "none"
	IntervalMonthly   RecurringInterval = "monthly"
	IntervalQuarterly RecurringInterval = "quarterly"
	IntervalYearly    RecurringInterval = "yearly"
)

const (
	LedgerPending LedgerSyncState = "pending"
	LedgerSynced  LedgerSyncState = "synced"
	LedgerError   LedgerSyncState = "error"
)

// DefaultVATRate is the Belgian standard rate applied to new lines and products.
const DefaultVATRate = 21.0

// DateLayout is the ISO calendar date used by invoice details.
const DateLayout = "2006-01-02"

type (
	Status            string
	RecurringInterval string
	LedgerSyncState   string

	Date struct {
		time.Time
	}

	// LineItem is one row of an invoice as edited in the builder.
	LineItem struct {
		ID          string  `json:"id"`
		Description string  `json:"description"`
		Quantity    Amount  `json:"qty"`
		UnitPrice   Amount  `json:"unitPrice"`
		VATRate     float64 `json:"vatRate"`
	}

	InvoiceTotals struct {
		Subtotal   float64 `json:"subtotal"`
		VATTotal   float64 `json:"vatTotal"`
		GrandTotal float64 `json:"grandTotal"`
	}

	// Party is the seller or client block of an invoice.
	Party struct {
		CompanyName string `json:"companyName"`
		VATNumber   string `json:"vatNumber"`
		Address     string `json:"address"`
		Email       string `json:"email"`
		IBAN        string `json:"iban,omitempty"`
	}

	InvoiceDetails struct {
		InvoiceNumber string `json:"invoiceNumber"`
		IssueDate     string `json:"issueDate"`
		DueDate       string `json:"dueDate"`
	}

	// InvoiceData is the builder document, stored verbatim as the invoice snapshot.
	InvoiceData struct {
		Seller  Party          `json:"seller"`
		Client  Party          `json:"client"`
		Details InvoiceDetails `json:"details"`
		Lines   []LineItem     `json:"lines"`
		Notes   string         `json:"notes"`
	}

	Invoice struct {
		ID                 string            `json:"id"`
		ProfileID          string            `json:"profileId"`
		Number             string            `json:"invoiceNumber"`
		ClientName         string            `json:"clientName"`
		IssueDate          Date              `json:"issueDate"`
		Data               InvoiceData       `json:"data"`
		Totals             InvoiceTotals     `json:"totals"`
		Status             Status            `json:"status"`
		RemindersEnabled   bool              `json:"remindersEnabled"`
		ReminderCount      int               `json:"reminderCount"`
		LastReminderSentAt *time.Time        `json:"lastReminderSentAt,omitempty"`
		RecurringInterval  RecurringInterval `json:"recurringInterval"`
		NextGenerationDate Date              `json:"nextGenerationDate"`
		LedgerSync         LedgerSyncState   `json:"ledgerSync"`
		CreatedAt          time.Time         `json:"createdAt"`
	}

	Profile struct {
		ID                 string `json:"id"`
		CompanyName        string `json:"companyName"`
		Email              string `json:"email"`
		VATNumber          string `json:"vatNumber"`
		Address            string `json:"address"`
		IBAN               string `json:"iban"`
		DefaultNotes       string `json:"defaultNotes"`
		SubscriptionStatus string `json:"subscriptionStatus"`
	}

	Client struct {
		ID          string    `json:"id"`
		ProfileID   string    `json:"profileId"`
		CompanyName string    `json:"companyName"`
		VATNumber   string    `json:"vatNumber"`
		Address     string    `json:"address"`
		Email       string    `json:"email"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	Product struct {
		ID           string    `json:"id"`
		ProfileID    string    `json:"profileId"`
		Description  string    `json:"description"`
		DefaultPrice float64   `json:"defaultPrice"`
		VATRate      float64   `json:"vatRate"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrEmptyDescription     = errors.New("empty description")
	ErrEmptyInvoiceNumber   = errors.New("empty invoice number")
	ErrEmptyClient          = errors.New("empty client name")
	ErrNoLines              = errors.New("invoice has no lines")
	ErrInvalidVATNumber     = errors.New("invalid Belgian VAT number")
	ErrInvalidIBAN          = errors.New("invalid IBAN")
	ErrInvalidInterval      = errors.New("invalid recurring interval")
	ErrInvalidStatusChange  = errors.New("invalid status change")
	ErrMissingClientEmail   = errors.New("client has no e-mail address")
	ErrDueBeforeIssue       = errors.New("due date is before issue date")
	ErrEmptyCompanyName     = errors.New("empty company name")
	ErrInvalidVATRate       = errors.New("invalid VAT rate")
	ErrInvalidDefaultAmount = errors.New("invalid default price")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads an ISO YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true for the zero date, used for optional dates.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when empty.
func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// AddMonths moves the date by n months. Overflowing days roll into the
// following month, so Jan 31 + 1 month is Mar 3 (Mar 2 in leap years).
func (d Date) AddMonths(n int) Date {
	return Date{Time: d.AddDate(0, n, 0)}
}

// DaysUntil counts whole days from d to other, rounded to the nearest day.
func (d Date) DaysUntil(other Date) int {
	return int((other.Sub(d.Time) + 12*time.Hour) / (24 * time.Hour))
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsEmpty() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Open reports whether the invoice still awaits payment.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusOverdue
}

// CanTransition reports whether an invoice in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusPaid:
		return s.Open()
	case StatusCancelled:
		return s == StatusPending
	case StatusOverdue:
		return s.Open()
	}
	return false
}

// ParseInterval maps stored or submitted text to an interval; "" means none.
func ParseInterval(s string) (RecurringInterval, error) {
	switch RecurringInterval(strings.ToLower(strings.TrimSpace(s))) {
	case "", IntervalNone:
		return IntervalNone, nil
	case IntervalMonthly:
		return IntervalMonthly, nil
	case IntervalQuarterly:
		return IntervalQuarterly, nil
	case IntervalYearly:
		return IntervalYearly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
}

// Recurring reports whether the interval schedules further invoices.
func (r RecurringInterval) Recurring() bool {
	return r == IntervalMonthly || r == IntervalQuarterly || r == IntervalYearly
}

// Validate checks that the builder document can be finalized.
func (d InvoiceData) Validate() error {
	if strings.TrimSpace(d.Details.InvoiceNumber) == "" {
		return ErrEmptyInvoiceNumber
	}
	issue, err := ParseDate(d.Details.IssueDate)
	if err != nil {
		return fmt.Errorf("issue date: %w", err)
	}
	if d.Details.DueDate != "" {
		due, err := ParseDate(d.Details.DueDate)
		if err != nil {
			return fmt.Errorf("due date: %w", err)
		}
		if due.Before(issue.Time) {
			return ErrDueBeforeIssue
		}
	}
	if strings.TrimSpace(d.Client.CompanyName) == "" {
		return ErrEmptyClient
	}
	if len(d.Lines) == 0 {
		return ErrNoLines
	}
	for i, l := range d.Lines {
		if strings.TrimSpace(l.Description) == "" {
			return fmt.Errorf("line %d: %w", i+1, ErrEmptyDescription)
		}
		if l.VATRate < 0 || l.VATRate > 100 {
			return fmt.Errorf("line %d: %w", i+1, ErrInvalidVATRate)
		}
	}
	if v := strings.TrimSpace(d.Seller.VATNumber); v != "" && !ValidBEVAT(v) {
		return fmt.Errorf("seller: %w", ErrInvalidVATNumber)
	}
	// Foreign clients carry non-Belgian numbers that are not checked here.
	if v := strings.TrimSpace(d.Client.VATNumber); isBelgianVAT(v) && !ValidBEVAT(v) {
		return fmt.Errorf("client: %w", ErrInvalidVATNumber)
	}
	if v := strings.TrimSpace(d.Seller.IBAN); v != "" && !ValidIBAN(v) {
		return ErrInvalidIBAN
	}
	return nil
}

// Totals computes the live totals of the document lines.
func (d InvoiceData) Totals() InvoiceTotals {
	return ComputeTotals(d.Lines)
}

// Reference is the structured payment communication for the invoice.
func (i Invoice) Reference() string {
	return StructuredReference(i.Number)
}

// DueDate returns the snapshot due date, or the zero date when absent or malformed.
func (i Invoice) DueDate() Date {
	d, err := ParseDate(i.Data.Details.DueDate)
	if err != nil {
		return Date{}
	}
	return d
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	if p.DefaultPrice < 0 {
		return ErrInvalidDefaultAmount
	}
	if p.VATRate < 0 || p.VATRate > 100 {
		return ErrInvalidVATRate
	}
	return nil
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.CompanyName) == "" {
		return ErrEmptyCompanyName
	}
	if v := strings.TrimSpace(c.VATNumber); isBelgianVAT(v) && !ValidBEVAT(v) {
		return ErrInvalidVATNumber
	}
	return nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.CompanyName) == "" {
		return ErrEmptyCompanyName
	}
	if v := strings.TrimSpace(p.VATNumber); v != "" && !ValidBEVAT(v) {
		return ErrInvalidVATNumber
	}
	if v := strings.TrimSpace(p.IBAN); v != "" && !ValidIBAN(v) {
		return ErrInvalidIBAN
	}
	return nil
}

// Seller builds the seller block of a new invoice from the profile.
func (p Profile) Seller() Party {
	return Party{
		CompanyName: p.CompanyName,
		VATNumber:   p.VATNumber,
		Address:     p.Address,
		Email:       p.Email,
		IBAN:        p.IBAN,
	}
}

// Party builds the client block of a new invoice from a saved client.
func (c Client) Party() Party {
	return Party{
		CompanyName: c.CompanyName,
		VATNumber:   c.VATNumber,
		Address:     c.Address,
		Email:       c.Email,
	}
}

// Line turns a catalog product into a fresh invoice line of quantity 1.
func (p Product) Line() LineItem {
	l := DefaultLine()
	l.Description = p.Description
	l.UnitPrice = Amount(formatPlain(p.DefaultPrice))
	l.VATRate = p.VATRate
	return l
}
