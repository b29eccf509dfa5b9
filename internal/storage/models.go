package storage

import "database/sql"

type Profile struct {
	ID                 string
	CompanyName        string
	Email              string
	VatNumber          string
	Address            string
	Iban               string
	DefaultNotes       string
	SubscriptionStatus string
	CreatedAt          string
	UpdatedAt          string
}

type Client struct {
	ID          string
	ProfileID   string
	CompanyName string
	VatNumber   string
	Address     string
	Email       string
	CreatedAt   string
}

type Product struct {
	ID           string
	ProfileID    string
	Description  string
	DefaultPrice float64
	VatRate      float64
	CreatedAt    string
}

type Invoice struct {
	ID                 string
	ProfileID          string
	InvoiceNumber      string
	ClientName         string
	IssueDate          string
	DueDate            string
	DataSnapshot       string
	Subtotal           float64
	VatTotal           float64
	TotalAmount        float64
	Status             string
	RemindersEnabled   bool
	ReminderCount      int64
	LastReminderSentAt sql.NullString
	RecurringInterval  string
	NextGenerationDate sql.NullString
	LedgerSync         string
	LedgerRef          string
	CreatedAt          string
	UpdatedAt          string
}
