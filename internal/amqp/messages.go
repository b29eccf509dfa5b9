package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message types carried in the AMQP Type property.
const (
	TypeInvoiceEmail = "invoice.email"
	TypeLedgerSync   = "invoice.ledger"
)

// E-mail kinds of an InvoiceEmailMessage.
const (
	EmailInvoice  = "invoice"
	EmailReminder = "reminder"
)

// InvoiceEmailMessage asks the worker to e-mail an invoice or a payment
// reminder. The worker loads the invoice from the database; the PDF is the
// document rendered by the browser, base64 encoded.
type InvoiceEmailMessage struct {
	InvoiceID string    `json:"invoice_id"`
	Kind      string    `json:"kind"`
	PDFBase64 string    `json:"pdf_base64,omitempty"`
	To        string    `json:"to,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LedgerSyncMessage asks the worker to export an invoice to the ledger.
type LedgerSyncMessage struct {
	InvoiceID string    `json:"invoice_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvoiceEmailMessage(invoiceID, kind string) *InvoiceEmailMessage {
	return &InvoiceEmailMessage{
		InvoiceID: invoiceID,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func NewLedgerSyncMessage(invoiceID string) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		InvoiceID: invoiceID,
		Timestamp: time.Now(),
	}
}

// Validate rejects messages no handler could act on.
func (m *InvoiceEmailMessage) Validate() error {
	if m.InvoiceID == "" {
		return errors.New("missing invoice_id")
	}
	if m.Kind != EmailInvoice && m.Kind != EmailReminder {
		return fmt.Errorf("unknown e-mail kind %q", m.Kind)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceEmailMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceEmailMessageFromJSON decodes and validates an e-mail message.
func InvoiceEmailMessageFromJSON(data []byte) (*InvoiceEmailMessage, error) {
	var msg InvoiceEmailMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToJSON converts the message to JSON bytes
func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerSyncMessageFromJSON decodes and validates a ledger message.
func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InvoiceID == "" {
		return nil, errors.New("missing invoice_id")
	}
	return &msg, nil
}
