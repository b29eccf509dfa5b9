package log

// Field names shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldProfileID     = "profile_id"
	FieldInvoiceID     = "invoice_id"
	FieldInvoiceNumber = "invoice_number"
	FieldGrandTotal    = "grand_total"
	FieldEmailKind     = "kind"
	FieldRecipient     = "recipient"
	FieldMessageID     = "message_id"
	FieldLedgerRef     = "ledger_ref"
)

const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentInvoice = "invoice"
	ComponentCatalog = "catalog"
	ComponentWorker  = "worker"
	ComponentMail    = "mail"
	ComponentLedger  = "ledger"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpFinalize = "finalize"
	OpSend     = "send"
	OpSync     = "sync"
	OpValidate = "validate"
)

// LogFields collects key/value pairs for one record.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithInvoice identifies an invoice by id and number.
func (f LogFields) WithInvoice(id, number string) LogFields {
	f[FieldInvoiceID] = id
	f[FieldInvoiceNumber] = number
	return f
}

// WithRequest records method, path and query. Agent is skipped when empty.
func (f LogFields) WithRequest(method, path, query, agent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if agent != "" {
		f[FieldUserAgent] = agent
	}
	return f
}

// ToSlice flattens the fields for slog. Order is unspecified.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
