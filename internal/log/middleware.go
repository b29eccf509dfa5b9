package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

// LoggerContextKey is the context key for the request logger.
const LoggerContextKey ContextKey = "logger"

// Middleware puts logger in every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), logger)))
		})
	}
}

// IntoContext returns ctx carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext returns the context logger, or the default one tagged
// "unknown".
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return Default("unknown")
}

// StructuredLogger writes the records that recur across packages with a
// fixed set of fields.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().WithRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"))
	fields[FieldClientIP] = clientIP

	sl.logger.WithComponent(ComponentHTTP).DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs at warn for 4xx and error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().WithRequest(r.Method, r.URL.Path, r.URL.RawQuery, "")
	fields[FieldStatusCode] = statusCode
	fields[FieldDuration] = durationMs
	fields[FieldClientIP] = clientIP

	sl.logger.WithComponent(ComponentHTTP).emit(ctx, level, "HTTP request completed", fields.ToSlice())
}

func (sl *StructuredLogger) LogInvoiceFinalized(ctx context.Context, profileID, invoiceID, number string, grandTotal float64) {
	fields := NewFields().WithInvoice(invoiceID, number).WithOperation(OpFinalize)
	fields[FieldProfileID] = profileID
	fields[FieldGrandTotal] = grandTotal

	sl.logger.WithComponent(ComponentInvoice).InfoContext(ctx, "Invoice finalized", fields.ToSlice()...)
}

// LogEmailSent records a delivered invoice or reminder e-mail.
func (sl *StructuredLogger) LogEmailSent(ctx context.Context, invoiceID, number, kind, recipient, messageID string) {
	fields := NewFields().WithInvoice(invoiceID, number).WithOperation(OpSend)
	fields[FieldEmailKind] = kind
	fields[FieldRecipient] = recipient
	fields[FieldMessageID] = messageID

	sl.logger.WithComponent(ComponentMail).InfoContext(ctx, "E-mail sent", fields.ToSlice()...)
}

// LogLedgerSynced records an invoice exported to the ledger.
func (sl *StructuredLogger) LogLedgerSynced(ctx context.Context, invoiceID, number, ref string) {
	fields := NewFields().WithInvoice(invoiceID, number).WithOperation(OpSync)
	fields[FieldLedgerRef] = ref

	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Synced invoice to ledger", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
