package http

import (
	"context"
	"net/http"
	"time"

	"facturepro/internal/core"
	applog "facturepro/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	status, code := "ready", http.StatusOK
	if err := s.storage.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "check", "database", "error", err)
		checks["database"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
		"caches": map[string]int{
			"clients":  s.clientsCache.Size(),
			"products": s.productsCache.Size(),
		},
	}).Write(w)
}

type totalsResponse struct {
	core.InvoiceTotals
	Locale    string          `json:"locale"`
	Formatted formattedTotals `json:"formatted"`
}

// handleTotals computes the live totals of the builder lines.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	var req totalsRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}

	cfg := formatConfig(r)
	totals := s.invoices.Preview(req.Lines)
	NewJSONResponse().Body(totalsResponse{
		InvoiceTotals: totals,
		Locale:        cfg.Locale,
		Formatted:     formatTotals(cfg, totals),
	}).Write(w)
}

// handleReference returns the structured payment communication of an
// invoice number.
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}
	NewJSONResponse().Body(map[string]string{
		"invoiceNumber": req.InvoiceNumber,
		"reference":     core.StructuredReference(req.InvoiceNumber),
	}).Write(w)
}
