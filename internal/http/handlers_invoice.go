package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"facturepro/internal/core"
	applog "facturepro/internal/log"
	"facturepro/internal/services"
)

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.invoices.List(r.Context(), mux.Vars(r)["profileID"])
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newInvoiceViews(formatConfig(r), invoices)).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.invoices.Summary(r.Context(), mux.Vars(r)["profileID"])
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	cfg := formatConfig(r)
	NewJSONResponse().Body(map[string]any{
		"summary": summary,
		"formatted": map[string]string{
			"outstanding": core.FormatCurrencyWith(cfg, summary.Outstanding),
			"overdue":     core.FormatCurrencyWith(cfg, summary.Overdue),
			"paid":        core.FormatCurrencyWith(cfg, summary.Paid),
		},
	}).Write(w)
}

// handleFinalizeInvoice saves the builder document as a new invoice.
func (s *Server) handleFinalizeInvoice(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}

	interval := core.IntervalNone
	if req.RecurringInterval != "" {
		parsed, err := core.ParseInterval(req.RecurringInterval)
		if err != nil {
			s.fail(w, r, applog.OpValidate, err)
			return
		}
		interval = parsed
	}

	inv, err := s.invoices.Finalize(r.Context(), mux.Vars(r)["profileID"], services.FinalizeRequest{
		Data:              req.Data,
		RemindersEnabled:  req.RemindersEnabled,
		RecurringInterval: interval,
		SendEmail:         req.SendEmail,
		PDFBase64:         req.PDFBase64,
	})
	if err != nil {
		s.fail(w, r, applog.OpFinalize, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newInvoiceView(formatConfig(r), inv)).Write(w)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newInvoiceView(formatConfig(r), inv)).Write(w)
}

// handleSendInvoice queues the e-mail of a PDF rendered by the browser.
func (s *Server) handleSendInvoice(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, err)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.invoices.Send(r.Context(), id, req.PDFBase64, req.ReplyTo); err != nil {
		s.fail(w, r, applog.OpSend, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Body(map[string]string{
		"invoiceId": id,
		"status":    "queued",
	}).Write(w)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.MarkPaid(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newInvoiceView(formatConfig(r), inv)).Write(w)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newInvoiceView(formatConfig(r), inv)).Write(w)
}
