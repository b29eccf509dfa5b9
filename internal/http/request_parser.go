// Package http serves the JSON API used by the invoice builder.
//
// This file implements request decoding and validation. Bodies are decoded
// once, size limited, then checked with struct tags.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"facturepro/internal/core"
)

// maxBodyBytes bounds request bodies; finalize and send carry a base64 PDF.
const maxBodyBytes = 16 << 20

// malformedRequestError is returned for bodies that are not valid JSON.
type malformedRequestError struct {
	msg string
}

func (e *malformedRequestError) Error() string { return e.msg }

var validate = newValidator()

// newValidator reports JSON field names and knows the Belgian tags be_vat
// and iban.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "be_vat", func(fl validator.FieldLevel) bool {
		return core.ValidBEVAT(fl.Field().String())
	})
	mustRegister(v, "iban", func(fl validator.FieldLevel) bool {
		return core.ValidIBAN(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// decodeJSON reads one JSON document from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &malformedRequestError{msg: "request body is empty"}
		case errors.As(err, &maxErr):
			return &malformedRequestError{msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		default:
			return &malformedRequestError{msg: "malformed JSON: " + err.Error()}
		}
	}
	if dec.More() {
		return &malformedRequestError{msg: "request body must contain a single JSON document"}
	}
	return nil
}

// decodeAndValidate decodes the body then checks its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "be_vat":
		return "Invalid Belgian VAT number"
	case "iban":
		return "Invalid IBAN"
	case "base64":
		return "Must be base64 encoded"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must contain at most " + e.Param() + " items"
	default:
		return "Invalid value"
	}
}

type totalsRequest struct {
	Lines []core.LineItem `json:"lines" validate:"max=500"`
}

type referenceRequest struct {
	InvoiceNumber string `json:"invoiceNumber" validate:"required,max=64"`
}

type profileRequest struct {
	CompanyName  string `json:"companyName" validate:"required,max=200"`
	Email        string `json:"email" validate:"omitempty,email"`
	VATNumber    string `json:"vatNumber" validate:"omitempty,be_vat"`
	Address      string `json:"address" validate:"max=500"`
	IBAN         string `json:"iban" validate:"omitempty,iban"`
	DefaultNotes string `json:"defaultNotes" validate:"max=2000"`
}

func (p profileRequest) toProfile(id string) core.Profile {
	return core.Profile{
		ID:           id,
		CompanyName:  sanitizeInput(p.CompanyName),
		Email:        sanitizeInput(p.Email),
		VATNumber:    sanitizeInput(p.VATNumber),
		Address:      sanitizeInput(p.Address),
		IBAN:         sanitizeInput(p.IBAN),
		DefaultNotes: sanitizeInput(p.DefaultNotes),
	}
}

// clientRequest accepts foreign VAT numbers; Belgian ones are checked by
// the domain model.
type clientRequest struct {
	CompanyName string `json:"companyName" validate:"required,max=200"`
	VATNumber   string `json:"vatNumber" validate:"max=32"`
	Address     string `json:"address" validate:"max=500"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func (c clientRequest) toClient(profileID string) core.Client {
	return core.Client{
		ProfileID:   profileID,
		CompanyName: sanitizeInput(c.CompanyName),
		VATNumber:   sanitizeInput(c.VATNumber),
		Address:     sanitizeInput(c.Address),
		Email:       sanitizeInput(c.Email),
	}
}

type productRequest struct {
	Description  string  `json:"description" validate:"required,max=500"`
	DefaultPrice float64 `json:"defaultPrice" validate:"gte=0"`
	VATRate      float64 `json:"vatRate" validate:"gte=0,lte=100"`
}

func (p productRequest) toProduct(profileID string) core.Product {
	return core.Product{
		ProfileID:    profileID,
		Description:  sanitizeInput(p.Description),
		DefaultPrice: p.DefaultPrice,
		VATRate:      p.VATRate,
	}
}

type finalizeRequest struct {
	Data              core.InvoiceData `json:"data"`
	RemindersEnabled  bool             `json:"remindersEnabled"`
	RecurringInterval string           `json:"recurringInterval" validate:"omitempty,oneof=none monthly quarterly yearly"`
	SendEmail         bool             `json:"sendEmail"`
	PDFBase64         string           `json:"pdfBase64" validate:"omitempty,base64"`
}

type sendRequest struct {
	PDFBase64 string `json:"pdfBase64" validate:"required,base64"`
	ReplyTo   string `json:"replyTo" validate:"omitempty,email"`
}
