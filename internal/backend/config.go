package backend

import (
	"errors"
	"fmt"
	"time"

	"facturepro/internal/config"
)

// LedgerType selects where finalized invoices are exported.
type LedgerType string

const (
	NoLedger     LedgerType = "none"
	MemoryLedger LedgerType = "memory"
	SheetsLedger LedgerType = "sheets"
)

func (lt LedgerType) String() string {
	return string(lt)
}

func (lt LedgerType) IsValid() bool {
	switch lt {
	case NoLedger, MemoryLedger, SheetsLedger:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build delivery components.
type Config struct {
	Ledger LedgerType

	// AMQP is optional; without a URL deliveries run in-process.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	AMQPAttempts int

	// Google Sheets ledger
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Mail
	ResendAPIKey    string
	MailFromAddress string
	MailReplyTo     string
	Brand           string

	SyncInterval  time.Duration
	SyncBatchSize int
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	ledgerType := LedgerType(appConfig.LedgerBackend)
	if ledgerType == "" {
		ledgerType = NoLedger
	}
	if !ledgerType.IsValid() {
		return Config{}, fmt.Errorf("invalid ledger backend in config: %s", appConfig.LedgerBackend)
	}

	return Config{
		Ledger: ledgerType,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		AMQPAttempts: 5,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		ResendAPIKey:    appConfig.ResendAPIKey,
		MailFromAddress: appConfig.MailFromAddress,
		MailReplyTo:     appConfig.MailReplyTo,
		Brand:           appConfig.Brand,

		SyncInterval:  appConfig.SyncInterval,
		SyncBatchSize: appConfig.SyncBatchSize,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Ledger.IsValid() {
		return fmt.Errorf("invalid ledger backend: %s", c.Ledger)
	}
	if c.Ledger == SheetsLedger {
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets ledger")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return errors.New("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets ledger")
		}
	}
	if c.MailFromAddress == "" {
		return errors.New("mail from address is required")
	}
	return nil
}

// LedgerTypes returns all valid ledger types
func LedgerTypes() []LedgerType {
	return []LedgerType{NoLedger, MemoryLedger, SheetsLedger}
}
