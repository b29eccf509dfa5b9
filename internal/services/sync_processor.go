package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"facturepro/internal/core"
	"facturepro/internal/ledger"
	"facturepro/internal/log"
	"facturepro/internal/storage"
)

// SyncProcessorConfig holds configuration for the ledger sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending invoices (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of invoices exported per poll cycle (default: 10)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

// SyncProcessor exports invoices to the ledger. It serves single invoices
// from queue messages and sweeps those whose export is still pending or
// failed.
type SyncProcessor struct {
	storage *storage.SQLiteRepository
	ledger  ledger.Writer
	config  SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor. A nil writer disables the
// export: invoices stay pending until a ledger is configured.
func NewSyncProcessor(
	storage *storage.SQLiteRepository,
	writer ledger.Writer,
	config SyncProcessorConfig,
) *SyncProcessor {
	return &SyncProcessor{
		storage: storage,
		ledger:  writer,
		config:  config,
	}
}

// Enabled reports whether a ledger is configured.
func (p *SyncProcessor) Enabled() bool {
	return p.ledger != nil
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Ledger sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Signal stop
	close(p.stopCh)

	// Wait for completion or context cancellation
	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Ledger sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Ledger sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// Run sweeps until ctx is cancelled.
func (p *SyncProcessor) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.Stop(stopCtx)
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop
func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch exports one batch of pending invoices and returns how many
// were synced.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.ledger == nil {
		return 0, nil
	}

	items, err := p.storage.PendingLedgerSync(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending ledger sync", "error", err)
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	slog.DebugContext(ctx, "Processing ledger sync batch", "count", len(items))

	synced := 0
	for _, inv := range items {
		// Check if we should stop
		select {
		case <-ctx.Done():
			return synced, ctx.Err()
		default:
		}

		if err := p.syncInvoice(ctx, inv); err != nil {
			slog.WarnContext(ctx, "Ledger sync failed",
				"invoice_id", inv.ID,
				"invoice_number", inv.Number,
				"error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// SyncInvoice exports one invoice. Already synced invoices are skipped.
func (p *SyncProcessor) SyncInvoice(ctx context.Context, id string) error {
	if p.ledger == nil {
		slog.DebugContext(ctx, "No ledger configured, skipping export", "invoice_id", id)
		return nil
	}
	inv, err := p.storage.GetInvoice(ctx, id)
	if err != nil {
		return fmt.Errorf("get invoice %s: %w", id, err)
	}
	return p.syncInvoice(ctx, inv)
}

func (p *SyncProcessor) syncInvoice(ctx context.Context, inv core.Invoice) error {
	if inv.LedgerSync == core.LedgerSynced {
		return nil
	}

	ref, err := p.ledger.AppendInvoice(ctx, ledger.EntryFor(inv))
	if err != nil {
		if markErr := p.storage.MarkLedgerError(ctx, inv.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark ledger sync error",
				"invoice_id", inv.ID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := p.storage.MarkLedgerSynced(ctx, inv.ID, ref); err != nil {
		return err
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogLedgerSynced(ctx, inv.ID, inv.Number, ref)
	return nil
}
