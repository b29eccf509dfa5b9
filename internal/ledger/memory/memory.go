package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"facturepro/internal/ledger"
)

// Store is an in-process ledger for development and tests.
type Store struct {
	mu    sync.Mutex
	items []ledger.Entry
	refs  map[string]string
}

var _ ledger.Writer = (*Store)(nil)

func New() *Store {
	return &Store{refs: map[string]string{}}
}

// AppendInvoice stores the entry and returns a synthetic row reference.
func (s *Store) AppendInvoice(_ context.Context, e ledger.Entry) (string, error) {
	if e.InvoiceID == "" {
		return "", errors.New("ledger entry without invoice id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[e.InvoiceID]; ok {
		return ref, nil
	}
	s.items = append(s.items, e)
	ref := fmt.Sprintf("mem:%d", len(s.items))
	s.refs[e.InvoiceID] = ref
	return ref, nil
}

// Entries returns a copy of the stored rows in append order.
func (s *Store) Entries() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Entry(nil), s.items...)
}
