// Package mail composes and delivers the invoice and reminder e-mails.
package mail

import (
	"context"
	"fmt"
	"sync"
)

type Attachment struct {
	Filename string
	Content  []byte
}

type Message struct {
	From        string
	To          string
	ReplyTo     string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (id string, err error)
}

// Recorder keeps sent messages in memory, for development and tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, msg Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return fmt.Sprintf("rec:%d", len(r.sent)), nil
}

// Messages returns a copy of the recorded messages in send order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}
