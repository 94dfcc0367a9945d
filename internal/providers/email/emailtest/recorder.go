// Package emailtest provides an in-memory email.Sender for tests.
package emailtest

import (
	"context"
	"sync"

	"github.com/smallbiznis/fintrack/internal/providers/email"
)

// Recorder captures every message and answers with Result.
type Recorder struct {
	mu       sync.Mutex
	messages []email.Message
	Result   email.Result
}

func NewRecorder(sent bool) *Recorder {
	return &Recorder{Result: email.Result{Sent: sent, MessageID: "test"}}
}

func (r *Recorder) Send(ctx context.Context, msg email.Message) <-chan email.Result {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	res := r.Result
	r.mu.Unlock()

	ch := make(chan email.Result, 1)
	ch <- res
	return ch
}

func (r *Recorder) Messages() []email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]email.Message(nil), r.messages...)
}

// Last returns the most recent message, or the zero value.
func (r *Recorder) Last() email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return email.Message{}
	}
	return r.messages[len(r.messages)-1]
}
