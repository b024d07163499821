// Package qr runs challenge-based login handshakes. A handshake produces a
// challenge URL for the user to approve elsewhere and settles into exactly
// one terminal outcome, which a poll claims exactly once.
package qr

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/valnssh/vaporBooster/internal/metrics"
)

var ErrHandshakeNotFound = errors.New("handshake not found")

// claimGrace is how long a settled result stays claimable. A poll racing the
// resolution still gets the outcome; afterwards the entry is reclaimed.
const claimGrace = 30 * time.Second

// State is the poll-visible phase of a handshake.
type State string

const (
	StatePending       State = "pending"
	StateAuthenticated State = "authenticated"
	StateTimeout       State = "timeout"
	StateError         State = "error"
)

// Completion is the terminal outcome delivered by the underlying transport.
type Completion struct {
	AccountName  string
	RefreshToken string
	Err          error
}

// BeginFunc opens a fresh handshake against the network and returns the
// challenge URL plus a channel that delivers at most one Completion.
type BeginFunc func(ctx context.Context) (challengeURL string, done <-chan Completion, err error)

// Started identifies a freshly opened handshake.
type Started struct {
	ID           uuid.UUID
	ChallengeURL string
}

// Result is a poll answer. AccountName and RefreshToken are set only for
// StateAuthenticated; Cause only for StateError.
type Result struct {
	State        State
	AccountName  string
	RefreshToken string
	Cause        error
}

type handshake struct {
	done   chan struct{}
	result Result
}

// Flow tracks in-flight handshakes by ID. A terminal result is held for a
// claim grace window; claiming removes the handshake, and an entry nobody
// claims is reclaimed once the window passes.
type Flow struct {
	begin    BeginFunc
	clock    clockwork.Clock
	pollWait time.Duration
	ttl      time.Duration

	mu         sync.Mutex
	handshakes map[uuid.UUID]*handshake
}

func NewFlow(begin BeginFunc, clock clockwork.Clock, pollWait, ttl time.Duration) *Flow {
	return &Flow{
		begin:      begin,
		clock:      clock,
		pollWait:   pollWait,
		ttl:        ttl,
		handshakes: make(map[uuid.UUID]*handshake),
	}
}

// HandshakeCount reports how many handshakes are tracked, settled but
// unclaimed ones included.
func (f *Flow) HandshakeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handshakes)
}

// Start opens a new handshake and begins waiting for its outcome in the
// background.
func (f *Flow) Start(ctx context.Context) (Started, error) {
	challengeURL, done, err := f.begin(ctx)
	if err != nil {
		metrics.QRHandshakesTotal.WithLabelValues("begin_failed").Inc()
		return Started{}, err
	}

	id := uuid.New()
	h := &handshake{done: make(chan struct{})}

	f.mu.Lock()
	f.handshakes[id] = h
	f.mu.Unlock()

	go f.await(id, h, done)

	slog.Info("QR handshake started", "handshake_id", id)
	return Started{ID: id, ChallengeURL: challengeURL}, nil
}

func (f *Flow) await(id uuid.UUID, h *handshake, done <-chan Completion) {
	var result Result
	select {
	case c, ok := <-done:
		switch {
		case !ok:
			result = Result{State: StateError, Cause: errors.New("handshake channel closed")}
		case c.Err != nil:
			result = Result{State: StateError, Cause: c.Err}
		default:
			result = Result{State: StateAuthenticated, AccountName: c.AccountName, RefreshToken: c.RefreshToken}
		}
	case <-f.clock.After(f.ttl):
		result = Result{State: StateTimeout}
	}

	metrics.QRHandshakesTotal.WithLabelValues(string(result.State)).Inc()

	f.mu.Lock()
	h.result = result
	f.mu.Unlock()
	close(h.done)

	f.clock.AfterFunc(claimGrace, func() {
		f.mu.Lock()
		_, present := f.handshakes[id]
		delete(f.handshakes, id)
		f.mu.Unlock()
		if present {
			slog.Info("QR handshake abandoned, reclaimed", "handshake_id", id, "state", result.State)
		}
	})
}

// Poll reports the handshake's state, waiting a bounded interval for a
// terminal outcome before answering pending. A terminal result is handed
// out exactly once; the handshake is gone afterwards.
func (f *Flow) Poll(ctx context.Context, id uuid.UUID) (Result, error) {
	f.mu.Lock()
	h, ok := f.handshakes[id]
	f.mu.Unlock()
	if !ok {
		return Result{}, ErrHandshakeNotFound
	}

	select {
	case <-h.done:
	case <-f.clock.After(f.pollWait):
		return Result{State: StatePending}, nil
	case <-ctx.Done():
		return Result{State: StatePending}, nil
	}

	f.mu.Lock()
	if _, present := f.handshakes[id]; !present {
		f.mu.Unlock()
		return Result{}, ErrHandshakeNotFound
	}
	delete(f.handshakes, id)
	result := h.result
	f.mu.Unlock()

	slog.Info("QR handshake settled", "handshake_id", id, "state", result.State)
	return result, nil
}
