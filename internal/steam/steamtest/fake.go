// Package steamtest provides an in-memory protocol client for session and
// orchestrator tests.
package steamtest

import (
	"context"
	"sync"

	"github.com/valnssh/vaporBooster/internal/domain"
)

// FakeClient records outbound calls and lets tests feed inbound events.
// Optional function fields override the default accept-and-record behavior.
type FakeClient struct {
	LogOnFunc           func(opts domain.LogOnOptions) error
	SubmitGuardCodeFunc func(code string) error
	SetPersonaFunc      func(state int) error
	PlayGamesFunc       func(customTitle string, appIDs []int32) error
	SendMessageFunc     func(counterpartID, content string) error
	LogOffFunc          func() error

	mu        sync.Mutex
	events    chan domain.NetEvent
	closed    bool
	logOns    []domain.LogOnOptions
	codes     []string
	personas  []int
	plays     []PlayCall
	messages  []MessageCall
	logOffs   int
	closeHits int
}

type PlayCall struct {
	CustomTitle string
	AppIDs      []int32
}

type MessageCall struct {
	CounterpartID string
	Content       string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{events: make(chan domain.NetEvent, 32)}
}

// Dialer returns a dialer handing out this client. Tests that need dial
// failures supply their own domain.NetDialer instead.
func (f *FakeClient) Dialer() domain.NetDialer {
	return func(ctx context.Context, accountName string) (domain.NetClient, error) {
		return f, nil
	}
}

// Emit feeds an inbound event to the session under test.
func (f *FakeClient) Emit(ev domain.NetEvent) {
	f.events <- ev
}

// EndEvents closes the event stream, as a gateway does on disconnect.
func (f *FakeClient) EndEvents() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *FakeClient) LogOn(opts domain.LogOnOptions) error {
	f.mu.Lock()
	f.logOns = append(f.logOns, opts)
	f.mu.Unlock()
	if f.LogOnFunc != nil {
		return f.LogOnFunc(opts)
	}
	return nil
}

func (f *FakeClient) SubmitGuardCode(code string) error {
	f.mu.Lock()
	f.codes = append(f.codes, code)
	f.mu.Unlock()
	if f.SubmitGuardCodeFunc != nil {
		return f.SubmitGuardCodeFunc(code)
	}
	return nil
}

func (f *FakeClient) SetPersona(state int) error {
	f.mu.Lock()
	f.personas = append(f.personas, state)
	f.mu.Unlock()
	if f.SetPersonaFunc != nil {
		return f.SetPersonaFunc(state)
	}
	return nil
}

func (f *FakeClient) PlayGames(customTitle string, appIDs []int32) error {
	f.mu.Lock()
	f.plays = append(f.plays, PlayCall{CustomTitle: customTitle, AppIDs: append([]int32(nil), appIDs...)})
	f.mu.Unlock()
	if f.PlayGamesFunc != nil {
		return f.PlayGamesFunc(customTitle, appIDs)
	}
	return nil
}

func (f *FakeClient) SendMessage(counterpartID, content string) error {
	f.mu.Lock()
	f.messages = append(f.messages, MessageCall{CounterpartID: counterpartID, Content: content})
	f.mu.Unlock()
	if f.SendMessageFunc != nil {
		return f.SendMessageFunc(counterpartID, content)
	}
	return nil
}

func (f *FakeClient) LogOff() error {
	f.mu.Lock()
	f.logOffs++
	f.mu.Unlock()
	if f.LogOffFunc != nil {
		return f.LogOffFunc()
	}
	return nil
}

func (f *FakeClient) Events() <-chan domain.NetEvent {
	return f.events
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.closeHits++
	f.mu.Unlock()
	f.EndEvents()
	return nil
}

func (f *FakeClient) LogOns() []domain.LogOnOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LogOnOptions(nil), f.logOns...)
}

func (f *FakeClient) Codes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

func (f *FakeClient) Personas() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.personas...)
}

func (f *FakeClient) Plays() []PlayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PlayCall(nil), f.plays...)
}

func (f *FakeClient) Messages() []MessageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MessageCall(nil), f.messages...)
}

func (f *FakeClient) LogOffCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logOffs
}

var _ domain.NetClient = (*FakeClient)(nil)
