package qr_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valnssh/vaporBooster/internal/qr"
)

const (
	testPollWait = 2 * time.Second
	testTTL      = 5 * time.Minute
)

func beginWith(done chan qr.Completion) qr.BeginFunc {
	return func(ctx context.Context) (string, <-chan qr.Completion, error) {
		return "https://community.example/qr/abc", done, nil
	}
}

func TestStartReturnsChallengeURL(t *testing.T) {
	flow := qr.NewFlow(beginWith(make(chan qr.Completion, 1)), clockwork.NewFakeClock(), testPollWait, testTTL)

	started, err := flow.Start(context.Background())

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, started.ID)
	assert.Equal(t, "https://community.example/qr/abc", started.ChallengeURL)
}

func TestStartPropagatesBeginFailure(t *testing.T) {
	begin := func(ctx context.Context) (string, <-chan qr.Completion, error) {
		return "", nil, errors.New("gateway unreachable")
	}
	flow := qr.NewFlow(begin, clockwork.NewFakeClock(), testPollWait, testTTL)

	_, err := flow.Start(context.Background())

	assert.Error(t, err)
}

func TestPollUnknownHandshake(t *testing.T) {
	flow := qr.NewFlow(beginWith(make(chan qr.Completion, 1)), clockwork.NewFakeClock(), testPollWait, testTTL)

	_, err := flow.Poll(context.Background(), uuid.New())

	assert.ErrorIs(t, err, qr.ErrHandshakeNotFound)
}

func TestPollReportsPendingBeforeCompletion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	flow := qr.NewFlow(beginWith(make(chan qr.Completion, 1)), clock, testPollWait, testTTL)

	started, err := flow.Start(context.Background())
	require.NoError(t, err)

	type pollResult struct {
		result qr.Result
		err    error
	}
	results := make(chan pollResult, 1)
	go func() {
		result, err := flow.Poll(context.Background(), started.ID)
		results <- pollResult{result, err}
	}()

	// one waiter for the TTL, one for the poll window
	blockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 2))
	clock.Advance(testPollWait)

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Equal(t, qr.StatePending, r.result.State)
	case <-time.After(time.Second):
		t.Fatal("poll never returned")
	}
}

func TestPollClaimsAuthenticatedResultExactlyOnce(t *testing.T) {
	done := make(chan qr.Completion, 1)
	flow := qr.NewFlow(beginWith(done), clockwork.NewFakeClock(), testPollWait, testTTL)

	started, err := flow.Start(context.Background())
	require.NoError(t, err)

	done <- qr.Completion{AccountName: "alice", RefreshToken: "qr-token"}

	result, err := flow.Poll(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, qr.StateAuthenticated, result.State)
	assert.Equal(t, "alice", result.AccountName)
	assert.Equal(t, "qr-token", result.RefreshToken)

	_, err = flow.Poll(context.Background(), started.ID)
	assert.ErrorIs(t, err, qr.ErrHandshakeNotFound)
}

func TestConcurrentPollsDoNotDoubleClaim(t *testing.T) {
	done := make(chan qr.Completion, 1)
	flow := qr.NewFlow(beginWith(done), clockwork.NewFakeClock(), testPollWait, testTTL)

	started, err := flow.Start(context.Background())
	require.NoError(t, err)
	done <- qr.Completion{AccountName: "alice", RefreshToken: "qr-token"}

	const pollers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var claims, notFound int
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := flow.Poll(context.Background(), started.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, qr.ErrHandshakeNotFound):
				notFound++
			case err == nil && result.State == qr.StateAuthenticated:
				claims++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claims)
	assert.Equal(t, pollers-1, notFound)
}

func TestHandshakeTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	flow := qr.NewFlow(beginWith(make(chan qr.Completion, 1)), clock, testPollWait, testTTL)

	started, err := flow.Start(context.Background())
	require.NoError(t, err)

	blockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))
	clock.Advance(testTTL)

	result, err := flow.Poll(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, qr.StateTimeout, result.State)
}

func TestAbandonedHandshakeIsReclaimed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	flow := qr.NewFlow(beginWith(make(chan qr.Completion, 1)), clock, testPollWait, testTTL)

	started, err := flow.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, flow.HandshakeCount())

	blockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))
	clock.Advance(testTTL)

	// the reclaim timer arms once the timeout settles
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool { return flow.HandshakeCount() == 0 },
		time.Second, 10*time.Millisecond)

	_, err = flow.Poll(context.Background(), started.ID)
	assert.ErrorIs(t, err, qr.ErrHandshakeNotFound)
}

func TestHandshakeErrorSurfacesCause(t *testing.T) {
	done := make(chan qr.Completion, 1)
	flow := qr.NewFlow(beginWith(done), clockwork.NewFakeClock(), testPollWait, testTTL)

	started, err := flow.Start(context.Background())
	require.NoError(t, err)
	done <- qr.Completion{Err: errors.New("handshake rejected")}

	result, err := flow.Poll(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, qr.StateError, result.State)
	assert.EqualError(t, result.Cause, "handshake rejected")
}
