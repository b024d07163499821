package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valnssh/vaporBooster/internal/domain"
	"github.com/valnssh/vaporBooster/internal/qr"
)

func TestStartQRReturnsChallenge(t *testing.T) {
	id := uuid.New()
	qrFlow := &mockQRService{
		startFn: func(ctx context.Context) (qr.Started, error) {
			return qr.Started{ID: id, ChallengeURL: "https://community.example/qr/abc"}, nil
		},
	}
	srv := newTestServer(t, &mockBoosterService{}, qrFlow)

	rec := doJSON(t, srv, http.MethodPost, "/api/qr", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id.String(), got["id"])
	assert.Equal(t, "https://community.example/qr/abc", got["challenge_url"])
}

func TestPollQRPending(t *testing.T) {
	qrFlow := &mockQRService{
		pollFn: func(ctx context.Context, id uuid.UUID) (qr.Result, error) {
			return qr.Result{State: qr.StatePending}, nil
		},
	}
	srv := newTestServer(t, &mockBoosterService{}, qrFlow)

	rec := doJSON(t, srv, http.MethodGet, "/api/qr/"+uuid.NewString(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending")
}

func TestPollQRNotFound(t *testing.T) {
	srv := newTestServer(t, &mockBoosterService{}, &mockQRService{})

	rec := doJSON(t, srv, http.MethodGet, "/api/qr/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPollQRAuthenticatedCompletesLogin(t *testing.T) {
	accountID := uuid.New()
	var completed *qr.Result
	app := &mockBoosterService{
		completeQRLoginFn: func(ctx context.Context, result qr.Result) (*domain.Account, error) {
			completed = &result
			return &domain.Account{ID: accountID, AccountName: result.AccountName}, nil
		},
	}
	qrFlow := &mockQRService{
		pollFn: func(ctx context.Context, id uuid.UUID) (qr.Result, error) {
			return qr.Result{State: qr.StateAuthenticated, AccountName: "alice", RefreshToken: "qr-token"}, nil
		},
	}
	srv := newTestServer(t, app, qrFlow)

	rec := doJSON(t, srv, http.MethodGet, "/api/qr/"+uuid.NewString(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, completed)
	assert.Equal(t, "alice", completed.AccountName)
	assert.Equal(t, "qr-token", completed.RefreshToken)
	assert.Contains(t, rec.Body.String(), "authenticated")
	assert.NotContains(t, rec.Body.String(), "qr-token")
}

func TestPollQRErrorState(t *testing.T) {
	qrFlow := &mockQRService{
		pollFn: func(ctx context.Context, id uuid.UUID) (qr.Result, error) {
			return qr.Result{State: qr.StateError, Cause: errors.New("handshake rejected")}, nil
		},
	}
	srv := newTestServer(t, &mockBoosterService{}, qrFlow)

	rec := doJSON(t, srv, http.MethodGet, "/api/qr/"+uuid.NewString(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handshake rejected")
}
