// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package oauth implements the authorization-code flow with CSRF
// protection via a client-generated, server-validated state nonce, and
// the durable hand-off of a pending proof export across the redirect
// boundary. Token exchange is delegated to a trusted backend; no client
// secret ever lives in this component.
package oauth

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"zksudoku/internal/zkp"
)

// CsrfError reports a state nonce mismatch on callback. Fatal to the
// flow instance; the pending export is preserved for retry or manual
// publication.
type CsrfError struct {
	Reason string
}

func (e *CsrfError) Error() string {
	return fmt.Sprintf("oauth csrf: %s", e.Reason)
}

// OAuthError reports an HTTP-level failure during token exchange.
// Recoverable: callers fall back to the manual export path.
type OAuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth exchange: %v", e.Err)
	}
	return fmt.Sprintf("oauth exchange: status %d: %s", e.Status, e.Message)
}

func (e *OAuthError) Unwrap() error { return e.Err }

// PendingFlow is the durable record bridging the redirect: the one-time
// state nonce and the export awaiting publication. The redirect
// destroys in-memory state, so this must live in a store that outlives
// the navigation.
type PendingFlow struct {
	State     string      `json:"state"`
	Export    *zkp.Export `json:"export,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Store persists at most one pending flow. Take removes the record
// regardless of what the caller then does with it: the state nonce is
// single-use by construction.
type Store interface {
	Save(flow PendingFlow) error
	Take() (PendingFlow, bool, error)
}

// Config identifies the OAuth endpoints and client.
type Config struct {
	ClientID     string
	AuthorizeURL string // e.g. https://github.com/login/oauth/authorize
	RedirectURI  string
	Scope        string // fixed at "gist" for the publish path
	ExchangeURL  string // trusted backend: POST {code, redirect_uri}
}

// Flow drives one authorization-code round trip.
type Flow struct {
	cfg    Config
	store  Store
	client *http.Client
	log    zerolog.Logger
}

// NewFlow wires a flow against its durable store. A nil client falls
// back to http.DefaultClient.
func NewFlow(cfg Config, store Store, client *http.Client, log zerolog.Logger) *Flow {
	if client == nil {
		client = http.DefaultClient
	}
	return &Flow{cfg: cfg, store: store, client: client, log: log}
}

// Start generates a fresh state nonce, persists it with the pending
// export, and returns the authorization URL to redirect the user agent
// to. The export must be persisted before the redirect or it is lost.
func (f *Flow) Start(pending *zkp.Export) (string, error) {
	var raw [16]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return "", fmt.Errorf("generate state nonce: %w", err)
	}
	state := hex.EncodeToString(raw[:])

	if err := f.store.Save(PendingFlow{State: state, Export: pending, CreatedAt: time.Now()}); err != nil {
		return "", fmt.Errorf("persist pending flow: %w", err)
	}

	q := url.Values{}
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", f.cfg.RedirectURI)
	q.Set("scope", f.cfg.Scope)
	q.Set("state", state)
	f.log.Debug().Str("state", state).Bool("pendingExport", pending != nil).Msg("oauth flow started")
	return f.cfg.AuthorizeURL + "?" + q.Encode(), nil
}

// HandleCallback validates the returned state and exchanges the code
// for an access token. The persisted flow is erased before anything
// else happens, whatever the outcome: a state value is never reused.
// On mismatch the token endpoint is not contacted and the preserved
// pending export is returned alongside the CsrfError so the caller can
// fall back to manual publication; the same applies to exchange
// failures.
func (f *Flow) HandleCallback(ctx context.Context, code, state string) (string, *zkp.Export, error) {
	flow, ok, err := f.store.Take()
	if err != nil {
		return "", nil, fmt.Errorf("load pending flow: %w", err)
	}
	if !ok {
		return "", nil, &CsrfError{Reason: "no pending flow"}
	}
	if state == "" || state != flow.State {
		f.log.Warn().Msg("oauth state mismatch")
		return "", flow.Export, &CsrfError{Reason: "state mismatch"}
	}

	token, err := f.exchange(ctx, code)
	if err != nil {
		return "", flow.Export, err
	}
	return token, flow.Export, nil
}

type exchangeRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// exchange trades the authorization code for an access token at the
// trusted backend, which alone holds the confidential client secret.
func (f *Flow) exchange(ctx context.Context, code string) (string, error) {
	body, err := json.Marshal(exchangeRequest{Code: code, RedirectURI: f.cfg.RedirectURI})
	if err != nil {
		return "", &OAuthError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.ExchangeURL, bytes.NewReader(body))
	if err != nil {
		return "", &OAuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &OAuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &OAuthError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	var out exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &OAuthError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.AccessToken == "" {
		return "", &OAuthError{Status: resp.StatusCode, Message: "response carried no access_token"}
	}
	return out.AccessToken, nil
}
