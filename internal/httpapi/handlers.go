// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package httpapi is the presentation adapter: it observes the session
// state value and dispatches events into it over JSON endpoints, and it
// hosts the OAuth redirect boundary for the publish path.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"zksudoku/internal/game"
	"zksudoku/internal/oauth"
	"zksudoku/internal/publish"
	"zksudoku/internal/sudoku"
	"zksudoku/internal/zkp"
)

// ExportFilename is the file name used when publishing an export.
const ExportFilename = "zksudoku-proof.json"

// Handler serves the session over HTTP. OAuth and publish are optional:
// when Flow is nil the publish endpoints answer 404 and everything else
// still works via manual export.
type Handler struct {
	Session *game.Session
	Flow    *oauth.Flow
	Gists   *publish.Client
	Log     zerolog.Logger
}

// New builds a handler over a session.
func New(s *game.Session, flow *oauth.Flow, gists *publish.Client, log zerolog.Logger) *Handler {
	return &Handler{Session: s, Flow: flow, Gists: gists, Log: log}
}

// Register installs all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/api/cell", h.handleCell)
	mux.HandleFunc("/api/conflicts", h.handleConflicts)
	mux.HandleFunc("/api/check", h.handleCheck)
	mux.HandleFunc("/api/prove", h.handleProve)
	mux.HandleFunc("/api/export", h.handleExport)
	mux.HandleFunc("/api/verify", h.handleVerify)
	mux.HandleFunc("/api/reset", h.handleReset)
	if h.Flow != nil {
		mux.HandleFunc("/oauth/login", h.handleLogin)
		mux.HandleFunc("/oauth/callback", h.handleCallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResp struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResp{Error: err.Error()})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// ---- state ----

type stateResp struct {
	State        string      `json:"state"`
	Challenge    sudoku.Grid `json:"challenge"`
	Candidate    sudoku.Grid `json:"candidate"`
	Fixed        sudoku.Mask `json:"fixed"`
	ChallengeID  string      `json:"challengeId"`
	ElapsedMs    int64       `json:"elapsedMs"`
	Fingerprint  string      `json:"fingerprint,omitempty"`
	PublishedURL string      `json:"publishedUrl,omitempty"`
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResp{
		State:        h.Session.State().String(),
		Challenge:    h.Session.Challenge(),
		Candidate:    h.Session.Candidate(),
		Fixed:        h.Session.Fixed(),
		ChallengeID:  h.Session.ChallengeID(),
		ElapsedMs:    h.Session.Elapsed().Milliseconds(),
		Fingerprint:  h.Session.Fingerprint(),
		PublishedURL: h.Session.PublishedURL(),
	})
}

// ---- cell ----

type cellReq struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Value int `json:"value"`
}

func (h *Handler) handleCell(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req cellReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Session.SetCell(req.Row, req.Col, req.Value); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, game.ErrFixedCell) {
			status = http.StatusForbidden
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": h.Session.State().String()})
}

// ---- conflicts ----

func (h *Handler) handleConflicts(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req cellReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Row < 0 || req.Row > 8 || req.Col < 0 || req.Col > 8 {
		writeError(w, http.StatusBadRequest, game.ErrCellOutOfRange)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Conflicts(req.Row, req.Col, req.Value))
}

// ---- check ----

type checkResp struct {
	Solved    bool              `json:"solved"`
	State     string            `json:"state"`
	Violation *sudoku.Violation `json:"violation,omitempty"`
	Message   string            `json:"message,omitempty"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ok, v := h.Session.CheckSolution()
	resp := checkResp{Solved: ok, State: h.Session.State().String(), Violation: v}
	if v != nil {
		resp.Message = v.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- prove ----

type proveResp struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (h *Handler) handleProve(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := h.Session.GenerateProof(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, game.ErrNotSolved) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, proveResp{
		State:       h.Session.State().String(),
		Fingerprint: h.Session.Fingerprint(),
	})
}

// ---- export ----

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.Session.Export()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	data, err := zkp.MarshalExport(export)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	_, _ = w.Write(data)
}

// ---- external verify ----

type verifyReq struct {
	PublicInputs []string `json:"publicInputs"`
	Proof        string   `json:"proof"`
}

type verifyResp struct {
	Valid bool `json:"valid"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req verifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	valid, err := h.Session.VerifyExternal(r.Context(), req.PublicInputs, req.Proof)
	if err != nil {
		var ferr *zkp.FormatError
		if errors.As(err, &ferr) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResp{Valid: valid})
}

// ---- reset ----

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := h.Session.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": h.Session.State().String()})
}

// ---- oauth ----

// handleLogin persists the current export (when one exists) as the
// pending hand-off and redirects to the authorization endpoint.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var pending *zkp.Export
	if export, err := h.Session.Export(); err == nil {
		pending = &export
	}
	authURL, err := h.Flow.Start(pending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

type callbackResp struct {
	Published    bool   `json:"published"`
	PublishedURL string `json:"publishedUrl,omitempty"`
	Message      string `json:"message,omitempty"`
}

// handleCallback validates the state nonce, exchanges the code, and
// publishes the preserved pending export. Every failure path leaves the
// manual export route available.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	token, pending, err := h.Flow.HandleCallback(r.Context(), code, state)
	if err != nil {
		var cerr *oauth.CsrfError
		status := http.StatusBadGateway
		if errors.As(err, &cerr) {
			status = http.StatusForbidden
		}
		h.Log.Warn().Err(err).Msg("oauth callback failed; manual export still available")
		writeJSON(w, status, callbackResp{Published: false, Message: err.Error()})
		return
	}
	if pending == nil {
		writeJSON(w, http.StatusOK, callbackResp{Published: false, Message: "authenticated, nothing pending to publish"})
		return
	}

	data, err := zkp.MarshalExport(*pending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	gist, err := h.Gists.CreateGist(r.Context(), token, "zksudoku proof", true, ExportFilename, string(data))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, callbackResp{Published: false, Message: err.Error()})
		return
	}
	h.Session.SetPublishedURL(gist.HTMLURL)
	writeJSON(w, http.StatusOK, callbackResp{Published: true, PublishedURL: gist.HTMLURL})
}
