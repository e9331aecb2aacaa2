// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package publish posts proof exports to a gist-style paste service.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// Gist identifies a created paste.
type Gist struct {
	ID      string `json:"id"`
	HTMLURL string `json:"html_url"`
}

// Client talks to the gist endpoint with a bearer token per call.
type Client struct {
	base   string // e.g. https://api.github.com
	client *http.Client
	log    zerolog.Logger
}

// NewClient builds a gist client against base. A nil http.Client falls
// back to http.DefaultClient.
func NewClient(base string, client *http.Client, log zerolog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: base, client: client, log: log}
}

type gistFile struct {
	Content string `json:"content"`
}

type createGistRequest struct {
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]gistFile `json:"files"`
}

type apiError struct {
	Message string `json:"message"`
}

// CreateGist publishes one file and returns the paste's id and URL.
// Non-2xx responses surface the service's error message.
func (c *Client) CreateGist(ctx context.Context, token, description string, public bool, filename, content string) (*Gist, error) {
	body, err := json.Marshal(createGistRequest{
		Description: description,
		Public:      public,
		Files:       map[string]gistFile{filename: {Content: content}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode gist request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/gists", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gist request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post gist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(msg, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("gist service: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("gist service: status %d", resp.StatusCode)
	}

	var out Gist
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gist response: %w", err)
	}
	c.log.Info().Str("id", out.ID).Str("url", out.HTMLURL).Msg("export published")
	return &out, nil
}
