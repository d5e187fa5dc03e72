// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/talentwire/chatsync/client/models"
)

const defaultTimeout = 10 * time.Second

// Client talks to the platform REST backend: history fetch, mark-read,
// delete and profile lookup. Message storage is owned by that backend;
// this client never caches.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		buf = bytes.NewBuffer(payload)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

// History fetches the ordered prior messages of the conversation with
// peer. The returned order is the server's; the timeline store trusts
// it as insertion order.
func (c *Client) History(ctx context.Context, peer string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
		Count    int              `json:"count"`
	}
	path := "/api/chat/messages/" + url.PathEscape(peer)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// MarkRead acknowledges that reader has seen the message.
func (c *Client) MarkRead(ctx context.Context, messageID, reader string) error {
	body := map[string]string{"reader": reader}
	path := "/api/chat/message/" + url.PathEscape(messageID) + "/read"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// Delete removes the message on the backend.
func (c *Client) Delete(ctx context.Context, messageID string) error {
	path := "/api/chat/message/" + url.PathEscape(messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Profile resolves display information for an identity. The role flag
// selects between the applicant and employer profile collections.
func (c *Client) Profile(ctx context.Context, id string, role models.Role) (*models.Profile, error) {
	var out models.Profile
	path := "/api/users/" + url.PathEscape(id) + "?role=" + url.QueryEscape(string(role))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
