// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType names an event on the chat transport. The set is closed:
// anything else is rejected at the connection boundary.
type EventType string

const (
	EventPrivateMessage   EventType = "privateMessage"
	EventUserStatusChange EventType = "userStatusChange"
	EventNewNotification  EventType = "newNotification"
)

// Envelope is the wire frame for every event on the transport.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StatusChange signals that a user's presence changed.
type StatusChange struct {
	User   string `json:"user"`
	Online bool   `json:"online"`
}

// Notification is an inbound system notification event.
type Notification struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// EncodeEvent frames a typed payload for publication.
func EncodeEvent(event EventType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DecodeEvent validates a raw transport frame and returns the typed
// payload: *Message, *StatusChange or *Notification. Malformed frames
// are rejected here so they never reach the timeline store.
func DecodeEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed event frame: %w", err)
	}

	switch env.Event {
	case EventPrivateMessage:
		var msg Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		if msg.Sender == "" {
			return nil, fmt.Errorf("%s payload missing sender", env.Event)
		}
		if strings.TrimSpace(msg.Content) == "" && msg.FileURL == "" {
			return nil, fmt.Errorf("%s payload has neither content nor attachment", env.Event)
		}
		return &msg, nil

	case EventUserStatusChange:
		var sc StatusChange
		if err := json.Unmarshal(env.Data, &sc); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		if sc.User == "" {
			return nil, fmt.Errorf("%s payload missing user", env.Event)
		}
		return &sc, nil

	case EventNewNotification:
		var n Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		if n.Title == "" {
			return nil, fmt.Errorf("%s payload missing title", env.Event)
		}
		return &n, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", env.Event)
	}
}
