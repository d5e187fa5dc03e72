// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// Status tags a message's position in the optimistic-append lifecycle.
type Status string

const (
	// StatusOptimistic marks a locally composed message that has not yet
	// been echoed back by the server.
	StatusOptimistic Status = "optimistic"
	// StatusConfirmed marks a message acknowledged by the server, either
	// via an inbound echo or because it was loaded from history.
	StatusConfirmed Status = "confirmed"
)

// ReplyRef is a denormalized snapshot of the message being replied to.
// It is not a live pointer: it survives deletion of the original.
type ReplyRef struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Message is a single direct message in a two-party conversation.
type Message struct {
	// ID is server-assigned and empty until confirmation.
	ID string `json:"id,omitempty"`
	// CorrelationID is client-generated at composition time and is the
	// reconciliation key for matching an inbound echo against the
	// optimistic local entry.
	CorrelationID string `json:"correlation_id,omitempty"`

	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	SenderName    string `json:"sender_name,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`

	// Content is the text body, or the filename for attachment messages.
	Content string `json:"content"`

	// CreatedAt is assigned from the client clock at composition time and
	// never overwritten by the server.
	CreatedAt time.Time `json:"created_at"`

	Delivered bool `json:"delivered"`
	// Viewed is only ever set true through the read-receipt reconciler.
	Viewed bool `json:"viewed"`

	ReplyTo *ReplyRef `json:"reply_to,omitempty"`

	// Attachment fields; a non-empty FileURL marks a file message.
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	Status Status `json:"status,omitempty"`
}

// IsFile reports whether the message represents a file attachment.
func (m *Message) IsFile() bool {
	return m.FileURL != ""
}
