// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/talentwire/chatsync/client/chat"
)

type SyncHandler struct {
	session *chat.Session
}

func NewSyncHandler(session *chat.Session) *SyncHandler {
	return &SyncHandler{session: session}
}

// GetState returns the full observable conversation state.
func (h *SyncHandler) GetState(w http.ResponseWriter, r *http.Request) {
	msgs := h.session.Messages()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages":     msgs,
		"count":        len(msgs),
		"recipient":    h.session.Recipient(),
		"active_peer":  h.session.ActivePeer(),
		"unread":       h.session.UnreadCount(),
		"buffer":       h.session.Buffer(),
		"reply_to":     h.session.PendingReply(),
		"minimized":    h.session.Minimized(),
		"connection":   h.session.ConnState().String(),
	})
}

// SendMessage sets the composer buffer and sends it.
func (h *SyncHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.session.SetBuffer(req.Text)
	if err := h.session.Send(r.Context()); err != nil {
		http.Error(w, "Failed to send message", http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "sent",
	})
}

// SelectRecipient switches the active conversation.
func (h *SyncHandler) SelectRecipient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.session.SelectRecipient(r.Context(), req.Recipient)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "selected",
		"recipient": h.session.Recipient(),
	})
}

// MarkVisible reports viewport visibility for a message, which drives
// the read receipt for it.
func (h *SyncHandler) MarkVisible(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messageID := vars["messageId"]

	var req struct {
		Ratio float64 `json:"ratio"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.session.MarkVisible(messageID, req.Ratio)

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "accepted",
	})
}

// DeleteMessage removes a message remotely and locally.
func (h *SyncHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messageID := vars["messageId"]

	if err := h.session.DeleteMessage(r.Context(), messageID); err != nil {
		http.Error(w, "Failed to delete message", http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "deleted",
	})
}

// SetReply records a pending reply to an existing message.
func (h *SyncHandler) SetReply(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messageID := vars["messageId"]

	if !h.session.Reply(messageID) {
		http.Error(w, "Unknown message", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "reply_set",
	})
}

// ClearReply drops the pending reply.
func (h *SyncHandler) ClearReply(w http.ResponseWriter, r *http.Request) {
	h.session.ClearReply()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "reply_cleared",
	})
}

// SetMinimized toggles the chat surface minimized flag.
func (h *SyncHandler) SetMinimized(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minimized bool `json:"minimized"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.session.SetMinimized(req.Minimized)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
