// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_messages_sent_total",
		Help: "Outbound messages published over the chat transport.",
	})
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_messages_received_total",
		Help: "Inbound private messages accepted into the timeline.",
	})
	AcksSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_read_acks_total",
		Help: "Read-receipt acknowledgements confirmed by the backend.",
	})
	AcksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_read_ack_failures_total",
		Help: "Read-receipt acknowledgements rejected by the backend.",
	})
	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_events_rejected_total",
		Help: "Malformed transport events rejected at the connection boundary.",
	})
	Unread = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_unread_messages",
		Help: "Unread messages in the active conversation.",
	})
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_connection_state",
		Help: "Connection state: 0 disconnected, 1 connecting, 2 connected.",
	})
)

// Handler exposes the default registry, mounted on the local API router.
func Handler() http.Handler {
	return promhttp.Handler()
}
