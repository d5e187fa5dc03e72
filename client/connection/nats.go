// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package connection

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/talentwire/chatsync/client/logging"
	"github.com/talentwire/chatsync/client/metrics"
	"github.com/talentwire/chatsync/client/models"
)

const (
	subjectDMPrefix     = "chat.dm."
	subjectPresence     = "chat.presence"
	subjectNotifyPrefix = "chat.notify."
)

// SubjectDM returns the private-message subject for an identity.
func SubjectDM(identity string) string {
	return subjectDMPrefix + identity
}

// NATSDialer returns a DialFunc backed by a NATS connection. Reconnect
// policy stays with the NATS client; the dialer only translates its
// connection callbacks into lifecycle states.
func NATSDialer(url string, opts ...nats.Option) DialFunc {
	return func(identity string, h Handler) (Conn, error) {
		connOpts := append([]nats.Option{
			nats.Name("chatsync-" + identity),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logging.Warn("chat transport disconnected", "err", err)
				}
				if h.OnState != nil {
					h.OnState(StateDisconnected)
				}
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logging.Info("chat transport reconnected")
				if h.OnState != nil {
					h.OnState(StateConnected)
				}
			}),
			nats.ClosedHandler(func(_ *nats.Conn) {
				if h.OnState != nil {
					h.OnState(StateDisconnected)
				}
			}),
		}, opts...)

		nc, err := nats.Connect(url, connOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to chat transport: %w", err)
		}

		c := &natsConn{nc: nc}
		dispatch := func(msg *nats.Msg) {
			ev, err := models.DecodeEvent(msg.Data)
			if err != nil {
				metrics.EventsRejected.Inc()
				logging.Warn("rejected malformed event", "subject", msg.Subject, "err", err)
				return
			}
			switch v := ev.(type) {
			case *models.Message:
				if h.OnMessage != nil {
					h.OnMessage(*v)
				}
			case *models.StatusChange:
				if h.OnStatus != nil {
					h.OnStatus(*v)
				}
			case *models.Notification:
				if h.OnNotification != nil {
					h.OnNotification(*v)
				}
			}
		}

		for _, subject := range []string{
			SubjectDM(identity),
			subjectPresence,
			subjectNotifyPrefix + identity,
		} {
			sub, err := nc.Subscribe(subject, dispatch)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
			}
			c.subs = append(c.subs, sub)
		}

		return c, nil
	}
}

type natsConn struct {
	nc   *nats.Conn
	subs []*nats.Subscription
}

// PublishMessage frames the message as a privateMessage event and
// publishes it to the recipient's subject. Flush makes a transport
// failure visible to the caller before any optimistic local append.
func (c *natsConn) PublishMessage(msg models.Message) error {
	frame, err := models.EncodeEvent(models.EventPrivateMessage, msg)
	if err != nil {
		return err
	}
	if err := c.nc.Publish(SubjectDM(msg.Recipient), frame); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	if err := c.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush message: %w", err)
	}
	return nil
}

// Close unsubscribes everything before closing so repeated
// connect/disconnect cycles cannot leak listeners.
func (c *natsConn) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	c.nc.Close()
}
