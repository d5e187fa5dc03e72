// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package notify

import (
	"io"

	"github.com/talentwire/chatsync/client/logging"
	"github.com/talentwire/chatsync/client/models"
)

// Permission mirrors the host platform's notification permission states.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDefault Permission = "default"
	PermissionDenied  Permission = "denied"
)

// Notifier raises visual notifications on the host platform.
type Notifier interface {
	Permission() Permission
	// RequestPermission asks the user and returns the resulting state.
	RequestPermission() Permission
	Notify(title, content string) error
}

// AudioPlayer plays the incoming-message cue.
type AudioPlayer interface {
	Play() error
}

// Dispatcher raises a system notification plus an audio cue for inbound
// message and system events. Notification and audio failures are logged
// and never propagate into message handling.
type Dispatcher struct {
	notifier Notifier
	audio    AudioPlayer
}

func New(notifier Notifier, audio AudioPlayer) *Dispatcher {
	return &Dispatcher{notifier: notifier, audio: audio}
}

// Dispatch handles one notification event. Permission granted: notify
// immediately. Undetermined: request, notify only if granted. Denied:
// suppress the visual notification but still attempt the audio cue.
func (d *Dispatcher) Dispatch(n models.Notification) {
	if d.notifier != nil {
		perm := d.notifier.Permission()
		if perm == PermissionDefault {
			perm = d.notifier.RequestPermission()
		}
		if perm == PermissionGranted {
			if err := d.notifier.Notify(n.Title, n.Content); err != nil {
				logging.Warn("notification failed", "title", n.Title, "err", err)
			}
		}
	}
	if d.audio != nil {
		if err := d.audio.Play(); err != nil {
			logging.Warn("audio cue failed", "err", err)
		}
	}
}

// BellPlayer writes the terminal bell to w, the audio cue available to
// a terminal surface.
type BellPlayer struct {
	W io.Writer
}

func (b BellPlayer) Play() error {
	if b.W == nil {
		return nil
	}
	_, err := b.W.Write([]byte{'\a'})
	return err
}

// LogNotifier logs notifications instead of raising them; the default
// for headless daemon runs.
type LogNotifier struct{}

func (LogNotifier) Permission() Permission        { return PermissionGranted }
func (LogNotifier) RequestPermission() Permission { return PermissionGranted }
func (LogNotifier) Notify(title, content string) error {
	logging.Info("notification", "title", title, "content", content)
	return nil
}
