// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentwire/chatsync/client/models"
)

const (
	// Cached sessions expire after a week, matching the backend's own
	// retention for regular DMs.
	snapshotTTL = 7 * 24 * time.Hour

	sessionPrefix = "chatsync:session:"
)

// Snapshot is the opaque blob persisted for session continuity across
// reloads. It is a convenience cache, never a source of truth: the
// server history fetch always supersedes it on conversation load.
type Snapshot struct {
	Messages  []models.Message `json:"messages"`
	Recipient string           `json:"recipient"`
	Buffer    string           `json:"buffer"`
	Minimized bool             `json:"minimized"`
	Open      bool             `json:"open"`
	SavedAt   time.Time        `json:"saved_at"`
}

// Cache stores one snapshot per local identity in Redis with a TTL.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Save overwrites the snapshot for identity.
func (c *Cache) Save(ctx context.Context, identity string, snap Snapshot) error {
	snap.SavedAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, sessionPrefix+identity, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to store session snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot for identity, or nil when none is cached.
func (c *Cache) Load(ctx context.Context, identity string) (*Snapshot, error) {
	data, err := c.rdb.Get(ctx, sessionPrefix+identity).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		// A corrupt cache entry is discarded, not surfaced.
		return nil, nil
	}
	return &snap, nil
}

// Clear drops the snapshot for identity.
func (c *Cache) Clear(ctx context.Context, identity string) error {
	if err := c.rdb.Del(ctx, sessionPrefix+identity).Err(); err != nil {
		return fmt.Errorf("failed to clear session snapshot: %w", err)
	}
	return nil
}
