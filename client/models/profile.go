// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

// Role distinguishes the two profile kinds on the platform.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleEmployer  Role = "employer"
)

// Profile is the display information resolved for an identity.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Role        Role   `json:"role"`
}
