package models

import (
	"strings"
	"time"
)

// MembershipRole is the paid tier a viewer belongs to. It is independent of IsAdmin.
type MembershipRole string

const (
	RoleFree   MembershipRole = "free"
	RoleMember MembershipRole = "member"
	RoleMaster MembershipRole = "master"
	RoleBoth   MembershipRole = "both"
)

// ParseMembershipRole normalizes a stored role value. Unknown values are returned
// as-is so the access evaluator can fail closed on them.
func ParseMembershipRole(s string) MembershipRole {
	return MembershipRole(strings.ToLower(strings.TrimSpace(s)))
}

func (r MembershipRole) IsValid() bool {
	switch r {
	case RoleFree, RoleMember, RoleMaster, RoleBoth:
		return true
	}
	return false
}

func (r MembershipRole) HasMemberAccess() bool {
	return r == RoleMember || r == RoleBoth
}

func (r MembershipRole) HasMasterAccess() bool {
	return r == RoleMaster || r == RoleBoth
}

// User is owned by Casdoor; this service only reads it and lets admins change
// the membership fields.
type User struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Role         MembershipRole `json:"role"`
	MasterCohort *string        `json:"master_cohort"`
	IsAdmin      bool           `json:"is_admin"`

	// Profile info
	AvatarURL     *string `json:"avatar_url"`
	EmailVerified bool    `json:"email_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cohort returns the master cohort or "" when none is set.
func (u *User) Cohort() string {
	if u == nil || u.MasterCohort == nil {
		return ""
	}
	return strings.TrimSpace(*u.MasterCohort)
}
