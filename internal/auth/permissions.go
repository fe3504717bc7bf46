// Package auth provides session tokens, GitHub OAuth profile exchange, and the
// typed permission set checked at the API boundary. Handlers and middleware are
// the only permission enforcement points; the ingestion coordinator assumes its
// caller was already authorized.
package auth

import "strings"

// Permission is a single capability bit on a user account
type Permission int32

const (
	// PermViewSelf allows reading the own account including private fields.
	PermViewSelf Permission = 1 << iota
	// PermEditSelf allows editing the own profile.
	PermEditSelf
	// PermCreateMod allows uploading mod packages (new mods and new versions).
	PermCreateMod
	// PermEditMod allows editing metadata of owned mods.
	PermEditMod
	// PermApproveMod allows flipping the approval flag on versions.
	PermApproveMod
	// PermEditOtherUsers allows administrative edits of other accounts.
	PermEditOtherUsers
	// PermEditOtherMods allows administrative edits of any mod.
	PermEditOtherMods
	// PermViewOther allows reading private fields of other accounts.
	PermViewOther
)

// DefaultPermissions is granted to new accounts: view/edit self plus upload.
const DefaultPermissions = PermViewSelf | PermEditSelf | PermCreateMod

// PermissionSet is the decoded permissions column of a user row
type PermissionSet int32

// Has reports whether every bit of p is present in the set
func (s PermissionSet) Has(p Permission) bool {
	return int32(s)&int32(p) == int32(p)
}

// HasAny reports whether at least one of the given permissions is present
func (s PermissionSet) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

var permissionNames = map[Permission]string{
	PermViewSelf:       "view_self",
	PermEditSelf:       "edit_self",
	PermCreateMod:      "create_mod",
	PermEditMod:        "edit_mod",
	PermApproveMod:     "approve_mod",
	PermEditOtherUsers: "edit_other_users",
	PermEditOtherMods:  "edit_other_mods",
	PermViewOther:      "view_other",
}

// Name returns the wire name of a single permission bit
func (p Permission) Name() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "unknown"
}

// String lists the set's permission names, for logs and error details
func (s PermissionSet) String() string {
	var names []string
	for p := PermViewSelf; p <= PermViewOther; p <<= 1 {
		if s.Has(p) {
			names = append(names, p.Name())
		}
	}
	return strings.Join(names, ",")
}
