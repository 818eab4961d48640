// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package rbac

import (
	"strings"

	"github.com/portunus-gw/portunus/internal/metrics"
	"github.com/portunus-gw/portunus/internal/models"
)

// AllowProfile reports whether the context's profile is in the allowed list.
// Matching is exact; profiles have no wildcard. A context without a profile
// never matches.
func AllowProfile(rc *models.RBACContext, profiles []string) bool {
	allowed := rc != nil && rc.HasProfile(profiles...)
	metrics.RecordAccessDecision("profile", allowed)
	return allowed
}

// AllowPermission reports whether the context may perform the target
// permission. The decision is true when the context holds the exact string,
// holds the super-admin token, or holds any permission matching the target
// segment-by-segment where each held segment equals the target segment or
// is the wildcard.
func AllowPermission(rc *models.RBACContext, target string) bool {
	allowed := allowPermission(rc, target)
	metrics.RecordAccessDecision("permission", allowed)
	return allowed
}

func allowPermission(rc *models.RBACContext, target string) bool {
	if rc == nil {
		return false
	}
	if rc.HasPermission(target) || rc.HasPermission(models.SuperAdminPermission) {
		return true
	}
	for _, held := range rc.Permissions {
		if matchPermission(held, target) {
			return true
		}
	}
	return false
}

// matchPermission reports whether held grants target under segment-level
// wildcard rules. Mismatched segment counts never match.
func matchPermission(held, target string) bool {
	heldParts := strings.Split(held, ":")
	targetParts := strings.Split(target, ":")
	if len(heldParts) != models.PermissionSegments || len(targetParts) != models.PermissionSegments {
		return false
	}
	for i := range heldParts {
		if heldParts[i] != models.PermissionWildcard && heldParts[i] != targetParts[i] {
			return false
		}
	}
	return true
}
