package utils

import (
	"strings"

	"github.com/google/uuid"
)

// BuildDashboardCacheKey scopes cached dashboard stats to the caller. Admin
// stats are global, so the user id is left out for admins.
func BuildDashboardCacheKey(role, userID string) string {
	if role == "admin" {
		return "dashboard:v1:admin"
	}
	return "dashboard:v1:" + role + ":" + userID
}

const ReportCacheKey = "reports:summary:v1"

// CanonicalUUID parses any form uuid.Parse accepts (upper case, braces,
// urn:uuid:, no dashes) and returns the lower-case dashed form. Ids are
// compared as strings after this, so callers must use the returned value.
func CanonicalUUID(s string) (string, bool) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return u.String(), true
}
