package guard

import "strings"

// Path patterns are matched in order. A pattern ending in "/" matches the
// prefix; anything else must match exactly. Matching is a pure function of
// the path so it stays unit-testable without a router.

// StatusExempt lists routes the tenant status guard always allows:
// authentication, tenant self-service onboarding, health and bootstrap.
var StatusExempt = []string{
	"/api/v1/health",
	"/api/v1/auth/",
	"/api/v1/tenants/onboard",
	"/api/v1/bootstrap",
	"/metrics",
}

// AgreementExempt lists routes the agreement guard never blocks: auth,
// agreement status/acceptance itself, onboarding, invitation acceptance,
// operator routes, and the branding/notification reads needed to render the
// app shell around the blocking screen.
var AgreementExempt = []string{
	"/api/v1/health",
	"/api/v1/auth/",
	"/api/v1/agreements/current",
	"/api/v1/agreements/accept",
	"/api/v1/tenants/onboard",
	"/api/v1/invitations/accept",
	"/api/v1/ops/",
	"/api/v1/tenant/branding",
	"/api/v1/tenant/notifications",
	"/metrics",
}

// Match reports whether path matches any pattern in the ordered list.
// Non-API paths (static assets, documents) are always exempt.
func Match(patterns []string, path string) bool {
	if !strings.HasPrefix(path, "/api/") && !strings.HasPrefix(path, "/metrics") {
		return true
	}

	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}
