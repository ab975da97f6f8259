package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                      "/",
		"/metrics":                              "/metrics",
		"/healthz":                              "/healthz",
		"/v1/orgs/org-1":                        "/v1/orgs/:org",
		"/v1/orgs/org-1/members":                "/v1/orgs/:org/members",
		"/v1/orgs/org-1/members/u-9":            "/v1/orgs/:org/members/:id",
		"/v1/orgs/org-1/members/u-9/role":       "/v1/orgs/:org/members/:id/role",
		"/v1/orgs/org-1/metrics/summary":        "/v1/orgs/:org/metrics/summary",
		"/v1/orgs/org-1/threats?limit=5":        "/v1/orgs/:org/threats",
		"/v1/orgs/org-1/export?range=7d":        "/v1/orgs/:org/export",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
