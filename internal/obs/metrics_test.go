package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/api/leads":                     "/api/leads",
		"/api/leads/01J3ZK":              "/api/leads/:id",
		"/api/leads/01J3ZK/convert":      "/api/leads/:id/convert",
		"/api/customers/01J3ZK/notes":    "/api/customers/:id/notes",
		"/api/tasks/01J3ZK?page=2":       "/api/tasks/:id",
		"/api/activity":                  "/api/activity",
		"/api/dashboard/stats?limit=10":  "/api/dashboard/stats",
		"/api/leads/01J3ZK/extra/levels": "/api/leads/01J3ZK/extra/levels",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
