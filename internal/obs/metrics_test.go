package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                        "/",
		"/metrics":                                "/metrics",
		"/v1/journals/abc":                        "/v1/journals/:id",
		"/v1/journals/abc/users":                  "/v1/journals/:id/users",
		"/v1/journals/abc/users?x=1":              "/v1/journals/:id/users",
		"/v1/journals/abc/library-files/f1":       "/v1/journals/:id/library-files/:id",
		"/v1/journals/abc/extra":                  "/v1/journals/abc/extra",
		"/v1/submissions/s1/versions/v1/publish":  "/v1/submissions/:id/versions/:id/publish",
		"/v1/submissions/s1/versions/v1/schedule": "/v1/submissions/:id/versions/:id/schedule",
		"/v1/journals":                            "/v1/journals",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
