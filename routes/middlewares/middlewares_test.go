package middlewares

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-apply/log"
)

func withClaims(r *http.Request, claims map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), oauth.ClaimsContext, claims))
}

func echoUser(t *testing.T, got *User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok {
			t.Fatalf("expected user in context")
		}
		*got = u
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestIdentity_ReadsClaims(t *testing.T) {
	var u User
	w := httptest.NewRecorder()
	r := withClaims(httptest.NewRequest("GET", "/", nil), map[string]string{"user_id": "42", "roles": "user, admin"})

	identity(echoUser(t, &u)).ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if u.ID != 42 || !u.HasRole("admin") || !u.HasRole("user") {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestIdentity_RejectsMissingUserID(t *testing.T) {
	for name, claims := range map[string]map[string]string{
		"no claims":    nil,
		"no user_id":   {"roles": "admin"},
		"not a number": {"user_id": "abc"},
		"not positive": {"user_id": "0"},
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/", nil)
			if claims != nil {
				r = withClaims(r, claims)
			}
			identity(http.NotFoundHandler()).ServeHTTP(w, r)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestAuthenticated_RejectsMissingToken(t *testing.T) {
	w := httptest.NewRecorder()
	Authenticated("secret")(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	cases := []struct {
		name string
		user *User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"plain user", &User{ID: 1, Roles: []string{"user"}}, http.StatusForbidden},
		{"admin", &User{ID: 2, Roles: []string{"admin"}}, http.StatusNoContent},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/", nil)
			if c.user != nil {
				r = r.WithContext(WithUser(r.Context(), *c.user))
			}
			Admin(ok).ServeHTTP(w, r)
			if w.Code != c.want {
				t.Fatalf("expected %d, got %d", c.want, w.Code)
			}
		})
	}
}

func TestLogger_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/forms", nil))

	out := buf.String()
	if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/api/forms") {
		t.Fatalf("unexpected log line %q", out)
	}
}
