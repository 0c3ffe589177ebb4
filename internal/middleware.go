package internal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const authorKey contextKey = "author"

// Header names carrying the author of a request. Identity is established by
// whatever sits in front of the service; these headers only attribute
// messages.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

// Author identifies who sent a request. A zero Author is anonymous.
type Author struct {
	UserID   string
	Username string
}

// AuthorFromContext returns the Author stored by Middleware.
func AuthorFromContext(ctx context.Context) Author {
	a, _ := ctx.Value(authorKey).(Author)
	return a
}

// WithAuthor returns a copy of ctx carrying a.
func WithAuthor(ctx context.Context, a Author) context.Context {
	return context.WithValue(ctx, authorKey, a)
}

// Middleware reads the author headers into the request context. A user id
// that is present but not a UUID is rejected.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Author

		if raw := strings.TrimSpace(r.Header.Get(HeaderUserID)); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				slog.WarnContext(r.Context(), "invalid user id header",
					"value", raw,
					"path", r.URL.Path)
				http.Error(w, "invalid "+HeaderUserID+" header", http.StatusBadRequest)
				return
			}
			a.UserID = id.String()
		}
		a.Username = strings.TrimSpace(r.Header.Get(HeaderUsername))

		next.ServeHTTP(w, r.WithContext(WithAuthor(r.Context(), a)))
	})
}
