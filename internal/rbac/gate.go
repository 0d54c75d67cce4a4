package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/shared"
)

const (
	// LoginPath receives unauthenticated page requests.
	LoginPath = "/login"
	// UnauthorizedPath receives page requests denied by the route table.
	UnauthorizedPath = "/unauthorized"
	// CallbackParam carries the originally requested location.
	CallbackParam = "callbackUrl"
)

// DecisionObserver is notified of every access decision.
type DecisionObserver interface {
	ObserveDecision(outcome Outcome)
}

// Gate enforces the route table at the request boundary.
type Gate struct {
	Table    *RouteTable
	Tokens   *shared.TokenManager
	Logger   *slog.Logger
	Observer DecisionObserver
}

// Handler returns the gate middleware. Page requests are redirected, API
// requests receive JSON errors.
func (g Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := g.authenticate(r)
		if ok {
			r = r.WithContext(ContextWithPrincipal(r.Context(), principal))
		}
		decision := g.Table.DecideRoles(r.URL.Path, ok, principal.Roles)
		if g.Observer != nil {
			g.Observer.ObserveDecision(decision.Outcome)
		}
		switch decision.Outcome {
		case Allow:
			next.ServeHTTP(w, r)
		case RedirectLogin:
			if isAPIPath(r.URL.Path) {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			http.Redirect(w, r, loginLocation(decision.Callback, r.URL.RawQuery), http.StatusSeeOther)
		default:
			if g.Logger != nil {
				g.Logger.Info("access denied",
					slog.String("path", r.URL.Path),
					slog.String("user_id", principal.ID),
					slog.String("role", string(principal.Role())))
			}
			if isAPIPath(r.URL.Path) {
				httpx.Fail(w, http.StatusForbidden, "Forbidden")
				return
			}
			http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
		}
	})
}

func (g Gate) authenticate(r *http.Request) (Principal, bool) {
	raw := ExtractToken(r)
	if raw == "" {
		return Principal{}, false
	}
	claims, err := g.Tokens.VerifyType(raw, shared.TokenTypeAccess)
	if err != nil {
		if !errors.Is(err, shared.ErrTokenExpired) && g.Logger != nil {
			g.Logger.Warn("rejecting token", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		return Principal{}, false
	}
	principal, err := PrincipalFromClaims(claims)
	if err != nil {
		if g.Logger != nil {
			g.Logger.Warn("token carries no usable role", slog.String("user_id", claims.ID), slog.Any("error", err))
		}
		return Principal{}, false
	}
	return principal, true
}

// ExtractToken reads the bearer header, then the access token cookie.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(shared.AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

func loginLocation(callback, rawQuery string) string {
	if rawQuery != "" {
		callback += "?" + rawQuery
	}
	return LoginPath + "?" + CallbackParam + "=" + url.QueryEscape(callback)
}
