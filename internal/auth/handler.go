package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

// SessionCookiePath scopes the session token cookie to the auth endpoints.
const SessionCookiePath = "/api/auth"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	responder httpx.Responder
	cookies   shared.CookieOptions
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, responder httpx.Responder, cookies shared.CookieOptions) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		responder: responder,
		cookies:   cookies,
		validator: httpx.NewValidator(),
	}
}

// MountRoutes registers routes under /api/auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/signup", h.handleSignup)
	r.Post("/password", h.handlePassword)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

// MountPublicRoutes registers the public routes that live directly under /api.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/password", h.handlePassword)
	r.Post("/checkUser", h.handleCheckUser)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type passwordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type checkUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		h.responder.RespondError(w, r, err)
		return false
	}
	if err := httpx.Validate(h.validator, target); err != nil {
		h.responder.RespondError(w, r, err)
		return false
	}
	return true
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Login(r.Context(), req.Email, req.Password, shared.MetaFromRequest(r))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	h.writeSession(w, res, http.StatusOK, "Login successful")
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Signup(r.Context(), req.Name, req.Email, req.Password, shared.MetaFromRequest(r))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	h.writeSession(w, res, http.StatusCreated, "Account created")
}

func (h *Handler) handlePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Email, req.Password, shared.MetaFromRequest(r)); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Message: "Password updated"})
}

func (h *Handler) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	var req checkUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	exists, err := h.service.CheckUser(r.Context(), req.Email)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: map[string]bool{"exists": exists}})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(shared.SessionTokenCookie)
	if err != nil {
		h.responder.RespondError(w, r, shared.ErrNotAuthenticated)
		return
	}
	res, err := h.service.Refresh(r.Context(), cookie.Value, shared.MetaFromRequest(r))
	if err != nil {
		h.clearCookies(w)
		h.responder.RespondError(w, r, err)
		return
	}
	opts := h.service.Options()
	shared.SetTokenCookie(w, shared.AccessTokenCookie, res.AccessToken, "/", opts.AccessTTL, h.cookies)
	httpx.OK(w, http.StatusOK, httpx.Envelope{Token: res.AccessToken, User: SummaryOf(res.User)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(shared.SessionTokenCookie); err == nil {
		if err := h.service.Logout(r.Context(), cookie.Value, shared.MetaFromRequest(r)); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	h.clearCookies(w)
	httpx.OK(w, http.StatusOK, httpx.Envelope{Message: "Logged out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		h.responder.RespondError(w, r, shared.ErrNotAuthenticated)
		return
	}
	user, err := h.service.Me(r.Context(), principal)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{User: SummaryOf(user)})
}

func (h *Handler) writeSession(w http.ResponseWriter, res Result, status int, message string) {
	opts := h.service.Options()
	shared.SetTokenCookie(w, shared.AccessTokenCookie, res.AccessToken, "/", opts.AccessTTL, h.cookies)
	shared.SetTokenCookie(w, shared.SessionTokenCookie, res.SessionToken, SessionCookiePath, opts.SessionTTL, h.cookies)
	httpx.OK(w, status, httpx.Envelope{Message: message, Token: res.AccessToken, User: SummaryOf(res.User)})
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	shared.ClearTokenCookie(w, shared.AccessTokenCookie, "/", h.cookies)
	shared.ClearTokenCookie(w, shared.SessionTokenCookie, SessionCookiePath, h.cookies)
}
