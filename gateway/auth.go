package gateway

import (
	"chat-relay/errors"
	stderrors "errors"
	"net/http"
	"time"
)

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type CurrentUser struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CurrentUserResponse struct {
	OK   bool         `json:"ok"`
	User *CurrentUser `json:"user"`
}

// Register handles POST /auth/register and POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body CredentialsRequest
	if err := h.decode(w, r, &body); err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	token, err := h.authService.Register(body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, r, token.String())
	writeJSON(w, http.StatusCreated, TokenResponse{Token: token.String()})
}

// Login handles POST /auth/login and POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body CredentialsRequest
	if err := h.decode(w, r, &body); err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	token, err := h.authService.Login(body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, r, token.String())
	writeJSON(w, http.StatusOK, TokenResponse{Token: token.String()})
}

// Logout handles POST /auth/logout and POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(credential(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// setSessionCookie lets browser clients authenticate with credentials: 'include'.
// The cookie lives as long as the token.
func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	cookie := h.sessionCookie(token)
	if session, err := h.validator.Resolve(r.Context(), token); err == nil {
		cookie.Expires = session.ExpiresAt
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	cookie := h.sessionCookie("")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func (h *Handler) sessionCookie(token string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	// Cross-site clients only send the cookie with SameSite=None, which requires Secure
	if h.config.CookieSecure {
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// CurrentUser handles GET /currentUser
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	session, err := h.validator.Resolve(r.Context(), credential(r))
	switch {
	case stderrors.Is(err, errors.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, CurrentUserResponse{OK: false})
		return
	case err != nil:
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CurrentUserResponse{
		OK:   true,
		User: &CurrentUser{ID: session.Identity, ExpiresAt: session.ExpiresAt},
	})
}
