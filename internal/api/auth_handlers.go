package api

import (
	"net/http"
	"time"

	"github.com/example/cart-recovery/internal/api/middleware"
	"github.com/example/cart-recovery/internal/auth"
	"github.com/example/cart-recovery/internal/infrastructure/store"
)

// AuthHandlers serves back-office authentication.
type AuthHandlers struct {
	store      store.Store
	jwtService *auth.JWTService
}

func NewAuthHandlers(st store.Store, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{store: st, jwtService: jwtService}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles admin login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, exists, err := h.store.GetAdminByEmail(r.Context(), req.Email)
	if err != nil {
		respondFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !exists || !auth.CheckPassword(req.Password, admin.PasswordHash) {
		respondFailure(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !admin.IsActive {
		respondFailure(w, http.StatusForbidden, "account is deactivated")
		return
	}

	if err := h.setAuthCookies(w, r, admin.ID, admin.Email, admin.Role); err != nil {
		respondFailure(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    admin.ID,
			"email": admin.Email,
			"name":  admin.Name,
			"role":  admin.Role,
		},
	})
}

// Refresh handles token refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondFailure(w, http.StatusUnauthorized, "no refresh token")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondFailure(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	// The subject of an admin refresh token is the admin's email.
	admin, exists, err := h.store.GetAdminByEmail(r.Context(), userID)
	if err != nil || !exists {
		h.clearAuthCookies(w)
		respondFailure(w, http.StatusUnauthorized, "account not found")
		return
	}
	if !admin.IsActive {
		h.clearAuthCookies(w)
		respondFailure(w, http.StatusForbidden, "account is deactivated")
		return
	}

	if err := h.setAuthCookies(w, r, admin.ID, admin.Email, admin.Role); err != nil {
		respondFailure(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

// Logout clears the auth cookies.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)
	respondSuccess(w, http.StatusOK, nil)
}

// Me returns the authenticated admin's claims.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    claims.UserID,
			"email": claims.Email,
			"role":  claims.Role,
		},
	})
}

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, userID, email, role string) error {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(userID, email, role)
	if err != nil {
		return err
	}
	refreshToken, refreshExpiry, err := h.jwtService.GenerateRefreshToken(email)
	if err != nil {
		return err
	}

	secure := r.TLS != nil
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", Expires: expired, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/auth", Expires: expired, HttpOnly: true})
}
