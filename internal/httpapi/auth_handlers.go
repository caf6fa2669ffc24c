package httpapi

import (
	"errors"
	"net/http"

	"aigate.org/internal/audit"
	"aigate.org/internal/auth"
	"aigate.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginData struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   int             `json:"expires_in"`
	User        auth.PublicUser `json:"user"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	Data    loginData `json:"data"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		obs.ObserveLogin("missing_fields")
		writeAPIError(w, r, http.StatusBadRequest, codeMissingFields, "Email and password required")
		return
	}

	result, err := a.authn.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			obs.ObserveLogin("missing_fields")
			writeAPIError(w, r, http.StatusBadRequest, codeMissingFields, "Email and password required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.ObserveLogin("invalid_credentials")
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
				"email": req.Email,
			})
			writeAPIError(w, r, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password")
		default:
			obs.ObserveLogin("server_error")
			writeAPIError(w, r, http.StatusInternalServerError, codeServerError, "Internal server error")
		}
		return
	}

	obs.ObserveLogin("success")
	_ = audit.LogEvent(r.Context(), "auth.login.succeeded", map[string]any{
		"user_id": result.User.ID,
		"email":   result.User.Email,
		"role":    result.User.Role,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Data: loginData{
			AccessToken: result.AccessToken,
			ExpiresIn:   result.ExpiresIn,
			User:        result.User,
		},
	})
}
