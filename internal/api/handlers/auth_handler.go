package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/markdave123-py/railchat/internal/models"
)

// Authenticator is the account surface the auth endpoints need.
type Authenticator interface {
	Signup(ctx context.Context, firstName, email, password string) (*models.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*models.Identity, error)
	IssueToken(id models.Identity) (string, error)
}

type AuthHandler struct {
	users Authenticator
}

func NewAuthHandler(users Authenticator) *AuthHandler {
	return &AuthHandler{users: users}
}

type signupRequest struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}

	user, err := h.users.Signup(r.Context(), req.FirstName, req.Email, req.Password)
	if err != nil {
		writeError(w, "signup", req.Email, err)
		return
	}

	id := models.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
	token, err := h.users.IssueToken(id)
	if err != nil {
		writeError(w, "signup", req.Email, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, Role: id.Role})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}

	id, err := h.users.VerifyCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, "login", req.Email, err)
		return
	}
	token, err := h.users.IssueToken(*id)
	if err != nil {
		writeError(w, "login", req.Email, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Role: id.Role})
}
