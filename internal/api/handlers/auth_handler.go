package handlers

import (
	"encoding/json"
	"net/http"

	middleware "github.com/markdave123-py/neurodoc/internal/api/middlewares"
	"github.com/markdave123-py/neurodoc/internal/models"
	"github.com/markdave123-py/neurodoc/internal/services"
)

type AuthHandler struct {
	users  *services.UserService
	secret string
}

func NewAuthHandler(users *services.UserService, jwtSecret string) *AuthHandler {
	return &AuthHandler{users: users, secret: jwtSecret}
}

type signupRequest struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := h.users.Register(r.Context(), req.FirstName, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user *models.User) {
	token, err := middleware.IssueToken(h.secret, user.ID, middleware.TokenTTL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: user})
}
