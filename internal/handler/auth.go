package handler

import (
	"log/slog"
	"net/http"

	"github.com/pavelanni/biopractice/internal/auth"
	"github.com/pavelanni/biopractice/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User    *model.User `json:"user"`
	Refresh string      `json:"refresh"`
	Access  string      `json:"access"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pair, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{User: user, Refresh: pair.Refresh, Access: pair.Access})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	access, err := h.accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.accounts.Logout(r.Context(), req.Refresh); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("user logged out", "user_id", model.UserIDFromContext(r.Context()))
	w.WriteHeader(http.StatusResetContent)
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.User(r.Context(), model.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
