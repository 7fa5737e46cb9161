package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/gaia-mentor/internal/chat"
)

// #region requests

type chatRequest struct {
	Message string `json:"message"`
}

type quizRequest struct {
	Answers []int `json:"answers"`
}

// #endregion requests

// #region chat-handlers

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.chat.HandleTurn(r.Context(), id.Subject, req.Message)
	if err != nil {
		s.logger.Error("chat turn failed", zap.String("user", id.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not process message")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	resp, err := s.chat.Confirm(r.Context(), id.Subject)
	if err != nil {
		s.logger.Error("confirm failed", zap.String("user", id.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not confirm handoff")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	resp, err := s.chat.Decline(r.Context(), id.Subject)
	if err != nil {
		s.logger.Error("decline failed", zap.String("user", id.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not decline handoff")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// #endregion chat-handlers

// #region profile-handlers

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	p, err := s.chat.EnsureProfile(r.Context(), id.Subject, id.Email, id.Name)
	if err != nil {
		s.logger.Error("profile failed", zap.String("user", id.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var req chat.ProfileUpdate
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.chat.UpdateProfile(r.Context(), id.Subject, req)
	switch {
	case errors.Is(err, chat.ErrUnknownPersona):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("profile update failed", zap.String("user", id.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var req quizRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.chat.SubmitQuiz(r.Context(), id.Subject, req.Answers)
	if err != nil {
		s.logger.Error("quiz failed", zap.String("user", id.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store quiz")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRoutingState(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	st, err := s.chat.State(r.Context(), id.Subject)
	if err != nil {
		s.logger.Error("routing state failed", zap.String("user", id.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load routing state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// #endregion profile-handlers

// #region json

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// #endregion json
