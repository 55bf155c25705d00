package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"library-api/auth"
	"library-api/library"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// POST /signup
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	m, err := s.lib.RegisterMember(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, library.ErrDuplicateEmail):
		writeMessage(w, http.StatusBadRequest, "Email already in use.")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeMessage(w, http.StatusBadRequest, "Password is too long.")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	s.log.Info("member signed up", zap.Int64("member_id", m.ID))
	writeMessage(w, http.StatusCreated, "User created successfully!")
}

// POST /login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	m, err := s.lib.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "User not found.")
		return
	case errors.Is(err, library.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	token, err := s.tokens.Issue(m.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.log.Info("member logged in", zap.Int64("member_id", m.ID))
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Token: token})
}
