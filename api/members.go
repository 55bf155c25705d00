package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"library-api/auth"
	"library-api/library"
)

// createMemberRequest leaves Password nil when the field is absent, which is
// distinct from an explicit empty string.
type createMemberRequest struct {
	Email    string  `json:"email"`
	Password *string `json:"password"`
}

type memberView struct {
	Email string `json:"email"`
}

// POST /members
func (s *Server) createMember(w http.ResponseWriter, r *http.Request, principal *library.Member) {
	var req createMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Email is required.")
		return
	}

	password := s.defaultPassword
	if req.Password != nil {
		password = *req.Password
	} else {
		s.log.Warn("member created with the default password",
			zap.String("email", req.Email),
			zap.Int64("created_by", principal.ID),
		)
	}

	m, err := s.lib.RegisterMember(r.Context(), req.Email, password)
	switch {
	case errors.Is(err, library.ErrDuplicateEmail):
		writeMessage(w, http.StatusBadRequest, "A member with this email already exists.")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeMessage(w, http.StatusBadRequest, "Password is too long.")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	s.log.Info("member added", zap.Int64("member_id", m.ID), zap.Int64("created_by", principal.ID))
	writeMessage(w, http.StatusCreated, "Member added successfully!")
}

// GET /members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request, _ *library.Member) {
	members, err := s.lib.ListMembers(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		out = append(out, memberView{Email: m.Email})
	}
	writeJSON(w, http.StatusOK, out)
}

// PUT /members/{id}
func (s *Server) updateMember(w http.ResponseWriter, r *http.Request, _ *library.Member) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email and password are required.")
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Member not found")
		return
	}

	_, err := s.lib.UpdateMember(r.Context(), id, req.Email, req.Password)
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Member not found")
		return
	case errors.Is(err, library.ErrDuplicateEmail):
		writeMessage(w, http.StatusBadRequest, "A member with this email already exists.")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeMessage(w, http.StatusBadRequest, "Password is too long.")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Member updated successfully!")
}

// DELETE /members/{id}
func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request, _ *library.Member) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Member not found")
		return
	}

	err := s.lib.DeleteMember(r.Context(), id)
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Member not found")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Member deleted successfully!")
}
