package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"library-api/library"
)

type bookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear *int64 `json:"published_year"`
}

func (req bookRequest) fields() library.BookFields {
	return library.BookFields{Title: req.Title, Author: req.Author, PublishedYear: req.PublishedYear}
}

// bookView is the listing shape; ids are not exposed.
type bookView struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear *int64 `json:"published_year"`
}

// pathID parses the {id} route variable. The route regexp only admits
// digits, so failure means the value overflows int64 and cannot exist.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (s *Server) decodeBook(w http.ResponseWriter, r *http.Request) (bookRequest, bool) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return req, false
	}
	if req.Title == "" || req.Author == "" {
		writeMessage(w, http.StatusBadRequest, "Title and author are required.")
		return req, false
	}
	return req, true
}

// POST /books
func (s *Server) createBook(w http.ResponseWriter, r *http.Request, _ *library.Member) {
	req, ok := s.decodeBook(w, r)
	if !ok {
		return
	}
	if _, err := s.lib.CreateBook(r.Context(), req.fields()); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Book added successfully!")
}

// GET /books
func (s *Server) listBooks(w http.ResponseWriter, r *http.Request, _ *library.Member) {
	books, err := s.lib.ListBooks(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]bookView, 0, len(books))
	for _, b := range books {
		out = append(out, bookView{Title: b.Title, Author: b.Author, PublishedYear: b.PublishedYear})
	}
	writeJSON(w, http.StatusOK, out)
}

// PUT /books/{id}
func (s *Server) updateBook(w http.ResponseWriter, r *http.Request, _ *library.Member) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}
	req, ok := s.decodeBook(w, r)
	if !ok {
		return
	}

	_, err := s.lib.UpdateBook(r.Context(), id, req.fields())
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book updated successfully!")
}

// DELETE /books/{id}
func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request, _ *library.Member) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}

	err := s.lib.DeleteBook(r.Context(), id)
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book deleted successfully!")
}
