package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"library-api/auth"
	"library-api/library"
)

// authedHandler receives the member resolved by the gate.
type authedHandler func(w http.ResponseWriter, r *http.Request, principal *library.Member)

// protect runs the gate in front of h.
func (s *Server) protect(h authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, rej := s.gate.Check(r)
		if rej != nil {
			s.reject(w, r, rej)
			return
		}
		if rec, ok := w.(*statusRecorder); ok {
			rec.principal = principal
		}
		h(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)), principal)
	})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, rej *auth.Rejection) {
	fields := []zap.Field{
		zap.String("reason", string(rej.Reason)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if rej.Err != nil {
		fields = append(fields, zap.Error(rej.Err))
	}
	if rej.Status >= http.StatusInternalServerError {
		s.log.Error("authentication failed", fields...)
	} else {
		s.log.Warn("request rejected", fields...)
	}
	writeMessage(w, rej.Status, rej.Message)
}

// statusRecorder captures the response status and, on protected routes,
// the member the gate admitted.
type statusRecorder struct {
	http.ResponseWriter
	status    int
	principal *library.Member
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func recorderFor(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

// routeTemplate returns the matched mux template so ids don't blow up label
// and log cardinality.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorderFor(w)
		start := time.Now()

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("route", routeTemplate(r)),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if rec.principal != nil {
			fields = append(fields, zap.Int64("member_id", rec.principal.ID))
		}
		if status >= http.StatusInternalServerError {
			s.log.Error("request", fields...)
			return
		}
		s.log.Info("request", fields...)
	})
}

func statusLabel(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return strconv.Itoa(code)
}
