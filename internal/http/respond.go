package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

var errInvalidID = errors.New("invalid id")

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type lenientJSONKey struct{}

// allowUnknownFields marks requests whose bodies may carry keys the handler
// does not read. The legacy routes use it: their client posts back whole
// movie objects (id, avg_rating, reviews) and expects the extras ignored.
func allowUnknownFields(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), lenientJSONKey{}, true)))
	})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if lenient, _ := r.Context().Value(lenientJSONKey{}).(bool); !lenient {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Warn("failed to encode response", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Request body cannot be empty")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		// encoding/json has no typed error for this case.
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unknown field "+field)
	default:
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unable to parse request body")
	}
}

// respondCatalogError maps catalog errors onto HTTP statuses. Unknown
// errors are logged and reported as 500.
func (s *Server) respondCatalogError(w http.ResponseWriter, op string, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.As(err, &validationErr):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error())
	case errors.Is(err, domain.ErrDuplicateName):
		s.respondError(w, http.StatusInternalServerError, "DUPLICATE_NAME", "A movie with this name already exists")
	default:
		s.logger.Error(op+" failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+op)
	}
}

// respondMovieWriteError reports rejected movie writes as 500 with a code
// that tells validation apart from a duplicate name.
func (s *Server) respondMovieWriteError(w http.ResponseWriter, op string, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		s.respondError(w, http.StatusInternalServerError, "VALIDATION_ERROR", validationErr.Error())
		return
	}
	s.respondCatalogError(w, op, err)
}

func parseIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	if raw == "" {
		return 0, errInvalidID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// authorized reports whether a mutating request may proceed. With no
// AUTH_TOKEN configured every request is allowed.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	return s.verifyBearer(r.Header.Get("Authorization"))
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1
}
