package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"bfhl/go-backend/internal/domains/apierr"
	"bfhl/go-backend/internal/domains/operations"
	"bfhl/go-backend/pkg/models"
)

const (
	msgNotFound        = "Endpoint not found"
	msgInvalidJSON     = "Invalid JSON body"
	msgBodyTooLarge    = "Request body too large"
	docsMessage        = "BFHL API - Use POST request to access functionality"
	docsHealthEndpoint = "Health check"
)

var errNotAnObject = errors.New("request body is not a JSON object")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Success(s.officialEmail, nil))
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildDocs())
}

func buildDocs() models.Docs {
	kinds := operations.Kinds()
	names := make([]string, len(kinds))
	examples := make(map[string]map[string]any, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
		examples[string(k)] = map[string]any{string(k): operations.Example(k)}
	}
	return models.Docs{
		Message: docsMessage,
		Endpoints: models.DocsEndpoints{
			Health:   docsHealthEndpoint,
			BFHL:     "Main functionality with one of: " + strings.Join(names, ", "),
			Examples: examples,
		},
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, msgNotFound)
}

func (s *Server) handleBFHL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	body, err := decodeObject(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeFailure(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		case errors.Is(err, errNotAnObject):
			writeFailure(w, http.StatusBadRequest, operations.MsgExactlyOneKey)
		default:
			writeFailure(w, http.StatusBadRequest, msgInvalidJSON)
		}
		s.metrics.ObserveOperation("none", apierr.KindClientInput.String())
		return
	}

	op, data, err := s.dispatcher.Handle(r.Context(), body)
	label := "none"
	if op != nil {
		label = string(op.Kind())
	}
	if err != nil {
		s.writeError(w, r, label, err)
		return
	}
	s.metrics.ObserveOperation(label, "ok")
	writeJSON(w, http.StatusOK, models.Success(s.officialEmail, data))
}

// decodeObject reads a single JSON object. An empty body is treated as an
// empty object so it fails the key check rather than JSON parsing.
func decodeObject(r io.Reader) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(r)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, errors.New("unexpected data after JSON body")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotAnObject
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	apiErr := apierr.From(err)
	s.metrics.ObserveOperation(operation, apiErr.Kind.String())
	attrs := []any{
		"request_id", requestIDFrom(r.Context()),
		"operation", operation,
		"kind", apiErr.Kind.String(),
		"message", apiErr.Message,
	}
	if apiErr.Kind == apierr.KindClientInput {
		s.logger.Info("request rejected", attrs...)
	} else {
		s.logger.Error("request failed", append(attrs, "error", apiErr.Error())...)
	}
	writeFailure(w, statusFor(apiErr.Kind), apiErr.Message)
}

func statusFor(kind apierr.Kind) int {
	switch kind {
	case apierr.KindClientInput:
		return http.StatusBadRequest
	case apierr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.Failure(message))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(models.Failure(apierr.InternalMessage))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
