package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope wraps resource payloads as {"data": ...}
type Envelope struct {
	Data any `json:"data"`
}

// Message is the body of method calls and deletes: {"message": ...}
type Message struct {
	Message string `json:"message"`
}

// RespondJSON writes data as JSON. The payload is marshaled before any header
// is written so an encoding failure still produces a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondData writes data inside the resource envelope
func RespondData(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, Envelope{Data: data})
}

// RespondMessage writes a {"message": msg} body
func RespondMessage(w http.ResponseWriter, status int, msg string) {
	RespondJSON(w, status, Message{Message: msg})
}

// ProblemDetail is an RFC 7807 problem document. Extra fields are flattened
// into the top level object.
type ProblemDetail struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Extra    map[string]any `json:"-"`
}

func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+5)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	return json.Marshal(m)
}

// NewProblem builds a problem document for status
func NewProblem(status int, detail string) ProblemDetail {
	return ProblemDetail{
		Type:   errorTypeFromStatus(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// RespondError writes an RFC 7807 problem response
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondProblem(w, NewProblem(status, detail))
}

// RespondErrorWithExtras writes a problem response with additional members
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]any) {
	problem := NewProblem(status, detail)
	problem.Extra = extras
	RespondProblem(w, problem)
}

// RespondProblem writes an already built problem document
func RespondProblem(w http.ResponseWriter, problem ProblemDetail) {
	payload, err := json.Marshal(problem)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	w.Write(payload)
}

// RespondBadBody answers a ParseJSON failure: 413 when the body was over the
// limit, 400 otherwise.
func RespondBadBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	RespondError(w, http.StatusBadRequest, "Invalid request body")
}

func errorTypeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.1"
	case http.StatusUnauthorized:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.2"
	case http.StatusForbidden:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.4"
	case http.StatusNotFound:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.5"
	case http.StatusConflict:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.10"
	case http.StatusRequestEntityTooLarge:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.5.14"
	case http.StatusInternalServerError:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.6.1"
	case http.StatusServiceUnavailable:
		return "https://www.rfc-editor.org/rfc/rfc9110#section-15.6.4"
	default:
		return "about:blank"
	}
}
