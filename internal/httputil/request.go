package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"formbuilder/internal/config"
)

// ParseJSON decodes the request body into dest. The body is capped at
// config.MaxRequestBodyBytes; pass the error to RespondBadBody.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

	// Unknown fields are accepted: clients echo whole documents back
	// (doctype, modified, owner) and only the writable ones are read.
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
