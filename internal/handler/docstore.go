package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	docstoreSvc "formbuilder/internal/domain/services/docstore"
	"formbuilder/internal/httputil"
)

// formDocRequest is the body accepted by insert and update.
// Slug and published_on distinguish null from absent.
type formDocRequest struct {
	Name           string                            `json:"name"`
	Title          *string                           `json:"title"`
	Slug           httputil.OptionalString           `json:"slug"`
	Status         *models.FormStatus                `json:"status"`
	SchemaJSON     *models.SchemaField               `json:"schema_json"`
	CurrentVersion *int                              `json:"current_version"`
	PublishedOn    httputil.Optional[models.DocTime] `json:"published_on"`
	Versions       []models.FormVersionDoc           `json:"versions"`
}

// publishedOn returns the sent timestamp; null and "" both mean none
func (r *formDocRequest) publishedOn() *time.Time {
	if !r.PublishedOn.Set() || r.PublishedOn.Value.IsZero() {
		return nil
	}
	t := r.PublishedOn.Value.Time
	return &t
}

func (r *formDocRequest) versionInputs() []docstoreSvc.VersionInput {
	out := make([]docstoreSvc.VersionInput, 0, len(r.Versions))
	for _, v := range r.Versions {
		out = append(out, docstoreSvc.VersionInput{
			Version:    v.Version,
			SchemaJSON: string(v.SchemaJSON),
			Changelog:  v.Changelog,
		})
	}
	return out
}

func (r *formDocRequest) schema() *string {
	if r.SchemaJSON == nil {
		return nil
	}
	s := string(*r.SchemaJSON)
	return &s
}

// DocstoreHandler serves the form doctype over the resource API
type DocstoreHandler struct {
	service docstoreSvc.FormService
	logger  *slog.Logger
}

// NewDocstoreHandler creates a new document store handler
func NewDocstoreHandler(service docstoreSvc.FormService, logger *slog.Logger) *DocstoreHandler {
	return &DocstoreHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts the resource and method endpoints
func (h *DocstoreHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/method/ping", h.Ping)

	mux.HandleFunc("GET /api/resource/{doctype}", h.ListForms)
	mux.HandleFunc("POST /api/resource/{doctype}", h.CreateForm)
	mux.HandleFunc("GET /api/resource/{doctype}/{name}", h.GetForm)
	mux.HandleFunc("PUT /api/resource/{doctype}/{name}", h.UpdateForm)
	mux.HandleFunc("DELETE /api/resource/{doctype}/{name}", h.DeleteForm)
}

// owner is recorded on insert; empty when auth is disabled
func owner(r *http.Request) string {
	caller, _ := httputil.CallerFrom(r.Context())
	return caller.Owner()
}

// checkDocType rejects doctypes this server does not host
func checkDocType(w http.ResponseWriter, r *http.Request) bool {
	if dt := r.PathValue("doctype"); dt != models.DocType {
		httputil.RespondError(w, http.StatusNotFound, fmt.Sprintf("DocType %s not found", dt))
		return false
	}
	return true
}

// ListForms returns form rows
// GET /api/resource/{doctype}?fields=[...]&order_by=modified desc&limit_page_length=N
func (h *DocstoreHandler) ListForms(w http.ResponseWriter, r *http.Request) {
	if !checkDocType(w, r) {
		return
	}

	opts, fields, err := parseListParams(r)
	if err != nil {
		handleError(w, err)
		return
	}

	forms, err := h.service.ListForms(r.Context(), opts)
	if err != nil {
		handleError(w, err)
		return
	}

	rows := make([]map[string]any, 0, len(forms))
	for i := range forms {
		row, err := project(forms[i].ToDoc(), fields)
		if err != nil {
			handleError(w, err)
			return
		}
		rows = append(rows, row)
	}

	httputil.RespondData(w, http.StatusOK, rows)
}

// CreateForm inserts a form
// POST /api/resource/{doctype}
func (h *DocstoreHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	if !checkDocType(w, r) {
		return
	}

	var body formDocRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondBadBody(w, err)
		return
	}

	req := &docstoreSvc.CreateFormRequest{
		Name:           body.Name,
		Owner:          owner(r),
		Slug:           body.Slug.Value,
		SchemaJSON:     body.schema(),
		CurrentVersion: body.CurrentVersion,
		Versions:       body.versionInputs(),
	}
	if body.Title != nil {
		req.Title = *body.Title
	}
	if body.Status != nil {
		req.Status = *body.Status
	}
	req.PublishedOn = body.publishedOn()

	form, err := h.service.CreateForm(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, form.ToDoc())
}

// GetForm returns a form with its version history
// GET /api/resource/{doctype}/{name}
func (h *DocstoreHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	if !checkDocType(w, r) {
		return
	}

	form, err := h.service.GetForm(r.Context(), r.PathValue("name"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, form.ToDoc())
}

// UpdateForm applies a partial update
// PUT /api/resource/{doctype}/{name}
func (h *DocstoreHandler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	if !checkDocType(w, r) {
		return
	}

	var body formDocRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondBadBody(w, err)
		return
	}

	req := &docstoreSvc.UpdateFormRequest{
		Title:          body.Title,
		Slug:           docstoreSvc.OptionalSlug{Present: body.Slug.Present, Value: body.Slug.Value},
		Status:         body.Status,
		SchemaJSON:     body.schema(),
		CurrentVersion: body.CurrentVersion,
		Versions:       body.versionInputs(),
	}
	if body.PublishedOn.Present {
		req.PublishedOn = docstoreSvc.OptionalTime{Present: true, Value: body.publishedOn()}
	}

	form, err := h.service.UpdateForm(r.Context(), r.PathValue("name"), req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, form.ToDoc())
}

// DeleteForm removes a form
// DELETE /api/resource/{doctype}/{name}
func (h *DocstoreHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	if !checkDocType(w, r) {
		return
	}

	if err := h.service.DeleteForm(r.Context(), r.PathValue("name")); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondMessage(w, http.StatusAccepted, "ok")
}

// Ping answers liveness checks from clients
// GET /api/method/ping
func (h *DocstoreHandler) Ping(w http.ResponseWriter, r *http.Request) {
	httputil.RespondMessage(w, http.StatusOK, "pong")
}

// HealthCheck reports whether the database is reachable
// GET /health
func (h *DocstoreHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		httputil.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// defaultListFields matches the document store default of name only
var defaultListFields = []string{"name"}

// parseListParams reads fields, order_by and limit_page_length
func parseListParams(r *http.Request) (formsRepo.ListOptions, []string, error) {
	var opts formsRepo.ListOptions
	q := r.URL.Query()

	fields := defaultListFields
	if raw := q.Get("fields"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return opts, nil, &domain.ValidationError{Message: "fields must be a JSON array of strings"}
		}
	}

	if raw := strings.TrimSpace(q.Get("order_by")); raw != "" {
		parts := strings.Fields(raw)
		if parts[0] != "modified" || len(parts) > 2 {
			return opts, nil, &domain.ValidationError{Message: fmt.Sprintf("unsupported order_by %q", raw)}
		}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
				opts.Ascending = true
			case "desc":
			default:
				return opts, nil, &domain.ValidationError{Message: fmt.Sprintf("unsupported order_by %q", raw)}
			}
		}
	}

	if raw := q.Get("limit_page_length"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, nil, &domain.ValidationError{Message: "limit_page_length must be a non-negative integer"}
		}
		opts.Limit = limit
	}

	return opts, fields, nil
}

// project keeps only the requested fields of a document. "*" keeps all.
func project(doc *models.FormDoc, fields []string) (map[string]any, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var all map[string]any
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, err
	}
	delete(all, "versions")

	for _, f := range fields {
		if f == "*" {
			return all, nil
		}
	}
	row := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := all[f]; ok {
			row[f] = v
		}
	}
	return row, nil
}
