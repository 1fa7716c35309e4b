package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOptionalUnmarshal(t *testing.T) {
	type body struct {
		Slug  OptionalString `json:"slug"`
		Count Optional[int]  `json:"count"`
	}

	tests := []struct {
		name        string
		input       string
		wantPresent bool
		wantSlug    *string
	}{
		{name: "absent", input: `{}`, wantPresent: false},
		{name: "null clears", input: `{"slug":null}`, wantPresent: true},
		{name: "empty string", input: `{"slug":""}`, wantPresent: true, wantSlug: ptr("")},
		{name: "value", input: `{"slug":"site-visit"}`, wantPresent: true, wantSlug: ptr("site-visit")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b body
			if err := json.Unmarshal([]byte(tt.input), &b); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if b.Slug.Present != tt.wantPresent {
				t.Errorf("Present = %v, want %v", b.Slug.Present, tt.wantPresent)
			}
			switch {
			case tt.wantSlug == nil && b.Slug.Value != nil:
				t.Errorf("Value = %q, want nil", *b.Slug.Value)
			case tt.wantSlug != nil && (b.Slug.Value == nil || *b.Slug.Value != *tt.wantSlug):
				t.Errorf("Value = %v, want %q", b.Slug.Value, *tt.wantSlug)
			}
			if b.Count.Present {
				t.Error("untouched field marked present")
			}
		})
	}

	var b body
	if err := json.Unmarshal([]byte(`{"count":"three"}`), &b); err == nil {
		t.Error("expected type error for count")
	}
}

func TestCallerOwner(t *testing.T) {
	tests := []struct {
		caller Caller
		want   string
	}{
		{caller: Caller{UserID: "u1", Email: "a@example.com"}, want: "a@example.com"},
		{caller: Caller{UserID: "u1"}, want: "u1"},
		{caller: Caller{}, want: ""},
	}
	for _, tt := range tests {
		if got := tt.caller.Owner(); got != tt.want {
			t.Errorf("Owner(%+v) = %q, want %q", tt.caller, got, tt.want)
		}
	}

	r := httptest.NewRequest("GET", "/", nil)
	if GetUserID(r) != "" {
		t.Error("anonymous request has a user ID")
	}
	if GetUserID(WithCaller(r, Caller{UserID: "u9"})) != "u9" {
		t.Error("caller not stored")
	}
}

func TestRespondErrorWithExtras(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithExtras(rec, http.StatusConflict, "form x already exists", map[string]any{
		"resource_id": "x",
		"status":      "ignored",
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["resource_id"] != "x" || got["detail"] != "form x already exists" {
		t.Errorf("body = %v", got)
	}
	if got["status"] != float64(http.StatusConflict) {
		t.Errorf("extra overrode status: %v", got["status"])
	}
}

func TestRespondData(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondData(rec, http.StatusOK, map[string]string{"name": "f1"})
	if body := strings.TrimSpace(rec.Body.String()); body != `{"data":{"name":"f1"}}` {
		t.Errorf("body = %s", body)
	}
}

func TestParseJSONBodyLimit(t *testing.T) {
	oversized := `{"title":"` + strings.Repeat("a", 33<<20) + `"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader(oversized))

	var dest map[string]string
	err := ParseJSON(rec, req, &dest)
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	RespondBadBody(rec, err)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"title":`))
	RespondBadBody(rec, ParseJSON(rec, req, &dest))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func ptr(s string) *string { return &s }
