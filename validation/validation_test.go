package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/pipeflow/errors"
)

type sampleAuth struct {
	Type  string `json:"type" validate:"required,oneof=bearer basic"`
	Token string `json:"token"`
}

type sampleConfig struct {
	Method string      `json:"method" validate:"required,oneof=GET POST"`
	URL    string      `json:"url" validate:"required,url"`
	Limit  int         `json:"limit" validate:"gte=0,lte=10"`
	Auth   *sampleAuth `json:"auth,omitempty" validate:"omitempty"`
}

func TestValidate_Valid(t *testing.T) {
	cfg := sampleConfig{Method: "GET", URL: "https://example.com", Limit: 3}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidate_ReportsJSONFieldPaths(t *testing.T) {
	cfg := sampleConfig{Method: "PATCH", Limit: 11, Auth: &sampleAuth{}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	fields, _ := appErr.Details["fields"].([]FieldError)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	for _, want := range []string{"method", "url", "limit", "auth.type"} {
		if _, ok := got[want]; !ok {
			t.Errorf("expected field %q in %v", want, got)
		}
	}
	if !strings.Contains(got["method"], "GET POST") {
		t.Errorf("unexpected method message %q", got["method"])
	}
}

func TestValidator_Chain(t *testing.T) {
	v := New().
		Required("id", "").
		Min("max_attempts", 0, 1).
		OneOf("type", "shell", []string{"code", "http_api"}).
		Check(false, "depends_on", "references unknown step")
	if len(v.Errors()) != 4 {
		t.Fatalf("expected 4 errors, got %v", v.Errors())
	}
	if err := v.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidator_NoErrorsIsNil(t *testing.T) {
	if err := New().Required("id", "a").Validate(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("MaxAttempts"); got != "max_attempts" {
		t.Errorf("toSnakeCase = %q", got)
	}
}
