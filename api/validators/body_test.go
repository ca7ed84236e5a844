package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
)

type statusBody struct {
	Type string `json:"type" validate:"required,oneof=order subscription"`
	ID   string `json:"id" validate:"required,uuid"`
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"invoice","id":"nope"}`))
	var body statusBody
	err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["type"] != "must be one of: order subscription" || details["id"] != "must be a valid uuid" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"order","id":"0d9f6a8e-3f3e-4a51-9a39-1f0d3c5f2b7a","extra":1}`))
	var body statusBody
	if err := DecodeJSONBody(httptest.NewRecorder(), req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyAcceptsValidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"order","id":"0d9f6a8e-3f3e-4a51-9a39-1f0d3c5f2b7a"}`))
	var body statusBody
	if err := DecodeJSONBody(httptest.NewRecorder(), req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Type != "order" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDecodeJSONBodyRejectsEmptyTrailingAndOversized(t *testing.T) {
	cases := map[string]string{
		"empty":     ``,
		"trailing":  `{"type":"order","id":"0d9f6a8e-3f3e-4a51-9a39-1f0d3c5f2b7a"} {}`,
		"oversized": `{"type":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
			var body statusBody
			if err := DecodeJSONBody(httptest.NewRecorder(), req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
