package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code       Code
		status     int
		publicMsg  string
		retryable  bool
		detailsOK  bool
		echo       bool
		retryAfter int
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true, echo: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required", echo: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found", echo: true},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", echo: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true, echo: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", echo: true, retryAfter: 1},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "could not process payment", retryable: true, retryAfter: 5},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.EchoMessage != tt.echo || meta.RetryAfter != tt.retryAfter {
			t.Fatalf("code %s expected echo=%v retryAfter=%d got echo=%v retryAfter=%d", tt.code, tt.echo, tt.retryAfter, meta.EchoMessage, meta.RetryAfter)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("tls handshake failed")
	err := Wrap(CodeDependency, cause, "query charge")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped error to match cause")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if got := Wrap(CodeInternal, nil, "no cause"); got.Unwrap() != nil {
		t.Fatalf("nil cause should produce a bare error")
	}
}

func TestCodeOfAndIsCode(t *testing.T) {
	inner := New(CodeNotFound, "order missing")
	outer := Wrap(CodeInternal, inner, "confirm order")
	plain := fmt.Errorf("context: %w", outer)

	if CodeOf(plain) != CodeInternal {
		t.Fatalf("expected outermost code internal, got %s", CodeOf(plain))
	}
	if !IsCode(plain, CodeNotFound) {
		t.Fatalf("expected not found in chain")
	}
	if IsCode(plain, CodeDependency) {
		t.Fatalf("did not expect dependency code")
	}
	if CodeOf(stdErrors.New("raw")) != CodeInternal {
		t.Fatalf("untyped errors should map to internal")
	}
}

func TestWithDetailsOnNil(t *testing.T) {
	var e *Error
	if e.WithDetails("x") != nil {
		t.Fatalf("expected nil receiver to stay nil")
	}
	if e.Code() != CodeInternal {
		t.Fatalf("nil error code should be internal")
	}
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_subscription_deliveries_date", TableName: "subscription_deliveries"}
	err := Wrap(CodeInternal, pgErr, "insert deliveries")

	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected code in dump, got %s", d.Code)
	}
	if d.Postgres == nil || d.Postgres.Code != "23505" || d.Postgres.Constraint != "uq_subscription_deliveries_date" {
		t.Fatalf("unexpected pg details %+v", d.Postgres)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two links in chain, got %v", d.Chain)
	}
	if d.Fields()["error.pg_table"] != "subscription_deliveries" {
		t.Fatalf("fields should carry pg table")
	}
	if want := "[" + string(CodeInternal) + "] " + err.Error() + " (pg 23505 uq_subscription_deliveries_date)"; d.Summary() != want {
		t.Fatalf("summary = %q, want %q", d.Summary(), want)
	}
	if Dump(nil).Summary() != "" || Dump(nil).Postgres != nil {
		t.Fatalf("nil error should dump empty")
	}
}

func TestDumpPlainError(t *testing.T) {
	d := Dump(stdErrors.New("boom"))
	if d.Summary() != "boom" || d.Postgres != nil || d.Code != "" {
		t.Fatalf("unexpected dump %+v", d)
	}
	if _, ok := d.Fields()["error.pg_code"]; ok {
		t.Fatalf("plain errors carry no pg fields")
	}
}
