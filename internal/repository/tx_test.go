package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "tickets_qr_code_unique"}

	if !uniqueViolation(dup, "tickets_qr_code_unique") {
		t.Error("expected match on named constraint")
	}
	if !uniqueViolation(dup, "") {
		t.Error("empty constraint must match any unique violation")
	}
	if uniqueViolation(dup, "registrations_event_user_active") {
		t.Error("must not match a different constraint")
	}
	if !uniqueViolation(fmt.Errorf("insert: %w", dup), "tickets_qr_code_unique") {
		t.Error("must unwrap wrapped errors")
	}
	if uniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violations are not unique violations")
	}
	if uniqueViolation(errors.New("plain"), "") {
		t.Error("plain errors are not unique violations")
	}
}

func TestSerializationFailure(t *testing.T) {
	if !serializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Error("40001 is retryable")
	}
	if !serializationFailure(&pgconn.PgError{Code: "40P01"}) {
		t.Error("deadlock is retryable")
	}
	if serializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation is not retryable")
	}
	if serializationFailure(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}
