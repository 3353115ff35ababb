package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Error("expected pgx.ErrNoRows to be recognised")
	}
	if !IsNoRows(fmt.Errorf("get nurse: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped pgx.ErrNoRows to be recognised")
	}
	if IsNoRows(errors.New("boom")) {
		t.Error("expected unrelated error to be rejected")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation without constraint filter")
	}
	if !IsUniqueViolation(err, "users_email_key") {
		t.Error("expected unique violation for matching constraint")
	}
	if IsUniqueViolation(err, "appointment_slot_held") {
		t.Error("expected mismatch for a different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("expected foreign key violation not to count as unique violation")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("expected foreign key violation")
	}
	if IsForeignKeyViolation(errors.New("boom")) {
		t.Error("expected unrelated error to be rejected")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected no transaction on a bare context, got %v", tx)
	}
}
