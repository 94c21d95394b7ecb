package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPgxError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "orders_cart_id_key",
		TableName:      "orders",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("insert order: %w", pgErr), "create order")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.PG == nil || dump.PG.Code != "23505" || dump.PG.Constraint != "orders_cart_id_key" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}

	fields := dump.Fields()
	if fields["pg_constraint"] != "orders_cart_id_key" {
		t.Fatalf("expected pg_constraint field, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg values should be omitted")
	}
}

func TestDumpExtractsPQError(t *testing.T) {
	err := fmt.Errorf("reserve: %w", &pq.Error{Code: "40001", Table: "inventory_records"})
	dump := Dump(err)
	if dump.PG == nil || dump.PG.Code != "40001" || dump.PG.Table != "inventory_records" {
		t.Fatalf("unexpected pg details %+v", dump.PG)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain layers, got %v", dump.Chain)
	}
}

func TestDumpNil(t *testing.T) {
	if dump := Dump(nil); dump.TopMessage != "" || len(dump.Chain) != 0 || dump.PG != nil {
		t.Fatalf("expected empty dump, got %+v", dump)
	}
}
