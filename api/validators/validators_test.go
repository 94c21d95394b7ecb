package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
)

type couponBody struct {
	Code     string `json:"code" validate:"required,max=16,code"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func decode(t *testing.T, body string) (couponBody, error) {
	t.Helper()
	var dest couponBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBody(t *testing.T) {
	dest, err := decode(t, `{"code":"SAVE-10","quantity":2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.Code != "SAVE-10" || dest.Quantity != 2 {
		t.Fatalf("unexpected decode %+v", dest)
	}
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"code":"A","quantity":1,"extra":true}`,
		"trailing":      `{"code":"A","quantity":1}{"code":"B"}`,
		"bad code":      `{"code":"save 10!","quantity":1}`,
		"min":           `{"code":"A","quantity":0}`,
		"too large":     `{"code":"` + strings.Repeat("A", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, body)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	_, err := decode(t, `{"code":"A","quantity":0}`)
	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
	if details["quantity"] != "must be at least 1" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=30&bad=x&big=500", nil)
	if v, err := ParseQueryInt(req, "limit", 20, 1, 100); err != nil || v != 30 {
		t.Fatalf("limit = %d, %v", v, err)
	}
	if v, err := ParseQueryInt(req, "missing", 20, 1, 100); err != nil || v != 20 {
		t.Fatalf("default = %d, %v", v, err)
	}
	if _, err := ParseQueryInt(req, "bad", 20, 1, 100); err == nil {
		t.Fatal("expected non-numeric error")
	}
	if _, err := ParseQueryInt(req, "big", 20, 1, 100); err == nil {
		t.Fatal("expected range error")
	}
}

func TestParseQueryUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?warehouseId=not-a-uuid&productId=6f1c1f0e-8a4e-4c55-9d2b-6f7c0d3b2a11", nil)
	if id, err := ParseQueryUUID(req, "productId"); err != nil || id == nil {
		t.Fatalf("productId = %v, %v", id, err)
	}
	if id, err := ParseQueryUUID(req, "absent"); err != nil || id != nil {
		t.Fatalf("absent = %v, %v", id, err)
	}
	if _, err := ParseQueryUUID(req, "warehouseId"); err == nil {
		t.Fatal("expected invalid uuid error")
	}
}

func TestSanitizeKeepsRunesWhole(t *testing.T) {
	if got := SanitizeString("  héllo  ", 2); got != "h" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeCode(" save10 ", 0); got != "SAVE10" {
		t.Fatalf("got %q", got)
	}
}
