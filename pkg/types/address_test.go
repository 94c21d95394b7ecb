package types

import "testing"

func TestAddressValueScanRoundTrip(t *testing.T) {
	addr := Address{
		FullName:     "Nguyen Van A",
		PhoneNumber:  "0900000000",
		AddressLine1: "12 Le Loi",
		District:     "District 1",
		City:         "Ho Chi Minh City",
		Country:      "VN",
	}

	value, err := addr.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var decoded Address
	if err := decoded.Scan([]byte(value.(string))); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, addr)
	}

	var fromString Address
	if err := fromString.Scan(value); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if fromString.City != addr.City {
		t.Fatalf("unexpected city %q", fromString.City)
	}
}

func TestAddressValidate(t *testing.T) {
	cases := []struct {
		name    string
		addr    Address
		wantErr bool
	}{
		{name: "complete", addr: Address{FullName: "A", PhoneNumber: "1", AddressLine1: "x", City: "y"}},
		{name: "missing line1", addr: Address{FullName: "A", PhoneNumber: "1", City: "y"}, wantErr: true},
		{name: "missing phone", addr: Address{FullName: "A", AddressLine1: "x", City: "y"}, wantErr: true},
	}
	for _, tc := range cases {
		err := tc.addr.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
	if !(Address{}).IsZero() {
		t.Fatal("empty address should be zero")
	}
}

func TestAddressScanNil(t *testing.T) {
	addr := Address{City: "stale"}
	if err := addr.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !addr.IsZero() {
		t.Fatalf("expected zero address after nil scan, got %+v", addr)
	}
	if err := addr.Scan(42); err == nil {
		t.Fatal("expected unsupported type error")
	}
}
