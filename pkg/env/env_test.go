package env

import "testing"

func TestGetFallsBackWhenBlank(t *testing.T) {
	t.Setenv("LEAFSHOP_TEST_VALUE", "   ")
	if got := Get("LEAFSHOP_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	t.Setenv("LEAFSHOP_TEST_VALUE", "console")
	if got := Get("LEAFSHOP_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}

func TestGetBool(t *testing.T) {
	cases := []struct {
		raw      string
		fallback bool
		want     bool
	}{
		{raw: "", fallback: true, want: true},
		{raw: "false", fallback: true, want: false},
		{raw: "1", fallback: false, want: true},
		{raw: "nope", fallback: false, want: false},
	}
	for _, tc := range cases {
		t.Setenv("LEAFSHOP_TEST_BOOL", tc.raw)
		if got := GetBool("LEAFSHOP_TEST_BOOL", tc.fallback); got != tc.want {
			t.Fatalf("GetBool(%q, %v) = %v, want %v", tc.raw, tc.fallback, got, tc.want)
		}
	}
}
