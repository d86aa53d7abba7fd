package passphrase

import "testing"

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("SALE_TEST_TOKEN", "  abc.def.ghi ")
	src := NewSource("SALE_TEST_TOKEN", "API token")
	value, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "abc.def.ghi" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	t.Setenv("SALE_TEST_TOKEN", "   ")
	if _, err := NewSource("SALE_TEST_TOKEN", "API token").Get(); err == nil {
		t.Fatalf("expected error for blank value")
	}
}
