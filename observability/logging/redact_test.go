package logging

import "testing"

func TestMaskFieldRedactsSecrets(t *testing.T) {
	attr := MaskField("authToken", "s3cr3t-bearer-token")
	if got := attr.Value.String(); got != RedactedValue {
		t.Fatalf("secret not masked: %q", got)
	}
	if attr.Key != "authToken" {
		t.Fatalf("key casing changed: %q", attr.Key)
	}
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	for _, key := range []string{"service", "env", "addr", "method", "ADDR", " error "} {
		attr := MaskField(key, "visible")
		if got := attr.Value.String(); got != "visible" {
			t.Fatalf("allowlisted key %q was masked: %q", key, got)
		}
	}
}

func TestMaskFieldKeepsEmptyValues(t *testing.T) {
	attr := MaskField("authToken", "")
	if got := attr.Value.String(); got != "" {
		t.Fatalf("empty value rewritten: %q", got)
	}
}
