package webguard

import (
	"errors"
	"testing"
)

func TestValidateURL_Schemes(t *testing.T) {
	if err := ValidateURL("ftp://example.com/file"); !errors.Is(err, ErrUnsafeScheme) {
		t.Errorf("ftp: got %v, want ErrUnsafeScheme", err)
	}
	if err := ValidateURL("file:///etc/passwd"); !errors.Is(err, ErrUnsafeScheme) {
		t.Errorf("file: got %v, want ErrUnsafeScheme", err)
	}
	if err := ValidateURL("https://"); err == nil {
		t.Error("expected error for missing host")
	}
}

func TestValidateURL_PrivateAddresses(t *testing.T) {
	for _, raw := range []string{
		"http://127.0.0.1/admin",
		"http://10.0.0.5/",
		"http://192.168.1.1/",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/",
	} {
		if err := ValidateURL(raw); !errors.Is(err, ErrPrivateAddress) {
			t.Errorf("%s: got %v, want ErrPrivateAddress", raw, err)
		}
	}
	if err := ValidateURL("https://8.8.8.8/"); err != nil {
		t.Errorf("public IP: got %v", err)
	}
}

func TestValidateDomain(t *testing.T) {
	valid := []string{"example.com", "blog.example.com", "xn--bcher-kva.ch", "a1.b2.co"}
	for _, d := range valid {
		if err := ValidateDomain(d); err != nil {
			t.Errorf("%q: got %v, want nil", d, err)
		}
	}
	invalid := []string{
		"",
		"localhost",
		"example.com/path",
		"https://example.com",
		"example.com:8080",
		"user@example.com",
		"-bad.example.com",
		"bad-.example.com",
		"exa mple.com",
		".example.com",
	}
	for _, d := range invalid {
		if err := ValidateDomain(d); err == nil {
			t.Errorf("%q: expected error", d)
		}
	}
}
