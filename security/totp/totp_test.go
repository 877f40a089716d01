package totp

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	enrollment, err := Generate("authcore", "a@example.com")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if enrollment.Secret == "" {
		t.Fatal("empty secret")
	}
	if !strings.Contains(enrollment.ProvisioningURI, "authcore") {
		t.Errorf("provisioning URI %q missing issuer", enrollment.ProvisioningURI)
	}

	at := time.Unix(1700000000, 0)
	code, err := CodeAt(enrollment.Secret, at)
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
	if !VerifyAt(enrollment.Secret, code, at) {
		t.Error("valid code rejected")
	}
}

func TestVerifyAcceptsAdjacentStep(t *testing.T) {
	enrollment, err := Generate("authcore", "a@example.com")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	at := time.Unix(1700000000, 0)
	code, err := CodeAt(enrollment.Secret, at)
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}
	if !VerifyAt(enrollment.Secret, code, at.Add(30*time.Second)) {
		t.Error("code rejected one step later")
	}
	if VerifyAt(enrollment.Secret, code, at.Add(5*time.Minute)) {
		t.Error("code accepted five minutes later")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	enrollment, err := Generate("authcore", "a@example.com")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	at := time.Unix(1700000000, 0)
	if VerifyAt(enrollment.Secret, "000000", at) && VerifyAt(enrollment.Secret, "123456", at) {
		t.Error("two arbitrary codes both accepted")
	}
	if VerifyAt(enrollment.Secret, "not-a-code", at) {
		t.Error("malformed code accepted")
	}
	if VerifyAt("%%%invalid%%%", "123456", at) {
		t.Error("malformed secret accepted")
	}
}
