package crypto

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "hunter2-hunter2")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if digest == "hunter2-hunter2" {
		t.Fatal("digest equals plaintext")
	}
	if !h.Verify("hunter2-hunter2", digest) {
		t.Error("correct secret rejected")
	}
	if h.Verify("wrong", digest) {
		t.Error("wrong secret accepted")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if h.Verify("secret", "not-a-bcrypt-digest") {
		t.Error("malformed digest accepted")
	}
	if h.Verify("secret", "") {
		t.Error("empty digest accepted")
	}
}

func TestHasherCostFallback(t *testing.T) {
	// Out-of-range costs fall back rather than panic downstream.
	h := NewHasher(99)
	if h.cost != DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, DefaultCost)
	}
}

func TestOpaqueToken(t *testing.T) {
	a, err := OpaqueToken()
	if err != nil {
		t.Fatalf("OpaqueToken error: %v", err)
	}
	b, err := OpaqueToken()
	if err != nil {
		t.Fatalf("OpaqueToken error: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Error("two tokens are identical")
	}
}
