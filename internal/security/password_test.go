package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("Stronger#Pass123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	ok, err := h.Verify(hash, "Stronger#Pass123")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification success")
	}
	ok, err = h.Verify(hash, "wrong-pass")
	if err != nil {
		t.Fatalf("verify wrong password errored: %v", err)
	}
	if ok {
		t.Fatal("expected password verification failure")
	}
}

func TestPasswordHasherDefaultsToCost12(t *testing.T) {
	h := NewPasswordHasher(0)
	if h.Cost() != DefaultBcryptCost {
		t.Fatalf("expected default cost %d, got %d", DefaultBcryptCost, h.Cost())
	}
	hash, err := h.Hash("Secret1!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("read cost: %v", err)
	}
	if cost != 12 {
		t.Fatalf("expected cost 12 in stored hash, got %d", cost)
	}
}

func TestPasswordHasherRejectsOversizedAndMalformed(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	if _, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	hash, err := h.Hash(strings.Repeat("a", MaxPasswordBytes))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if ok, err := h.Verify(hash, strings.Repeat("a", MaxPasswordBytes+1)); ok || err != nil {
		t.Fatalf("oversized password must simply not match, got ok=%v err=%v", ok, err)
	}
	if _, err := h.Verify("not-a-bcrypt-hash", "x"); err == nil {
		t.Fatal("expected malformed hash error")
	}
}
