package security

import (
	"errors"
	"strings"
	"testing"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "secret1" {
		t.Fatal("hash equals plaintext")
	}
	if err := h.Compare(hash, "secret1"); err != nil {
		t.Errorf("Compare matching password: %v", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Compare wrong password: want ErrPasswordMismatch, got %v", err)
	}
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 10},
		{1, 4},
		{40, 31},
		{12, 12},
	}
	for _, tt := range tests {
		if got := NewBcryptHasher(tt.in).Cost; got != tt.want {
			t.Errorf("NewBcryptHasher(%d).Cost = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestArgon2Hasher_HashAndCompare(t *testing.T) {
	h := NewArgon2Hasher(Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Errorf("unexpected PHC prefix: %s", hash)
	}
	if err := h.Compare(hash, "secret1"); err != nil {
		t.Errorf("Compare matching password: %v", err)
	}
	if err := h.Compare(hash, "secret2"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Compare wrong password: want ErrPasswordMismatch, got %v", err)
	}
	if err := h.Compare("$argon2id$broken", "secret1"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("Compare malformed hash: want ErrInvalidHash, got %v", err)
	}
}

func TestNewPasswordHasher(t *testing.T) {
	if _, ok := NewPasswordHasher("argon2id", 0).(*Argon2Hasher); !ok {
		t.Error("argon2id should select Argon2Hasher")
	}
	if _, ok := NewPasswordHasher("", 4).(*BcryptHasher); !ok {
		t.Error("default should be BcryptHasher")
	}
}
