package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

func newCodec(t *testing.T) *TokenCodec {
	t.Helper()
	c, err := NewTestTokenCodec(15 * time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	return c
}

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	c := newCodec(t)
	tok, err := c.IssueAccess("u1", "USER", "s1", testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if tok.Raw == "" || tok.ID == "" {
		t.Fatal("raw token or id empty")
	}
	if !tok.ExpiresAt.After(tok.IssuedAt) {
		t.Fatalf("expiresAt %v not after issuedAt %v", tok.ExpiresAt, tok.IssuedAt)
	}
	if tok.ExpiresAt.Sub(tok.IssuedAt) != 15*time.Minute {
		t.Errorf("lifetime = %v", tok.ExpiresAt.Sub(tok.IssuedAt))
	}

	claims, err := c.VerifyAccess(tok.Raw, testNow.Add(14*time.Minute))
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "USER" || claims.SessionID != "s1" || claims.ID != tok.ID {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenCodec_Expiry(t *testing.T) {
	c := newCodec(t)
	tok, err := c.IssueAccess("u1", "USER", "s1", testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := c.VerifyAccess(tok.Raw, tok.ExpiresAt); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("at expiry: want ErrTokenExpired, got %v", err)
	}
	if _, err := c.VerifyAccess(tok.Raw, tok.ExpiresAt.Add(time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("after expiry: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenCodec_InvalidSignature(t *testing.T) {
	c := newCodec(t)
	tok, err := c.IssueAccess("u1", "USER", "s1", testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	parts := strings.Split(tok.Raw, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	other, err := NewHMACTokenCodec([]byte(strings.Repeat("k", 32)), TestIssuer, TestAudience, time.Minute)
	if err != nil {
		t.Fatalf("NewHMACTokenCodec: %v", err)
	}
	foreign, err := other.IssueAccess("u1", "ADMIN", "s1", testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	for name, raw := range map[string]string{
		"garbage":      "not-a-jwt",
		"tampered":     tampered,
		"wrong alg":    foreign.Raw,
		"empty string": "",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := c.VerifyAccess(raw, testNow); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("want ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestTokenCodec_WrongAudience(t *testing.T) {
	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	issuer, err := NewTokenCodec(signer, pub, TestIssuer, "another-api", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	tok, err := issuer.IssueAccess("u1", "USER", "", testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := newCodec(t).VerifyAccess(tok.Raw, testNow); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("want ErrInvalidSignature, got %v", err)
	}
}

func TestNewHMACTokenCodec_ShortSecret(t *testing.T) {
	if _, err := NewHMACTokenCodec([]byte("short"), "i", "a", time.Minute); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}

func TestHMACTokenCodec_RoundTrip(t *testing.T) {
	c, err := NewHMACTokenCodec([]byte(strings.Repeat("s", 48)), "iss", "aud", time.Minute)
	if err != nil {
		t.Fatalf("NewHMACTokenCodec: %v", err)
	}
	if c.Alg() != "HS256" {
		t.Errorf("Alg = %q", c.Alg())
	}
	tok, err := c.IssueAccess("u9", "ADMIN", "s9", testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := c.VerifyAccess(tok.Raw, testNow.Add(30*time.Second))
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Role != "ADMIN" {
		t.Errorf("role = %q", claims.Role)
	}
}
