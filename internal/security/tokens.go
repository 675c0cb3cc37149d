package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature covers every reason an access token cannot be trusted other than expiry:
	// bad signature, malformed input, unexpected algorithm, issuer or audience.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned when the token's expiry is not after the verification instant.
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims are the JWT claims carried by an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
}

// AccessToken is an issued access token together with its decoded attributes.
type AccessToken struct {
	Raw       string
	ID        string
	SubjectID string
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies signed access tokens. Verification is a pure function of the
// token and the supplied instant.
type TokenCodec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	accessTTL time.Duration
}

// NewTokenCodec returns a codec signing with an RSA (RS256) or ECDSA (ES256) private key.
func NewTokenCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) (*TokenCodec, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return &TokenCodec{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
	}, nil
}

// NewHMACTokenCodec returns an HS256 codec. The secret must be at least 32 bytes.
func NewHMACTokenCodec(secret []byte, issuer, audience string, accessTTL time.Duration) (*TokenCodec, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidKey
	}
	return &TokenCodec{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
	}, nil
}

// AccessTTL is the fixed lifetime of issued access tokens.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// Alg returns the JWT signing algorithm.
func (c *TokenCodec) Alg() string { return c.method.Alg() }

// IssueAccess signs an access token for subjectID valid from now for the codec's TTL.
// Times are truncated to whole seconds to match the JWT NumericDate encoding.
func (c *TokenCodec) IssueAccess(subjectID, role, sessionID string, now time.Time) (AccessToken, error) {
	jti, err := generateJTI()
	if err != nil {
		return AccessToken{}, err
	}
	issuedAt := now.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(c.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subjectID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:      role,
		SessionID: sessionID,
	}
	raw, err := jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{
		Raw:       raw,
		ID:        jti,
		SubjectID: subjectID,
		Role:      role,
		SessionID: sessionID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyAccess checks signature, algorithm, issuer, audience and expiry against now.
// Returns ErrTokenExpired or ErrInvalidSignature; both are terminal for the token.
func (c *TokenCodec) VerifyAccess(raw string, now time.Time) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.verifyKey, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidSignature
	}
	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
