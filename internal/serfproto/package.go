package serfproto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"
)

// ClaimsLifetime is the fixed validity window of a claims envelope.
const ClaimsLifetime = 30 * time.Second

// Signing errors.
var (
	ErrMissingSubject = errors.New("missing subject")
	ErrMissingData    = errors.New("missing data")
)

// Verification errors.
var (
	ErrMissingSignature     = errors.New("missing signature")
	ErrMissingSecret        = errors.New("missing secret")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrDecode               = errors.New("decode error")
	ErrInvalidClaimsSubject = errors.New("invalid claims subject")
	ErrInvalidClaimsIssuer  = errors.New("invalid claims issuer")
	ErrMissingClaims        = errors.New("missing claims")
	ErrMissingClaimsData    = errors.New("missing claims data")
	ErrClaimsExpired        = errors.New("claims expired")
)

// ProtoPackage is an encoded envelope together with its signature: the hex
// lowercase HMAC-SHA256 of the encoded bytes, keyed by the user's secret.
type ProtoPackage struct {
	Data      []byte
	Signature string
}

// PackageBuilder assembles and signs an envelope.
type PackageBuilder struct {
	dat     Dat
	subject *Sub
	srvErr  *ServerError
	now     func() time.Time
}

// NewPackage starts a package builder.
func NewPackage() *PackageBuilder {
	return &PackageBuilder{now: time.Now}
}

func (b *PackageBuilder) WithData(dat Dat) *PackageBuilder {
	b.dat = dat
	return b
}

func (b *PackageBuilder) WithSubject(subject Sub) *PackageBuilder {
	b.subject = &subject
	return b
}

func (b *PackageBuilder) WithError(srvErr *ServerError) *PackageBuilder {
	b.srvErr = srvErr
	return b
}

// WithClock overrides the time source, for deterministic tests.
func (b *PackageBuilder) WithClock(now func() time.Time) *PackageBuilder {
	b.now = now
	return b
}

// Sign encodes the envelope and signs the encoded bytes. An error payload
// produces an error-branch envelope; otherwise the claims are issued by the
// server with iat = now and exp = now + ClaimsLifetime.
func (b *PackageBuilder) Sign(secret string) (*ProtoPackage, error) {
	if b.srvErr != nil {
		data := (&Request{Error: b.srvErr}).Marshal()
		return &ProtoPackage{Data: data, Signature: GenerateSignature(data, secret)}, nil
	}

	if b.subject == nil {
		return nil, ErrMissingSubject
	}
	if b.dat == nil {
		return nil, ErrMissingData
	}

	iat := uint64(b.now().Unix())
	request := &Request{
		Claims: &Claims{
			Iss: IssServer,
			Sub: *b.subject,
			Dat: b.dat,
			Iat: iat,
			Exp: iat + uint64(ClaimsLifetime/time.Second),
		},
	}

	data := request.Marshal()
	return &ProtoPackage{Data: data, Signature: GenerateSignature(data, secret)}, nil
}

// Verifier checks an inbound envelope: signature first, then decode, then the
// claim invariants (subject, issuer, expiry).
type Verifier struct {
	signature string
	secret    string
	issuer    *Iss
	now       func() time.Time
}

// VerifierBuilder assembles a Verifier.
type VerifierBuilder struct {
	v Verifier
}

// NewVerifier starts a verifier builder.
func NewVerifier() *VerifierBuilder {
	return &VerifierBuilder{v: Verifier{now: time.Now}}
}

func (b *VerifierBuilder) WithSignature(signature string) *VerifierBuilder {
	b.v.signature = signature
	return b
}

func (b *VerifierBuilder) WithSecret(secret string) *VerifierBuilder {
	b.v.secret = secret
	return b
}

func (b *VerifierBuilder) WithIssuer(issuer Iss) *VerifierBuilder {
	b.v.issuer = &issuer
	return b
}

// WithClock overrides the time source, for deterministic tests.
func (b *VerifierBuilder) WithClock(now func() time.Time) *VerifierBuilder {
	b.v.now = now
	return b
}

func (b *VerifierBuilder) Build() *Verifier {
	return &b.v
}

// Verify authenticates and decodes data. The signature covers the raw encoded
// bytes, so every byte parsed afterwards has already been authenticated.
func (v *Verifier) Verify(data []byte) (*Request, error) {
	if v.signature == "" {
		return nil, ErrMissingSignature
	}
	if v.secret == "" {
		return nil, ErrMissingSecret
	}
	if !VerifySignature(data, v.signature, v.secret) {
		return nil, ErrInvalidSignature
	}

	decoded, err := UnmarshalRequest(data)
	if err != nil {
		return nil, ErrDecode
	}

	claims := decoded.Claims
	if claims == nil {
		return nil, ErrMissingClaims
	}
	if claims.Sub < SubData || claims.Sub > SubMigrate {
		return nil, ErrInvalidClaimsSubject
	}
	if v.issuer == nil || *v.issuer != claims.Iss {
		return nil, ErrInvalidClaimsIssuer
	}
	if claims.Dat == nil {
		return nil, ErrMissingClaimsData
	}
	if uint64(v.now().Unix()) > claims.Exp {
		return nil, ErrClaimsExpired
	}

	return decoded, nil
}

// GenerateSignature computes the hex lowercase HMAC-SHA256 of data.
func GenerateSignature(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature against a recomputed HMAC in constant time.
func VerifySignature(data []byte, signature, secret string) bool {
	expected := GenerateSignature(data, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
