// Package statetoken issues and verifies the signed state parameter used to
// correlate an OAuth redirect back to the request that produced it.
package statetoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxAge is how long a state token stays valid after issuance.
const MaxAge = 15 * time.Minute

var (
	// ErrInvalidState indicates a malformed or tampered token.
	ErrInvalidState = errors.New("invalid state token")

	// ErrExpiredState indicates a token older than MaxAge.
	ErrExpiredState = errors.New("expired state token")
)

// State is the payload carried inside a signed token.
type State struct {
	BusinessID    string `json:"business_id"`
	StaffMemberID string `json:"staff_member_id"`
	Provider      string `json:"provider"`
	IssuedAt      int64  `json:"iat"`
	Nonce         string `json:"nonce"`
}

// Signer signs and verifies state tokens with an HMAC-SHA256 key.
type Signer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSigner creates a signer for the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		maxAge: MaxAge,
		now:    time.Now,
	}
}

// Sign serializes the state and returns it as payload.signature, both
// segments base64url-encoded. IssuedAt and Nonce are filled in here.
func (s *Signer) Sign(state State) (string, error) {
	state.IssuedAt = s.now().Unix()
	state.Nonce = uuid.New().String()

	payload, err := json.Marshal(state)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.signature(encoded), nil
}

// Verify checks the token's signature and freshness independently and
// returns the embedded state. Signature failures report ErrInvalidState;
// stale-but-authentic tokens report ErrExpiredState.
func (s *Signer) Verify(token string) (*State, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrInvalidState
	}

	if !hmac.Equal([]byte(s.signature(parts[0])), []byte(parts[1])) {
		return nil, ErrInvalidState
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidState
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, ErrInvalidState
	}

	issued := time.Unix(state.IssuedAt, 0)
	if s.now().Sub(issued) > s.maxAge {
		return nil, ErrExpiredState
	}

	return &state, nil
}

func (s *Signer) signature(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
