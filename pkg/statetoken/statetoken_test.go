package statetoken

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner("test-secret")

	token, err := signer.Sign(State{
		BusinessID:    "biz-1",
		StaffMemberID: "staff-1",
		Provider:      "zoom",
	})
	require.NoError(t, err)
	assert.Contains(t, token, ".")

	state, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "biz-1", state.BusinessID)
	assert.Equal(t, "staff-1", state.StaffMemberID)
	assert.Equal(t, "zoom", state.Provider)
	assert.NotEmpty(t, state.Nonce)
}

func TestSigner_Verify_TamperedPayload(t *testing.T) {
	signer := NewSigner("test-secret")

	token, err := signer.Sign(State{BusinessID: "biz-1", StaffMemberID: "staff-1", Provider: "meet"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	tampered := parts[0] + "x." + parts[1]

	_, err = signer.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSigner_Verify_WrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a").Sign(State{BusinessID: "biz-1"})
	require.NoError(t, err)

	_, err = NewSigner("secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSigner_Verify_Expired(t *testing.T) {
	signer := NewSigner("test-secret")
	issued := time.Now().Add(-16 * time.Minute)
	signer.now = func() time.Time { return issued }

	token, err := signer.Sign(State{BusinessID: "biz-1", StaffMemberID: "staff-1", Provider: "zoom"})
	require.NoError(t, err)

	// Same signer, clock back to the present: token is authentic but stale.
	signer.now = time.Now
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredState)
}

func TestSigner_Verify_Garbage(t *testing.T) {
	signer := NewSigner("test-secret")

	for _, token := range []string{"", "no-dot", "a.b.c", "!!!.???"} {
		_, err := signer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidState, "token %q", token)
	}
}

func TestSigner_NoncesDiffer(t *testing.T) {
	signer := NewSigner("test-secret")

	a, err := signer.Sign(State{BusinessID: "biz-1"})
	require.NoError(t, err)
	b, err := signer.Sign(State{BusinessID: "biz-1"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
