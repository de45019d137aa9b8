package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	k1, err := DeriveKey("secret")
	require.NoError(t, err)
	k2, err := DeriveKey("secret")
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	other, err := DeriveKey("different")
	require.NoError(t, err)
	require.NotEqual(t, k1, other)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key, err := DeriveKey("secret")
	require.NoError(t, err)

	ct, err := Seal([]byte("payload"), key)
	require.NoError(t, err)
	require.NotContains(t, string(ct), "payload")

	plain, err := Open(ct, key)
	require.NoError(t, err)
	require.Equal(t, "payload", string(plain))
}

func TestOpen_WrongKeyFails(t *testing.T) {
	key, err := DeriveKey("secret")
	require.NoError(t, err)
	wrong, err := DeriveKey("other")
	require.NoError(t, err)

	ct, err := Seal([]byte("payload"), key)
	require.NoError(t, err)

	_, err = Open(ct, wrong)
	require.Error(t, err)
}

func TestOpen_TruncatedCiphertext(t *testing.T) {
	key, err := DeriveKey("secret")
	require.NoError(t, err)
	_, err = Open([]byte("short"), key)
	require.Error(t, err)
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	require.Len(t, a, 32)

	b, err := NewToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
