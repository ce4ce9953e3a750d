package passwords_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/refstack/refstack/internal/app/system/passwords"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsUnknownScheme(t *testing.T) {
	_, err := passwords.New("md5_crypt", "salt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, passwords.ErrUnknownScheme))
}

func TestNew_NormalizesScheme(t *testing.T) {
	h, err := passwords.New("  SHA512_CRYPT ", "")
	require.NoError(t, err)
	assert.Equal(t, passwords.SHA512Crypt, h.Scheme())
}

func TestHashVerify_AllSchemes(t *testing.T) {
	for _, scheme := range passwords.Schemes() {
		for _, salt := range []string{"", "a-very-secret-key-used-as-salt-0123"} {
			t.Run(scheme+"/salt="+salt, func(t *testing.T) {
				h, err := passwords.New(scheme, salt)
				require.NoError(t, err)

				hash, err := h.Hash("correct horse")
				require.NoError(t, err)
				assert.Equal(t, scheme, passwords.SchemeOf(hash))

				assert.True(t, h.Verify(hash, "correct horse"))
				assert.False(t, h.Verify(hash, "Correct horse"))
				assert.False(t, h.NeedsRehash(hash))
			})
		}
	}
}

func TestHash_Sha512CryptFormat(t *testing.T) {
	h, err := passwords.New(passwords.SHA512Crypt, "salt")
	require.NoError(t, err)

	a, err := h.Hash("password1")
	require.NoError(t, err)
	b, err := h.Hash("password1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "$6$"), "got %q", a)
	assert.NotEqual(t, a, b, "each hash should get a fresh salt")
}

func TestVerify_SaltMustMatch(t *testing.T) {
	h1, _ := passwords.New(passwords.SHA512Crypt, "first-salt")
	h2, _ := passwords.New(passwords.SHA512Crypt, "second-salt")

	hash, err := h1.Hash("password1")
	require.NoError(t, err)

	assert.True(t, h1.Verify(hash, "password1"))
	assert.False(t, h2.Verify(hash, "password1"))
}

func TestVerify_AcrossSchemeChange(t *testing.T) {
	old, _ := passwords.New(passwords.Bcrypt, "salt")
	hash, err := old.Hash("password1")
	require.NoError(t, err)

	current, _ := passwords.New(passwords.SHA512Crypt, "salt")
	assert.True(t, current.Verify(hash, "password1"))
	assert.True(t, current.NeedsRehash(hash))
}

func TestVerify_GarbageHash(t *testing.T) {
	h, _ := passwords.New(passwords.SHA512Crypt, "")
	assert.False(t, h.Verify("", "password1"))
	assert.False(t, h.Verify("plaintext", "plaintext"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		pw      string
		wantErr error
	}{
		{"", passwords.ErrTooShort},
		{"12345", passwords.ErrTooShort},
		{"123456", nil},
		{"ééééééé", nil},
		{strings.Repeat("x", passwords.MaxLength), nil},
		{strings.Repeat("x", passwords.MaxLength+1), passwords.ErrTooLong},
	}

	for _, tt := range tests {
		err := passwords.Validate(tt.pw)
		assert.Equal(t, tt.wantErr, err, "Validate(len=%d)", len(tt.pw))
	}
}
