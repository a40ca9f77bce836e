package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringStoresInSystemKeyring(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvKey, "")
	k := NewKeyring()

	_, err := k.GetKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, k.SetKey("s3cret"))
	key, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", key)
	assert.True(t, k.IsAvailable())

	require.NoError(t, k.DeleteKey())
	_, err = k.GetKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, k.DeleteKey(), ErrKeyNotFound)
}

func TestKeyringEnvTakesPrecedence(t *testing.T) {
	keyring.MockInit()
	k := NewKeyring()
	require.NoError(t, k.SetKey("from-keyring"))

	t.Setenv(EnvKey, "from-env")
	key, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.ErrorContains(t, k.DeleteKey(), EnvKey)
}

func TestKeyringWithoutSystemKeyring(t *testing.T) {
	keyring.MockInitWithError(errors.New("no dbus"))
	t.Setenv(EnvKey, "")
	k := NewKeyring()

	assert.False(t, k.IsAvailable())
	assert.Error(t, k.SetKey(""))
	err := k.SetKey("s3cret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvKey)
	assert.NotContains(t, err.Error(), "s3cret")

	t.Setenv(EnvKey, "s3cret")
	assert.True(t, k.IsAvailable())
}
