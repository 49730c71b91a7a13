package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))
	key := Key(" User@Example.com ", "IMAP.example.com")
	assert.Equal(t, "user@example.com@imap.example.com", key)

	_, err := store.Get(key)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	require.NoError(t, store.Set(key, "s3cret"))
	got, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, store.Delete(key))
	_, err = store.Get(key)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, store.Delete(key), "deleting a missing key is a no-op")
}
