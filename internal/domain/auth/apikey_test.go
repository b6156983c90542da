package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapRepo struct {
	keys map[string]*APIKeyInfo
	err  error
}

func (m *mapRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.keys[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return info, nil
}

func TestAuthenticator(t *testing.T) {
	pepper := []byte("pepper")
	hash := Hash(pepper, "secret-key")
	repo := &mapRepo{keys: map[string]*APIKeyInfo{
		hash: {ID: "k1", KeyHash: hash, Name: "ops", Scopes: []string{ScopeAdmin}},
	}}
	a := NewAuthenticator(repo, pepper)
	ctx := context.Background()

	info, err := a.Authenticate(ctx, "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "k1", info.ID)
	assert.True(t, info.HasScope(ScopeAdmin))
	assert.False(t, info.HasScope("other"))

	for _, key := range []string{"", "wrong-key"} {
		_, err := a.Authenticate(ctx, key)
		require.ErrorIs(t, err, ErrUnauthorized, key)
	}

	// Same key under a different pepper does not match.
	_, err = NewAuthenticator(repo, []byte("other")).Authenticate(ctx, "secret-key")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticator_StoredHashMismatch(t *testing.T) {
	pepper := []byte("pepper")
	hash := Hash(pepper, "k")
	repo := &mapRepo{keys: map[string]*APIKeyInfo{
		hash: {ID: "k1", KeyHash: Hash(pepper, "other")},
	}}
	_, err := NewAuthenticator(repo, pepper).Authenticate(context.Background(), "k")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticator_LookupFailure(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewAuthenticator(&mapRepo{err: boom}, nil).Authenticate(context.Background(), "k")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrUnauthorized)
}

func TestHash(t *testing.T) {
	h := Hash([]byte("p"), "k")
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash([]byte("p"), "k"))
	assert.NotEqual(t, h, Hash([]byte("p"), "k2"))
}
