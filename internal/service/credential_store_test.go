package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/utils"
)

func newTestCredentialStore(t *testing.T) (*CredentialStore, *memProfiles) {
	t.Helper()
	log, _ := test.NewNullLogger()
	profiles := newMemProfiles()
	return NewCredentialStore(profiles, utils.NewPasswordHasher(model.HashSHA256, 0), log), profiles
}

func TestCredentialStore_RegisterThenAuthenticate(t *testing.T) {
	store, profiles := newTestCredentialStore(t)
	ctx := context.Background()

	pairs := []struct{ name, password string }{
		{"alice_01", "correct-password"},
		{"bob_the_builder", "0123456789"},
		{"пользователь", "пароль-на-кириллице"},
	}
	for _, p := range pairs {
		registered, err := store.Register(ctx, p.name, p.password)
		require.NoError(t, err)

		authed, err := store.Authenticate(ctx, p.name, p.password)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, authed.ID)
		assert.Equal(t, p.name, authed.Name)

		cred := profiles.creds[registered.ID]
		assert.NotEqual(t, p.password, cred.HashValue, "password must not be stored in clear")
		assert.NotEmpty(t, cred.Salt)
	}
}

func TestCredentialStore_WrongPasswordAndUnknownNameIndistinguishable(t *testing.T) {
	store, _ := newTestCredentialStore(t)
	ctx := context.Background()

	_, err := store.Register(ctx, "alice_01", "correct-password")
	require.NoError(t, err)

	_, wrongPw := store.Authenticate(ctx, "alice_01", "wrong-password")
	_, unknown := store.Authenticate(ctx, "nobody_here", "correct-password")

	require.Error(t, wrongPw)
	require.Error(t, unknown)
	assert.True(t, errors.Is(wrongPw, apperr.ErrProfileNotFound))
	assert.True(t, errors.Is(unknown, apperr.ErrProfileNotFound))
	assert.Equal(t, wrongPw.Error(), unknown.Error())
}

func TestCredentialStore_DuplicateName(t *testing.T) {
	store, profiles := newTestCredentialStore(t)
	ctx := context.Background()

	_, err := store.Register(ctx, "alice_01", "correct-password")
	require.NoError(t, err)

	_, err = store.Register(ctx, "alice_01", "another-password")
	assert.Equal(t, apperr.KindDuplicateProfile, apperr.KindOf(err))
	assert.Len(t, profiles.byID, 1)

	// The original password still works.
	_, err = store.Authenticate(ctx, "alice_01", "correct-password")
	assert.NoError(t, err)
}

func TestCredentialStore_Exists(t *testing.T) {
	store, _ := newTestCredentialStore(t)
	ctx := context.Background()

	p, err := store.Register(ctx, "alice_01", "correct-password")
	require.NoError(t, err)

	got, err := store.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice_01", got.Name)

	_, err = store.Exists(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrProfileNotFound))
}
