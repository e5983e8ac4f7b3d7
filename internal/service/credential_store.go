// Package service holds the application core: credentials, the movie
// cache, the favorites ledger and the flows composed from them. Services
// speak in apperr kinds and know nothing about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/repository"
	"github.com/EugeneTurkin/fav-movies/internal/utils"
)

// ProfileStore is the persistence the credential store needs.
// *repository.ProfileRepo implements it.
type ProfileStore interface {
	CreateWithCredential(ctx context.Context, p *model.Profile, cred model.PasswordCredential) error
	GetWithCredentialByName(ctx context.Context, name string) (*model.Profile, *model.PasswordCredential, error)
	GetByID(ctx context.Context, id int64) (*model.Profile, error)
}

// CredentialStore registers profiles and checks their passwords.
type CredentialStore struct {
	profiles ProfileStore
	hasher   *utils.PasswordHasher
	log      logrus.FieldLogger

	// dummy is verified against when a name is unknown so that both
	// failure paths do the same hashing work.
	dummy model.PasswordCredential
}

// NewCredentialStore wires a CredentialStore.
func NewCredentialStore(profiles ProfileStore, hasher *utils.PasswordHasher, log logrus.FieldLogger) *CredentialStore {
	dummy, err := hasher.NewCredential("dummy-password")
	if err != nil {
		log.WithError(err).Warn("could not prepare dummy credential")
	}
	return &CredentialStore{profiles: profiles, hasher: hasher, log: log, dummy: dummy}
}

// Register creates a profile and its password credential atomically. A
// taken name fails with DuplicateProfile.
func (s *CredentialStore) Register(ctx context.Context, name, password string) (*model.Profile, error) {
	cred, err := s.hasher.NewCredential(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	p := &model.Profile{Name: name}
	if err := s.profiles.CreateWithCredential(ctx, p, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperr.New(apperr.ErrDuplicateProfile, err)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.log.WithField("profile_id", p.ID).Info("profile registered")
	return p, nil
}

// Authenticate returns the profile whose name and password match. Unknown
// names and wrong passwords both fail with ProfileNotFound.
func (s *CredentialStore) Authenticate(ctx context.Context, name, password string) (*model.Profile, error) {
	p, cred, err := s.profiles.GetWithCredentialByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(s.dummy, password)
			return nil, apperr.New(apperr.ErrProfileNotFound, nil)
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if !s.hasher.Verify(*cred, password) {
		return nil, apperr.New(apperr.ErrProfileNotFound, nil)
	}
	return p, nil
}

// Exists returns the profile with id or fails with ProfileNotFound.
func (s *CredentialStore) Exists(ctx context.Context, id int64) (*model.Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.ErrProfileNotFound, nil)
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}
