// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/crosstalkbot/crosstalk/internal/record"
)

// SuperadminAccount is the bootstrap account created for a fresh install.
// Operators are expected to delete it once their own admin account exists.
const SuperadminAccount = "superadmin"

// Account record field names.
const (
	fieldSalt     = "salt"
	fieldPassword = "password"
)

// PermissionRegistrar creates permission records for accounts. Implemented
// by the permission store; optional so the credential store works when the
// permission subsystem is disabled.
type PermissionRegistrar interface {
	CreateUser(ctx context.Context, username string) (bool, error)
	SetUserOption(ctx context.Context, username, option string, value any) (bool, error)
}

// CredentialStore manages user accounts: registration, login and logout
// session transitions, password changes, and deletion. Usernames are
// case-insensitive and lower-cased before every lookup.
type CredentialStore struct {
	accounts  record.Store
	blacklist *Blacklist
	hasher    Hasher
	logger    *slog.Logger
}

// NewCredentialStore creates a CredentialStore over the given account
// store. If the store is empty, a superadmin account with a generated
// one-time password is created and the password logged once; when a
// registrar is supplied the matching permission record is created with the
// superadmin flag set. A non-empty store that still contains a superadmin
// account draws a standing warning.
func NewCredentialStore(ctx context.Context, accounts record.Store, blacklist *Blacklist, registrar PermissionRegistrar, hasher Hasher, logger *slog.Logger) (*CredentialStore, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_NIL_STORE").New("account store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_HASHER").New("hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CredentialStore{
		accounts:  accounts,
		blacklist: blacklist,
		hasher:    hasher,
		logger:    logger,
	}

	if err := s.bootstrap(ctx, registrar); err != nil {
		return nil, err
	}
	return s, nil
}

// Blacklist returns the password blacklist attached to this store, or nil.
func (s *CredentialStore) Blacklist() *Blacklist {
	return s.blacklist
}

func (s *CredentialStore) bootstrap(ctx context.Context, registrar PermissionRegistrar) error {
	n, err := s.accounts.Len(ctx)
	if err != nil {
		return oops.Code("AUTH_BOOTSTRAP_FAILED").Wrap(err)
	}

	if n > 0 {
		has, err := s.accounts.Has(ctx, SuperadminAccount)
		if err != nil {
			return oops.Code("AUTH_BOOTSTRAP_FAILED").Wrap(err)
		}
		if has {
			s.logger.Warn("superadmin account exists")
			s.logger.Warn("you should remove this account as soon as possible")
		}
		return nil
	}

	s.logger.Info("generating a default auth account and password")
	s.logger.Info("use it to grant permissions to your own account, then delete it")

	password, err := GenerateBootstrapPassword()
	if err != nil {
		return oops.Code("AUTH_BOOTSTRAP_FAILED").Wrap(err)
	}

	created, err := s.CreateUser(ctx, SuperadminAccount, password)
	if err != nil {
		return oops.Code("AUTH_BOOTSTRAP_FAILED").Wrap(err)
	}
	if !created {
		return oops.Code("AUTH_BOOTSTRAP_FAILED").New("superadmin account already present in empty store")
	}

	// The only time a plaintext credential is ever logged.
	s.logger.Info("============================================")
	s.logger.Info("super admin username: " + SuperadminAccount)
	s.logger.Info("super admin password: " + password)
	s.logger.Info("============================================")

	if registrar == nil {
		s.logger.Warn("permission subsystem unavailable; grant superadmin permissions manually")
		return nil
	}

	if created, err := registrar.CreateUser(ctx, SuperadminAccount); err != nil || !created {
		s.logger.Warn("unable to create permission record for the superadmin account")
	}
	if set, err := registrar.SetUserOption(ctx, SuperadminAccount, "superadmin", true); err != nil || !set {
		s.logger.Warn("unable to set the superadmin flag on the superadmin account")
	}
	return nil
}

// CreateUser registers a new account. Returns false if the username is
// already taken. The salt is freshly generated; only the salted hash is
// persisted.
func (s *CredentialStore) CreateUser(ctx context.Context, username, password string) (bool, error) {
	username = strings.ToLower(username)

	created := false
	err := s.accounts.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		has, err := tx.Has(ctx, username)
		if err != nil {
			return err
		}
		if has {
			return nil
		}

		salt, err := GenerateSalt()
		if err != nil {
			return err
		}

		created = true
		return tx.Set(ctx, username, record.Record{
			fieldSalt:     salt,
			fieldPassword: s.hasher.Hash(salt, password),
		})
	})
	if err != nil {
		return false, oops.Code("AUTH_CREATE_USER_FAILED").With("username", username).Wrap(err)
	}
	return created, nil
}

// CheckLogin reports whether password is the valid login for username. Pure
// check: no session state is touched.
func (s *CredentialStore) CheckLogin(ctx context.Context, username, password string) (bool, error) {
	username = strings.ToLower(username)

	rec, err := s.accounts.Get(ctx, username)
	if errors.Is(err, record.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_CHECK_LOGIN_FAILED").With("username", username).Wrap(err)
	}

	salt, _ := rec[fieldSalt].(string)
	digest, _ := rec[fieldPassword].(string)
	return s.hasher.Verify(digest, salt, password), nil
}

// Login authenticates the actor against the named account and, on success,
// marks its session authorized under that account name. Whether the actor
// is already logged in is not checked here; the command layer guards that.
func (s *CredentialStore) Login(ctx context.Context, actor Actor, protocol, username, password string) (bool, error) {
	username = strings.ToLower(username)

	ok, err := s.CheckLogin(ctx, username, password)
	if err != nil || !ok {
		return false, err
	}

	actor.Session().authorize(username)
	s.logger.Debug("actor logged in",
		"actor", actor.Name(),
		"account", username,
		"protocol", protocol,
		"session_id", actor.Session().ID.String())
	return true, nil
}

// Logout clears the actor's session. Returns false if the actor was not
// logged in.
func (s *CredentialStore) Logout(_ context.Context, actor Actor, protocol string) bool {
	session := actor.Session()
	if !session.Authorized {
		return false
	}

	account := session.AuthName
	session.clear()
	s.logger.Debug("actor logged out",
		"actor", actor.Name(),
		"account", account,
		"protocol", protocol,
		"session_id", session.ID.String())
	return true
}

// ChangePassword rotates an account's password. Fails when the account is
// missing or old doesn't verify. Salt and hash are regenerated and replaced
// together in one transaction so they can never pair across generations.
func (s *CredentialStore) ChangePassword(ctx context.Context, username, old, newPassword string) (bool, error) {
	username = strings.ToLower(username)

	changed := false
	err := s.accounts.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		rec, err := tx.Get(ctx, username)
		if errors.Is(err, record.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		salt, _ := rec[fieldSalt].(string)
		digest, _ := rec[fieldPassword].(string)
		if !s.hasher.Verify(digest, salt, old) {
			return nil
		}

		newSalt, err := GenerateSalt()
		if err != nil {
			return err
		}

		changed = true
		return tx.Set(ctx, username, record.Record{
			fieldSalt:     newSalt,
			fieldPassword: s.hasher.Hash(newSalt, newPassword),
		})
	})
	if err != nil {
		return false, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("username", username).Wrap(err)
	}
	return changed, nil
}

// DeleteUser removes an account. Returns false if it doesn't exist.
func (s *CredentialStore) DeleteUser(ctx context.Context, username string) (bool, error) {
	username = strings.ToLower(username)

	deleted := false
	err := s.accounts.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		err := tx.Delete(ctx, username)
		if errors.Is(err, record.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, oops.Code("AUTH_DELETE_USER_FAILED").With("username", username).Wrap(err)
	}
	return deleted, nil
}

// UserExists reports whether an account exists for username.
func (s *CredentialStore) UserExists(ctx context.Context, username string) (bool, error) {
	username = strings.ToLower(username)
	has, err := s.accounts.Has(ctx, username)
	if err != nil {
		return false, oops.Code("AUTH_USER_EXISTS_FAILED").With("username", username).Wrap(err)
	}
	return has, nil
}
