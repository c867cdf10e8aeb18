// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/crosstalkbot/crosstalk/internal/record"
)

// Record keys in the blacklist store.
const (
	blacklistGlobalKey = "all"
	blacklistUsersKey  = "users"
)

// defaultBlacklist seeds a fresh blacklist store. The list is the top 20
// most popular passwords of 2013 and is frozen: existing deployments rely
// on exactly these entries being rejected.
var defaultBlacklist = []string{
	"password", "123456", "12345678", "1234", "qwerty",
	"12345", "dragon", "pussy", "baseball", "football",
	"letmein", "monkey", "696969", "abc123", "mustang",
	"michael", "shadow", "master", "jennifer", "111111",
}

// Blacklist stores disallowed passwords, globally and per username. All
// membership checks are case-insensitive.
type Blacklist struct {
	store  record.Store
	logger *slog.Logger
}

// NewBlacklist creates a Blacklist over the given store, seeding the global
// set with the default list when the store is empty.
func NewBlacklist(ctx context.Context, store record.Store, logger *slog.Logger) (*Blacklist, error) {
	if store == nil {
		return nil, oops.Code("AUTH_NIL_STORE").New("blacklist store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Blacklist{store: store, logger: logger}

	seeded := false
	err := store.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		n, err := tx.Len(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Set(ctx, blacklistGlobalKey, record.Record{"passwords": defaultBlacklist}); err != nil {
			return err
		}
		if err := tx.Set(ctx, blacklistUsersKey, record.Record{}); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return nil, oops.Code("AUTH_BLACKLIST_INIT_FAILED").Wrap(err)
	}
	if seeded {
		logger.Info("created password blacklist with the 20 most popular passwords of 2013")
	}

	return b, nil
}

// BlacklistPassword adds a password to the blacklist. An empty username
// targets the global set; otherwise the password is disallowed only for that
// username. Returns false when the password is already present in the
// targeted set.
func (b *Blacklist) BlacklistPassword(ctx context.Context, password, username string) (bool, error) {
	password = strings.ToLower(password)
	username = strings.ToLower(username)

	added := false
	err := b.store.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		if username == "" {
			rec, err := getOrEmpty(ctx, tx, blacklistGlobalKey)
			if err != nil {
				return err
			}
			passwords := record.Strings(rec["passwords"])
			if slices.Contains(passwords, password) {
				return nil
			}
			rec["passwords"] = append(passwords, password)
			added = true
			return tx.Set(ctx, blacklistGlobalKey, rec)
		}

		rec, err := getOrEmpty(ctx, tx, blacklistUsersKey)
		if err != nil {
			return err
		}
		passwords := record.Strings(rec[username])
		if slices.Contains(passwords, password) {
			return nil
		}
		rec[username] = append(passwords, password)
		added = true
		return tx.Set(ctx, blacklistUsersKey, rec)
	})
	if err != nil {
		return false, oops.Code("AUTH_BLACKLIST_WRITE_FAILED").With("username", username).Wrap(err)
	}
	return added, nil
}

// PasswordBlacklisted reports whether a password is disallowed, either
// globally or, when username is non-empty, for that specific username.
func (b *Blacklist) PasswordBlacklisted(ctx context.Context, password, username string) (bool, error) {
	password = strings.ToLower(password)
	username = strings.ToLower(username)

	global, err := b.store.Get(ctx, blacklistGlobalKey)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		return false, oops.Code("AUTH_BLACKLIST_READ_FAILED").Wrap(err)
	}
	if slices.Contains(record.Strings(global["passwords"]), password) {
		return true, nil
	}
	if username == "" {
		return false, nil
	}

	users, err := b.store.Get(ctx, blacklistUsersKey)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		return false, oops.Code("AUTH_BLACKLIST_READ_FAILED").Wrap(err)
	}
	return slices.Contains(record.Strings(users[username]), password), nil
}

func getOrEmpty(ctx context.Context, tx record.Tx, key string) (record.Record, error) {
	rec, err := tx.Get(ctx, key)
	if errors.Is(err, record.ErrNotFound) {
		return record.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
