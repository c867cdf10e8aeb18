// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/crosstalkbot/crosstalk/internal/auth"
	"github.com/crosstalkbot/crosstalk/internal/perm"
	"github.com/crosstalkbot/crosstalk/internal/record"
)

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

var _ = Describe("PostgresStore", func() {
	var store *record.PostgresStore

	BeforeEach(func() {
		var err error
		store, err = record.NewPostgresStore(env.pool, "it_records")
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips records", func() {
		rec := record.Record{"digest": "abc", "salt": "xyz"}
		Expect(store.Set(env.ctx, "alice", rec)).To(Succeed())

		got, err := store.Get(env.ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(rec))

		has, err := store.Has(env.ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(has).To(BeTrue())

		Expect(store.Delete(env.ctx, "alice")).To(Succeed())
		_, err = store.Get(env.ctx, "alice")
		Expect(err).To(MatchError(record.ErrNotFound))
	})

	It("discards writes when the transaction fails", func() {
		Expect(store.Set(env.ctx, "keep", record.Record{"v": "original"})).To(Succeed())

		boom := errors.New("boom")
		err := store.Update(env.ctx, func(ctx context.Context, tx record.Tx) error {
			if err := tx.Set(ctx, "keep", record.Record{"v": "clobbered"}); err != nil {
				return err
			}
			return boom
		})
		Expect(err).To(MatchError(boom))

		got, err := store.Get(env.ctx, "keep")
		Expect(err).NotTo(HaveOccurred())
		Expect(got["v"]).To(Equal("original"))
	})

	It("serializes concurrent updates to one bucket", func() {
		Expect(store.Set(env.ctx, "counter", record.Record{"n": float64(0)})).To(Succeed())

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = store.Update(env.ctx, func(ctx context.Context, tx record.Tx) error {
					rec, err := tx.Get(ctx, "counter")
					if err != nil {
						return err
					}
					rec["n"] = rec["n"].(float64) + 1
					return tx.Set(ctx, "counter", rec)
				})
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			Expect(err).NotTo(HaveOccurred(), fmt.Sprintf("worker %d", i))
		}

		got, err := store.Get(env.ctx, "counter")
		Expect(err).NotTo(HaveOccurred())
		Expect(got["n"]).To(Equal(float64(workers)))
	})
})

var _ = Describe("Credential engine over PostgreSQL", func() {
	newStores := func() (*auth.CredentialStore, *perm.Store) {
		accounts, err := record.NewPostgresStore(env.pool, "it_accounts")
		Expect(err).NotTo(HaveOccurred())
		blacklistData, err := record.NewPostgresStore(env.pool, "it_blacklist")
		Expect(err).NotTo(HaveOccurred())
		permData, err := record.NewPostgresStore(env.pool, "it_permissions")
		Expect(err).NotTo(HaveOccurred())

		perms, err := perm.NewStore(env.ctx, permData, nil)
		Expect(err).NotTo(HaveOccurred())
		blacklist, err := auth.NewBlacklist(env.ctx, blacklistData, nil)
		Expect(err).NotTo(HaveOccurred())
		creds, err := auth.NewCredentialStore(env.ctx, accounts, blacklist, perms, auth.NewSHA512Hasher(), nil)
		Expect(err).NotTo(HaveOccurred())
		return creds, perms
	}

	It("bootstraps a superadmin once and keeps credentials across reopen", func() {
		creds, perms := newStores()

		exists, err := creds.UserExists(env.ctx, auth.SuperadminAccount)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())

		flag, ok, err := perms.GetUserOption(env.ctx, auth.SuperadminAccount, perm.OptionSuperadmin)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(flag).To(Equal(true))

		created, err := creds.CreateUser(env.ctx, "alice", "uncommon-pass-9")
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		// A second engine over the same database sees the same accounts
		// and does not bootstrap again.
		creds2, _ := newStores()
		ok, err = creds2.CheckLogin(env.ctx, "alice", "uncommon-pass-9")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		changed, err := creds2.ChangePassword(env.ctx, "alice", "uncommon-pass-9", "even-less-common-13")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())

		ok, err = creds.CheckLogin(env.ctx, "alice", "even-less-common-13")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("persists blacklist entries", func() {
		creds, _ := newStores()

		banned, err := creds.Blacklist().PasswordBlacklisted(env.ctx, "password", "anyone")
		Expect(err).NotTo(HaveOccurred())
		Expect(banned).To(BeTrue())

		added, err := creds.Blacklist().BlacklistPassword(env.ctx, "hunter2", "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(BeTrue())

		creds2, _ := newStores()
		banned, err = creds2.Blacklist().PasswordBlacklisted(env.ctx, "hunter2", "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(banned).To(BeTrue())
	})
})

var _ = Describe("Permission engine over PostgreSQL", func() {
	var (
		perms   *perm.Store
		checker *perm.Checker
	)

	BeforeEach(func() {
		permData, err := record.NewPostgresStore(env.pool, "it_perm_engine")
		Expect(err).NotTo(HaveOccurred())
		perms, err = perm.NewStore(env.ctx, permData, nil)
		Expect(err).NotTo(HaveOccurred())
		checker, err = perm.NewChecker(perms, true, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("grants baseline permissions to anonymous callers", func() {
		allowed, err := checker.Check(env.ctx, "auth.register", nil, perm.UnscopedSource(), "irc")
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue())

		allowed, err = checker.Check(env.ctx, "admin.shutdown", nil, perm.UnscopedSource(), "irc")
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse())
	})

	It("evaluates inheritance with denies across the chain", func() {
		_, err := perms.CreateGroup(env.ctx, "staff")
		Expect(err).NotTo(HaveOccurred())
		_, err = perms.AddGroupPermission(env.ctx, "staff", "admin.*", "", perm.UnscopedSource())
		Expect(err).NotTo(HaveOccurred())
		_, err = perms.AddGroupPermission(env.ctx, "staff", "^admin.shutdown", "", perm.UnscopedSource())
		Expect(err).NotTo(HaveOccurred())

		_, err = perms.CreateGroup(env.ctx, "ops")
		Expect(err).NotTo(HaveOccurred())
		_, err = perms.SetGroupInheritance(env.ctx, "ops", "staff")
		Expect(err).NotTo(HaveOccurred())

		_, err = perms.CreateUser(env.ctx, "bob")
		Expect(err).NotTo(HaveOccurred())
		_, err = perms.SetUserGroup(env.ctx, "bob", "ops")
		Expect(err).NotTo(HaveOccurred())

		opts := perm.DefaultEvalOptions()
		allowed, err := perms.UserHasPermission(env.ctx, "bob", "admin.wall", "irc", perm.UnscopedSource(), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue())

		allowed, err = perms.UserHasPermission(env.ctx, "bob", "admin.shutdown", "irc", perm.UnscopedSource(), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse())
	})

	It("honors the superadmin option through the checker", func() {
		_, err := perms.CreateUser(env.ctx, "root")
		Expect(err).NotTo(HaveOccurred())
		_, err = perms.SetUserOption(env.ctx, "root", perm.OptionSuperadmin, true)
		Expect(err).NotTo(HaveOccurred())

		session := auth.NewSession()
		session.Authorized = true
		session.AuthName = "root"

		allowed, err := checker.Check(env.ctx, "absolutely.anything", session, perm.UnscopedSource(), "irc")
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue())
	})
})
