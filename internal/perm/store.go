// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package perm

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/crosstalkbot/crosstalk/internal/record"
)

// DefaultGroup is the group every new user joins and the group anonymous or
// unauthenticated callers are evaluated against.
const DefaultGroup = "default"

// OptionSuperadmin is the user option that bypasses permission evaluation.
const OptionSuperadmin = "superadmin"

// Record keys in the permission store.
const (
	usersKey  = "users"
	groupsKey = "groups"
)

// baselinePermissions is granted to the default group on first run. It is
// what an unauthenticated stranger may do: manage their own account and use
// the harmless read-only features.
var baselinePermissions = []string{
	"auth.login",
	"auth.logout",
	"auth.register",
	"auth.passwd",
	"bridge.relay",
	"factoids.get.*",
	"urls.shorten",
	"urls.title",
}

// ProtocolScope holds permission nodes limited to one protocol, optionally
// narrowed further to named sources (channels) within that protocol.
type ProtocolScope struct {
	Permissions []string            `json:"permissions,omitempty"`
	Sources     map[string][]string `json:"sources,omitempty"`
}

// Group is a named, inheritable bundle of permission nodes and options.
// Inherit names at most one parent group; the group graph should be acyclic
// but cycles are tolerated by resolution (traversal visits each group once).
type Group struct {
	Permissions []string                  `json:"permissions"`
	Options     map[string]any            `json:"options"`
	Inherit     string                    `json:"inherit,omitempty"`
	Protocols   map[string]*ProtocolScope `json:"protocols,omitempty"`
}

// User is a per-account permission record: direct grants/denies, options,
// and a single group membership used as fallback during evaluation.
type User struct {
	Group       string                    `json:"group"`
	Permissions []string                  `json:"permissions"`
	Options     map[string]any            `json:"options"`
	Protocols   map[string]*ProtocolScope `json:"protocols,omitempty"`
}

// EvalOptions controls user-level permission evaluation.
type EvalOptions struct {
	// CheckGroup falls back to the user's group when the user's own nodes
	// don't resolve the check.
	CheckGroup bool

	// CheckSuperadmin honors the superadmin option as an unconditional
	// grant.
	CheckSuperadmin bool
}

// DefaultEvalOptions enables both group fallback and superadmin checking.
func DefaultEvalOptions() EvalOptions {
	return EvalOptions{CheckGroup: true, CheckSuperadmin: true}
}

// Store persists user and group permission records and resolves permission
// checks over them. All user and group names are case-insensitive.
type Store struct {
	data   record.Store
	logger *slog.Logger
}

// NewStore creates a Store over the given record store. When no groups
// exist yet, the default group is created with the baseline permission set.
func NewStore(ctx context.Context, data record.Store, logger *slog.Logger) (*Store, error) {
	if data == nil {
		return nil, oops.Code("PERM_NIL_STORE").New("record store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{data: data, logger: logger}

	created := false
	err := data.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		groups, err := loadGroups(ctx, tx)
		if err != nil {
			return err
		}
		if len(groups) > 0 {
			return nil
		}
		groups[DefaultGroup] = &Group{
			Permissions: slices.Clone(baselinePermissions),
			Options:     map[string]any{},
		}
		created = true
		return saveGroups(ctx, tx, groups)
	})
	if err != nil {
		return nil, oops.Code("PERM_BOOTSTRAP_FAILED").Wrap(err)
	}
	if created {
		logger.Info("created default permission group", "group", DefaultGroup)
	}

	return s, nil
}

// User operations

// CreateUser creates a permission record for username in the default
// group. Returns false if a record already exists.
func (s *Store) CreateUser(ctx context.Context, username string) (bool, error) {
	username = strings.ToLower(username)
	return s.mutateUsers(ctx, func(users map[string]*User) bool {
		if _, ok := users[username]; ok {
			return false
		}
		users[username] = &User{
			Group:       DefaultGroup,
			Permissions: []string{},
			Options:     map[string]any{OptionSuperadmin: false},
		}
		s.logger.Debug("permission record created", "user", username)
		return true
	})
}

// RemoveUser deletes a user's permission record.
func (s *Store) RemoveUser(ctx context.Context, username string) (bool, error) {
	username = strings.ToLower(username)
	return s.mutateUsers(ctx, func(users map[string]*User) bool {
		if _, ok := users[username]; !ok {
			return false
		}
		delete(users, username)
		return true
	})
}

// SetUserOption sets an option on a user's record. Returns false if the
// user has no record.
func (s *Store) SetUserOption(ctx context.Context, username, option string, value any) (bool, error) {
	username = strings.ToLower(username)
	option = strings.ToLower(option)
	return s.mutateUsers(ctx, func(users map[string]*User) bool {
		u, ok := users[username]
		if !ok {
			return false
		}
		if u.Options == nil {
			u.Options = map[string]any{}
		}
		u.Options[option] = value
		s.logger.Debug("user option set", "user", username, "option", option, "value", value)
		return true
	})
}

// GetUserOption returns an option value. ok is false when either the user
// or the option is absent.
func (s *Store) GetUserOption(ctx context.Context, username, option string) (value any, ok bool, err error) {
	username = strings.ToLower(username)
	option = strings.ToLower(option)

	users, err := s.loadUsersRead(ctx)
	if err != nil {
		return nil, false, err
	}
	u, found := users[username]
	if !found {
		return nil, false, nil
	}
	value, ok = u.Options[option]
	return value, ok, nil
}

// SetUserGroup assigns the user's single group membership.
func (s *Store) SetUserGroup(ctx context.Context, username, group string) (bool, error) {
	username = strings.ToLower(username)
	group = strings.ToLower(group)
	return s.mutateUsers(ctx, func(users map[string]*User) bool {
		u, ok := users[username]
		if !ok {
			return false
		}
		u.Group = group
		return true
	})
}

// AddUserPermission adds a node to the user's direct set, or to the
// protocol/source-scoped set when a protocol (and source) are given.
// Returns false if the node is already present in the targeted set.
func (s *Store) AddUserPermission(ctx context.Context, username, node, protocol string, source Source) (bool, error) {
	username = strings.ToLower(username)
	return s.mutateUsers(ctx, func(users map[string]*User) bool {
		u, ok := users[username]
		if !ok {
			return false
		}
		return addNode(&u.Permissions, &u.Protocols, node, protocol, source)
	})
}

// RemoveUserPermission removes a node from the targeted set. Returns false
// if it wasn't present.
func (s *Store) RemoveUserPermission(ctx context.Context, username, node, protocol string, source Source) (bool, error) {
	username = strings.ToLower(username)
	return s.mutateUsers(ctx, func(users map[string]*User) bool {
		u, ok := users[username]
		if !ok {
			return false
		}
		return removeNode(&u.Permissions, &u.Protocols, node, protocol, source)
	})
}

// Group operations

// CreateGroup creates an empty group. Returns false if it already exists.
func (s *Store) CreateGroup(ctx context.Context, group string) (bool, error) {
	group = strings.ToLower(group)
	return s.mutateGroups(ctx, func(groups map[string]*Group) bool {
		if _, ok := groups[group]; ok {
			return false
		}
		groups[group] = &Group{
			Permissions: []string{},
			Options:     map[string]any{},
		}
		return true
	})
}

// RemoveGroup deletes a group. Users still naming it fall through to
// nothing at evaluation time.
func (s *Store) RemoveGroup(ctx context.Context, group string) (bool, error) {
	group = strings.ToLower(group)
	return s.mutateGroups(ctx, func(groups map[string]*Group) bool {
		if _, ok := groups[group]; !ok {
			return false
		}
		delete(groups, group)
		return true
	})
}

// SetGroupOption sets an option on a group.
func (s *Store) SetGroupOption(ctx context.Context, group, option string, value any) (bool, error) {
	group = strings.ToLower(group)
	option = strings.ToLower(option)
	return s.mutateGroups(ctx, func(groups map[string]*Group) bool {
		g, ok := groups[group]
		if !ok {
			return false
		}
		if g.Options == nil {
			g.Options = map[string]any{}
		}
		g.Options[option] = value
		return true
	})
}

// GetGroupOption returns a group option value. ok is false when either the
// group or the option is absent.
func (s *Store) GetGroupOption(ctx context.Context, group, option string) (value any, ok bool, err error) {
	group = strings.ToLower(group)
	option = strings.ToLower(option)

	groups, err := s.loadGroupsRead(ctx)
	if err != nil {
		return nil, false, err
	}
	g, found := groups[group]
	if !found {
		return nil, false, nil
	}
	value, ok = g.Options[option]
	return value, ok, nil
}

// SetGroupInheritance sets the group's single inheritance parent; an empty
// parent clears it. The parent doesn't have to exist yet, and cycles are
// not rejected here — resolution visits every group at most once.
func (s *Store) SetGroupInheritance(ctx context.Context, group, parent string) (bool, error) {
	group = strings.ToLower(group)
	parent = strings.ToLower(parent)
	return s.mutateGroups(ctx, func(groups map[string]*Group) bool {
		g, ok := groups[group]
		if !ok {
			return false
		}
		g.Inherit = parent
		return true
	})
}

// GetGroupInheritance returns the group's parent name ("" when none). ok is
// false when the group doesn't exist.
func (s *Store) GetGroupInheritance(ctx context.Context, group string) (parent string, ok bool, err error) {
	group = strings.ToLower(group)

	groups, err := s.loadGroupsRead(ctx)
	if err != nil {
		return "", false, err
	}
	g, found := groups[group]
	if !found {
		return "", false, nil
	}
	return g.Inherit, true, nil
}

// AddGroupPermission adds a node to the group's direct set, or to the
// protocol/source-scoped set when given. Returns false if already present.
func (s *Store) AddGroupPermission(ctx context.Context, group, node, protocol string, source Source) (bool, error) {
	group = strings.ToLower(group)
	return s.mutateGroups(ctx, func(groups map[string]*Group) bool {
		g, ok := groups[group]
		if !ok {
			return false
		}
		return addNode(&g.Permissions, &g.Protocols, node, protocol, source)
	})
}

// AddGroupPermissions adds several direct nodes, ignoring duplicates.
func (s *Store) AddGroupPermissions(ctx context.Context, group string, nodes []string) error {
	for _, node := range nodes {
		if _, err := s.AddGroupPermission(ctx, group, node, "", UnscopedSource()); err != nil {
			return err
		}
	}
	return nil
}

// RemoveGroupPermission removes a node from the targeted set.
func (s *Store) RemoveGroupPermission(ctx context.Context, group, node, protocol string, source Source) (bool, error) {
	group = strings.ToLower(group)
	return s.mutateGroups(ctx, func(groups map[string]*Group) bool {
		g, ok := groups[group]
		if !ok {
			return false
		}
		return removeNode(&g.Permissions, &g.Protocols, node, protocol, source)
	})
}

// Evaluation

// UserHasPermission evaluates a permission for a named account. Superadmins
// pass unconditionally when opts.CheckSuperadmin is set. Otherwise the
// user's effective node set (direct plus protocol- and source-scoped) is
// matched, falling back to the user's group when opts.CheckGroup is set.
// Unknown users resolve to false without error.
func (s *Store) UserHasPermission(ctx context.Context, username, permission, protocol string, source Source, opts EvalOptions) (bool, error) {
	username = strings.ToLower(username)
	permission = strings.ToLower(permission)
	protocol = strings.ToLower(protocol)

	users, err := s.loadUsersRead(ctx)
	if err != nil {
		return false, err
	}
	u, ok := users[username]
	if !ok {
		return false, nil
	}

	if opts.CheckSuperadmin {
		if flag, ok := u.Options[OptionSuperadmin].(bool); ok && flag {
			return true, nil
		}
	}

	nodes := effectiveNodes(u.Permissions, u.Protocols, protocol, source)
	if ComparePermissions(permission, nodes, DefaultMatchOptions()) {
		return true, nil
	}

	if opts.CheckGroup {
		group := u.Group
		if group == "" {
			group = DefaultGroup
		}
		return s.GroupHasPermission(ctx, group, permission, protocol, source)
	}
	return false, nil
}

// GroupHasPermission evaluates a permission against a group and its
// inheritance chain. Traversal is iterative over a visited set: each group
// contributes its effective nodes once, and re-encountering a group (a
// cycle, or a diamond) just stops that branch. The accumulated set is then
// matched as one unit so a deny anywhere in the chain still wins.
func (s *Store) GroupHasPermission(ctx context.Context, group, permission, protocol string, source Source) (bool, error) {
	group = strings.ToLower(group)
	permission = strings.ToLower(permission)
	protocol = strings.ToLower(protocol)

	groups, err := s.loadGroupsRead(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := groups[group]; !ok {
		return false, nil
	}

	var nodes []string
	visited := make(map[string]bool)
	for name := group; name != "" && !visited[name]; {
		visited[name] = true
		g, ok := groups[name]
		if !ok {
			break
		}
		nodes = append(nodes, effectiveNodes(g.Permissions, g.Protocols, protocol, source)...)
		name = strings.ToLower(g.Inherit)
	}

	return ComparePermissions(permission, nodes, DefaultMatchOptions()), nil
}

// effectiveNodes unions direct, protocol-scoped, and source-scoped nodes.
func effectiveNodes(direct []string, protos map[string]*ProtocolScope, protocol string, source Source) []string {
	nodes := slices.Clone(direct)
	if protocol == "" || protos == nil {
		return nodes
	}
	scope, ok := protos[protocol]
	if !ok || scope == nil {
		return nodes
	}
	nodes = append(nodes, scope.Permissions...)
	if name, scoped := source.Scoped(); scoped {
		nodes = append(nodes, scope.Sources[name]...)
	}
	return nodes
}

// addNode inserts node into the set selected by protocol and source.
func addNode(direct *[]string, protos *map[string]*ProtocolScope, node, protocol string, source Source) bool {
	node = strings.ToLower(node)
	protocol = strings.ToLower(protocol)

	if protocol == "" {
		if slices.Contains(*direct, node) {
			return false
		}
		*direct = append(*direct, node)
		return true
	}

	if *protos == nil {
		*protos = map[string]*ProtocolScope{}
	}
	scope := (*protos)[protocol]
	if scope == nil {
		scope = &ProtocolScope{}
		(*protos)[protocol] = scope
	}

	if name, scoped := source.Scoped(); scoped {
		if scope.Sources == nil {
			scope.Sources = map[string][]string{}
		}
		if slices.Contains(scope.Sources[name], node) {
			return false
		}
		scope.Sources[name] = append(scope.Sources[name], node)
		return true
	}

	if slices.Contains(scope.Permissions, node) {
		return false
	}
	scope.Permissions = append(scope.Permissions, node)
	return true
}

// removeNode removes node from the set selected by protocol and source.
func removeNode(direct *[]string, protos *map[string]*ProtocolScope, node, protocol string, source Source) bool {
	node = strings.ToLower(node)
	protocol = strings.ToLower(protocol)

	if protocol == "" {
		i := slices.Index(*direct, node)
		if i < 0 {
			return false
		}
		*direct = slices.Delete(*direct, i, i+1)
		return true
	}

	scope := (*protos)[protocol]
	if scope == nil {
		return false
	}

	if name, scoped := source.Scoped(); scoped {
		i := slices.Index(scope.Sources[name], node)
		if i < 0 {
			return false
		}
		scope.Sources[name] = slices.Delete(scope.Sources[name], i, i+1)
		return true
	}

	i := slices.Index(scope.Permissions, node)
	if i < 0 {
		return false
	}
	scope.Permissions = slices.Delete(scope.Permissions, i, i+1)
	return true
}

// Persistence plumbing

func (s *Store) mutateUsers(ctx context.Context, fn func(users map[string]*User) bool) (bool, error) {
	changed := false
	err := s.data.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		users, err := loadUsers(ctx, tx)
		if err != nil {
			return err
		}
		if changed = fn(users); !changed {
			return nil
		}
		return saveUsers(ctx, tx, users)
	})
	if err != nil {
		return false, oops.Code("PERM_STORE_FAILED").With("record", usersKey).Wrap(err)
	}
	return changed, nil
}

func (s *Store) mutateGroups(ctx context.Context, fn func(groups map[string]*Group) bool) (bool, error) {
	changed := false
	err := s.data.Update(ctx, func(ctx context.Context, tx record.Tx) error {
		groups, err := loadGroups(ctx, tx)
		if err != nil {
			return err
		}
		if changed = fn(groups); !changed {
			return nil
		}
		return saveGroups(ctx, tx, groups)
	})
	if err != nil {
		return false, oops.Code("PERM_STORE_FAILED").With("record", groupsKey).Wrap(err)
	}
	return changed, nil
}

func (s *Store) loadUsersRead(ctx context.Context) (map[string]*User, error) {
	users, err := loadUsers(ctx, s.data)
	if err != nil {
		return nil, oops.Code("PERM_STORE_FAILED").With("record", usersKey).Wrap(err)
	}
	return users, nil
}

func (s *Store) loadGroupsRead(ctx context.Context) (map[string]*Group, error) {
	groups, err := loadGroups(ctx, s.data)
	if err != nil {
		return nil, oops.Code("PERM_STORE_FAILED").With("record", groupsKey).Wrap(err)
	}
	return groups, nil
}

func loadUsers(ctx context.Context, tx record.Tx) (map[string]*User, error) {
	rec, err := tx.Get(ctx, usersKey)
	if errors.Is(err, record.ErrNotFound) {
		return map[string]*User{}, nil
	}
	if err != nil {
		return nil, err
	}
	users := map[string]*User{}
	if err := record.Unmarshal(rec, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func saveUsers(ctx context.Context, tx record.Tx, users map[string]*User) error {
	rec, err := record.Marshal(users)
	if err != nil {
		return err
	}
	return tx.Set(ctx, usersKey, rec)
}

func loadGroups(ctx context.Context, tx record.Tx) (map[string]*Group, error) {
	rec, err := tx.Get(ctx, groupsKey)
	if errors.Is(err, record.ErrNotFound) {
		return map[string]*Group{}, nil
	}
	if err != nil {
		return nil, err
	}
	groups := map[string]*Group{}
	if err := record.Unmarshal(rec, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func saveGroups(ctx context.Context, tx record.Tx, groups map[string]*Group) error {
	rec, err := record.Marshal(groups)
	if err != nil {
		return err
	}
	return tx.Set(ctx, groupsKey, rec)
}
