package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/auth"
	"journalflow.org/internal/policy"
	"journalflow.org/internal/roles"
)

// RoleChange identifies the target of AssignRole and RevokeRole. Either
// UserID or Email names the user.
type RoleChange struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ContextID string `json:"context_id"`
}

// JournalUser is one row of the Users & Roles view.
type JournalUser struct {
	auth.User
	Roles []roles.RolePath `json:"roles"`
}

func (c RoleChange) parse() (roles.RolePath, error) {
	if strings.TrimSpace(c.ContextID) == "" {
		return "", newError(KindValidation, "journal is required")
	}
	if strings.TrimSpace(c.UserID) == "" && strings.TrimSpace(c.Email) == "" {
		return "", newError(KindValidation, "user_id or email is required")
	}
	role, err := roles.Parse(c.Role)
	if err != nil {
		return "", err
	}
	if role == roles.Admin {
		return "", newError(KindValidation, "the admin role is site-wide and cannot be assigned in a journal")
	}
	return role, nil
}

func resolveUser(ctx context.Context, r Repos, c RoleChange) (auth.User, error) {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return r.Users().GetUser(ctx, id)
	}
	return r.Users().FindByEmail(ctx, auth.NormalizeEmail(c.Email))
}

// AssignRole grants a role to a user in a journal.
func (s *Service) AssignRole(ctx context.Context, actor string, c RoleChange) (roles.Assignment, error) {
	var out roles.Assignment
	err := s.run(ctx, "assign_role", func(ctx context.Context) error {
		role, err := c.parse()
		if err != nil {
			return err
		}
		var entry activity.Entry
		err = s.store.WithinTx(ctx, func(r Repos) error {
			if err := s.authorize(ctx, r, actor, policy.ManageUsers, policy.Journal(c.ContextID)); err != nil {
				return err
			}
			if _, err := r.Journals().Get(ctx, c.ContextID); err != nil {
				return err
			}
			user, err := resolveUser(ctx, r, c)
			if err != nil {
				return err
			}
			out, err = r.Roles().Assign(ctx, roles.Assignment{
				UserID:    user.ID,
				Role:      role,
				ContextID: c.ContextID,
				CreatedAt: s.now(),
			})
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, activity.Entry{
				ContextID: c.ContextID,
				Category:  activity.CategoryRoles,
				Message:   fmt.Sprintf("%s role assigned to %s", role.Label(), displayName(user)),
				Metadata:  map[string]any{"userId": user.ID, "role": string(role)},
			})
			return err
		})
		if err != nil {
			return err
		}
		s.invalidateUsers(ctx, c.ContextID)
		s.committed(ctx, "roles.assign", entry, map[string]any{"target_user_id": out.UserID, "role": string(role)})
		return nil
	})
	return out, err
}

// RevokeRole removes a role assignment.
func (s *Service) RevokeRole(ctx context.Context, actor string, c RoleChange) error {
	return s.run(ctx, "revoke_role", func(ctx context.Context) error {
		role, err := c.parse()
		if err != nil {
			return err
		}
		var (
			entry activity.Entry
			user  auth.User
		)
		err = s.store.WithinTx(ctx, func(r Repos) error {
			if err := s.authorize(ctx, r, actor, policy.ManageUsers, policy.Journal(c.ContextID)); err != nil {
				return err
			}
			user, err = resolveUser(ctx, r, c)
			if err != nil {
				return err
			}
			if err := r.Roles().Revoke(ctx, user.ID, role, c.ContextID); err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, activity.Entry{
				ContextID: c.ContextID,
				Category:  activity.CategoryRoles,
				Message:   fmt.Sprintf("%s role removed from %s", role.Label(), displayName(user)),
				Metadata:  map[string]any{"userId": user.ID, "role": string(role)},
			})
			return err
		})
		if err != nil {
			return err
		}
		s.invalidateUsers(ctx, c.ContextID)
		s.committed(ctx, "roles.revoke", entry, map[string]any{"target_user_id": user.ID, "role": string(role)})
		return nil
	})
}

// ListJournalUsers returns every user holding a role in the journal, with
// their roles grouped. Results may come from the users cache; the permission
// check always reads the store.
func (s *Service) ListJournalUsers(ctx context.Context, actor, contextID string) ([]JournalUser, error) {
	var out []JournalUser
	err := s.run(ctx, "list_journal_users", func(ctx context.Context) error {
		if strings.TrimSpace(contextID) == "" {
			return newError(KindValidation, "journal is required")
		}
		if err := s.authorize(ctx, s.store, actor, policy.ViewUsers, policy.Journal(contextID)); err != nil {
			return err
		}
		if s.cache != nil {
			cached, ok, err := s.cache.Get(ctx, contextID)
			if err != nil {
				s.log.Warn().Err(err).Str("context_id", contextID).Msg("users cache read failed")
			} else if ok {
				out = cached
				return nil
			}
		}
		if _, err := s.store.Journals().Get(ctx, contextID); err != nil {
			return err
		}
		assignments, err := s.store.Roles().ListForContext(ctx, contextID)
		if err != nil {
			return err
		}
		out, err = s.groupUsers(ctx, assignments)
		if err != nil {
			return err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, contextID, out); err != nil {
				s.log.Warn().Err(err).Str("context_id", contextID).Msg("users cache write failed")
			}
		}
		return nil
	})
	return out, err
}

func (s *Service) groupUsers(ctx context.Context, assignments []roles.Assignment) ([]JournalUser, error) {
	byUser := make(map[string]roles.Set)
	var ids []string
	for _, a := range assignments {
		set, ok := byUser[a.UserID]
		if !ok {
			set = roles.NewSet()
			byUser[a.UserID] = set
			ids = append(ids, a.UserID)
		}
		set.Add(a.Role)
	}
	users, err := s.store.Users().UsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]JournalUser, 0, len(users))
	for _, u := range users {
		out = append(out, JournalUser{User: u, Roles: byUser[u.ID].Slice()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func displayName(u auth.User) string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}
