package pg

import (
	"context"

	"journalflow.org/internal/auth"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/roles"
)

type roleRepo repos

func (r roleRepo) Assign(ctx context.Context, a roles.Assignment) (roles.Assignment, error) {
	if r.q == nil {
		return roles.Assignment{}, errUnavailable
	}
	var contextID *string
	out := roles.Assignment{UserID: a.UserID, Role: a.Role}
	err := r.q.QueryRowContext(ctx, `
		insert into user_roles (user_id, role, context_id, created_at)
		values ($1, $2, $3, coalesce($4, now()))
		returning context_id, created_at
	`, a.UserID, string(a.Role), nullIfEmpty(a.ContextID), nullTime(a.CreatedAt)).Scan(&contextID, &out.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return roles.Assignment{}, roles.ErrAlreadyAssigned
			case pgErrForeignKeyViolation:
				if pgErr.ConstraintName == "user_roles_user_id_fkey" {
					return roles.Assignment{}, auth.ErrUserNotFound
				}
				return roles.Assignment{}, journal.ErrNotFound
			}
		}
		return roles.Assignment{}, err
	}
	if contextID != nil {
		out.ContextID = *contextID
	}
	return out, nil
}

func (r roleRepo) Revoke(ctx context.Context, userID string, role roles.RolePath, contextID string) error {
	if r.q == nil {
		return errUnavailable
	}
	res, err := r.q.ExecContext(ctx, `
		delete from user_roles
		where user_id = $1 and role = $2 and coalesce(context_id, '') = $3
	`, userID, string(role), contextID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return roles.ErrNotFound
	}
	return nil
}

func (r roleRepo) ListForContext(ctx context.Context, contextID string) ([]roles.Assignment, error) {
	return r.list(ctx, `
		select user_id, role, coalesce(context_id, ''), created_at
		from user_roles
		where coalesce(context_id, '') = $1
		order by user_id, role
	`, contextID)
}

func (r roleRepo) ListForUser(ctx context.Context, userID string) ([]roles.Assignment, error) {
	return r.list(ctx, `
		select user_id, role, coalesce(context_id, ''), created_at
		from user_roles
		where user_id = $1
		order by coalesce(context_id, ''), role
	`, userID)
}

func (r roleRepo) list(ctx context.Context, query string, arg string) ([]roles.Assignment, error) {
	if r.q == nil {
		return nil, errUnavailable
	}
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roles.Assignment
	for rows.Next() {
		var (
			a    roles.Assignment
			role string
		)
		if err := rows.Scan(&a.UserID, &role, &a.ContextID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Role = roles.RolePath(role)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	roles.SortAssignments(out)
	return out, nil
}
