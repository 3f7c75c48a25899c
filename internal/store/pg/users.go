package pg

import (
	"context"
	"database/sql"
	"errors"

	"journalflow.org/internal/auth"
)

// userRepo reads the identity provider's users table. The workflow core never
// writes it.
type userRepo repos

const userColumns = `id, name, email, status, registered_at, last_login`

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u          auth.User
		status     sql.NullString
		registered sql.NullTime
		lastLogin  sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &status, &registered, &lastLogin); err != nil {
		return auth.User{}, err
	}
	if status.Valid {
		u.Status = &status.String
	}
	if registered.Valid {
		u.RegisteredAt = &registered.Time
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return u, nil
}

func (r userRepo) GetUser(ctx context.Context, id string) (auth.User, error) {
	return r.one(ctx, `select `+userColumns+` from users where id = $1`, id)
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	return r.one(ctx, `select `+userColumns+` from users where lower(email) = $1`, auth.NormalizeEmail(email))
}

func (r userRepo) one(ctx context.Context, query, arg string) (auth.User, error) {
	if r.q == nil {
		return auth.User{}, errUnavailable
	}
	u, err := scanUser(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, err
}

func (r userRepo) UsersByID(ctx context.Context, ids []string) ([]auth.User, error) {
	if r.q == nil {
		return nil, errUnavailable
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.QueryContext(ctx, `select `+userColumns+` from users where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
