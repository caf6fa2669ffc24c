package auth

import (
	"context"
	"database/sql"
	"encoding/json"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindActiveByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select u.id, u.email, u.password_hash, u.full_name, r.name, u.department, r.permissions, u.is_active, u.last_login
		 from users u
		 join roles r on u.role_id = r.id
		 where u.email = $1 and u.is_active = true`, email)

	var (
		u           User
		department  sql.NullString
		permissions []byte
		lastLogin   sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role,
		&department, &permissions, &u.Active, &lastLogin); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if department.Valid {
		u.Department = department.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &u.Permissions); err != nil {
			return nil, err
		}
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	return &u, nil
}

func (s *PGStore) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login = now() where id = $1`, userID)
	return err
}
