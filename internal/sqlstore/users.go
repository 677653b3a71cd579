package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/vento/pkg/types"
)

type userStore struct {
	b *Backend
}

const userColumns = "username, password, created_at, is_admin"

func scanUser(row rowScanner) (types.User, error) {
	var (
		u     types.User
		admin int
	)
	if err := row.Scan(&u.Username, &u.Password, &u.CreatedAt, &admin); err != nil {
		return types.User{}, err
	}
	u.IsAdmin = admin != 0
	return u, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func (s *userStore) Exists(ctx context.Context, username string) (bool, error) {
	_, err := s.Get(ctx, username)
	if errors.Is(err, types.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *userStore) Get(ctx context.Context, username string) (types.User, error) {
	release, err := s.b.acquire()
	if err != nil {
		return types.User{}, err
	}
	defer release()

	u, err := scanUser(s.b.db.QueryRowContext(ctx,
		s.b.q("SELECT "+userColumns+" FROM users WHERE username_key = ?"), types.UsernameKey(username)))
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, types.ErrUserNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *userStore) List(ctx context.Context) ([]types.User, error) {
	release, err := s.b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.b.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) Add(ctx context.Context, u types.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	return s.b.inTx(ctx, func(tx *sql.Tx) error {
		taken, err := s.keyTaken(ctx, tx, u.Key())
		if err != nil {
			return err
		}
		if taken {
			return types.ErrUsernameTaken
		}
		_, err = tx.ExecContext(ctx,
			s.b.q("INSERT INTO users (username_key, username, password, created_at, is_admin) VALUES (?, ?, ?, ?, ?)"),
			u.Key(), u.Username, u.Password, u.CreatedAt, boolInt(u.IsAdmin))
		if isUniqueViolation(err) {
			return types.ErrUsernameTaken
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

func (s *userStore) Update(ctx context.Context, oldUsername string, u types.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	oldKey := types.UsernameKey(oldUsername)
	return s.b.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := s.keyTaken(ctx, tx, oldKey)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrUserNotFound
		}
		if u.Key() != oldKey {
			taken, err := s.keyTaken(ctx, tx, u.Key())
			if err != nil {
				return err
			}
			if taken {
				return types.ErrUsernameTaken
			}
		}
		_, err = tx.ExecContext(ctx,
			s.b.q("UPDATE users SET username_key = ?, username = ?, password = ?, created_at = ?, is_admin = ? WHERE username_key = ?"),
			u.Key(), u.Username, u.Password, u.CreatedAt, boolInt(u.IsAdmin), oldKey)
		if isUniqueViolation(err) {
			return types.ErrUsernameTaken
		}
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	})
}

func (s *userStore) Delete(ctx context.Context, username string) error {
	release, err := s.b.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := s.b.db.ExecContext(ctx,
		s.b.q("DELETE FROM users WHERE username_key = ?"), types.UsernameKey(username))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res, types.ErrUserNotFound)
}

func (s *userStore) keyTaken(ctx context.Context, tx *sql.Tx, key string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, s.b.q("SELECT COUNT(*) FROM users WHERE username_key = ?"), key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return n > 0, nil
}
