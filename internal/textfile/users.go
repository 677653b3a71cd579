package textfile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// userStore implements types.UserStore over accounts.txt.
type userStore struct {
	b *Backend
}

// load parses accounts.txt in file order. The caller must hold b.mu.
func (s *userStore) load() ([]types.User, error) {
	path := s.b.accountsPath()
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(lines))
	for i, line := range lines {
		u, err := types.ParseUserLine(line)
		if err != nil {
			s.b.log.Debug("skipping account line",
				zap.String("file", path), zap.Int("line", i+1), zap.Error(err))
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *userStore) save(users []types.User) error {
	lines := make([]string, len(users))
	for i, u := range users {
		lines[i] = u.Line()
	}
	return writeLines(s.b.accountsPath(), lines)
}

func userIndex(users []types.User, username string) int {
	key := types.UsernameKey(username)
	for i, u := range users {
		if u.Key() == key {
			return i
		}
	}
	return -1
}

func (s *userStore) Exists(ctx context.Context, username string) (bool, error) {
	_, err := s.Get(ctx, username)
	if errors.Is(err, types.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *userStore) Get(ctx context.Context, username string) (types.User, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if err := s.b.check(ctx); err != nil {
		return types.User{}, err
	}

	users, err := s.load()
	if err != nil {
		return types.User{}, err
	}
	i := userIndex(users, username)
	if i < 0 {
		return types.User{}, types.ErrUserNotFound
	}
	return users[i], nil
}

func (s *userStore) List(ctx context.Context) ([]types.User, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if err := s.b.check(ctx); err != nil {
		return nil, err
	}
	return s.load()
}

func (s *userStore) Add(ctx context.Context, u types.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}

	users, err := s.load()
	if err != nil {
		return err
	}
	if userIndex(users, u.Username) >= 0 {
		return types.ErrUsernameTaken
	}
	return s.save(append(users, u))
}

func (s *userStore) Update(ctx context.Context, oldUsername string, u types.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}

	users, err := s.load()
	if err != nil {
		return err
	}
	i := userIndex(users, oldUsername)
	if i < 0 {
		return types.ErrUserNotFound
	}
	if j := userIndex(users, u.Username); j >= 0 && j != i {
		return types.ErrUsernameTaken
	}
	users[i] = u
	return s.save(users)
}

func (s *userStore) Delete(ctx context.Context, username string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.check(ctx); err != nil {
		return err
	}

	users, err := s.load()
	if err != nil {
		return err
	}
	i := userIndex(users, username)
	if i < 0 {
		return types.ErrUserNotFound
	}
	return s.save(append(users[:i], users[i+1:]...))
}
