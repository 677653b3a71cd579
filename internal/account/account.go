// Package account implements signup, login and the admin user-management
// operations.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// Default administrator seeded by CreateAdmin when no credentials are given.
const (
	DefaultAdminUsername = "VentoAdmin"
	DefaultAdminPassword = "Vento2025"
)

var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
)

// Service manages accounts and keeps each user's products in step with
// renames and deletions.
type Service struct {
	users    types.UserStore
	products types.ProductStore
	log      *zap.Logger
}

// New returns a Service over the given stores.
func New(users types.UserStore, products types.ProductStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, products: products, log: logger.Named("account")}
}

// Signup creates a regular user.
func (s *Service) Signup(ctx context.Context, username, password, confirm string) (types.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	confirm = strings.TrimSpace(confirm)
	if username == "" || password == "" || confirm == "" {
		return types.User{}, ErrMissingFields
	}
	if password != confirm {
		return types.User{}, ErrPasswordMismatch
	}

	u := types.NewUser(username, password, false)
	if err := u.Validate(); err != nil {
		return types.User{}, err
	}
	if err := s.users.Add(ctx, u); err != nil {
		return types.User{}, err
	}
	s.log.Info("user signed up", zap.String("user", u.Username))
	return u, nil
}

// Login verifies credentials and returns the stored account, which carries
// the canonical username casing.
func (s *Service) Login(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return types.User{}, ErrMissingFields
	}
	u, err := s.users.Get(ctx, username)
	if errors.Is(err, types.ErrUserNotFound) {
		s.log.Info("login failed", zap.String("user", username), zap.String("reason", "unknown user"))
		return types.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return types.User{}, err
	}
	if !u.VerifyPassword(password) {
		s.log.Info("login failed", zap.String("user", username), zap.String("reason", "bad password"))
		return types.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Lookup returns the current account for a session, so role changes take
// effect without a new login.
func (s *Service) Lookup(ctx context.Context, username string) (types.User, error) {
	return s.users.Get(ctx, username)
}

// UserInfo is an account as shown to administrators.
type UserInfo struct {
	Username     string `json:"username"`
	CreatedAt    string `json:"createdAt"`
	IsAdmin      bool   `json:"isAdmin"`
	ProductCount int    `json:"productCount"`
}

// Stats counts accounts by role.
type Stats struct {
	Total   int `json:"total"`
	Regular int `json:"regular"`
	Admins  int `json:"admins"`
}

// ListUsers returns every account with its product count.
func (s *Service) ListUsers(ctx context.Context) ([]UserInfo, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserInfo, 0, len(users))
	for _, u := range users {
		n, err := s.products.Count(ctx, u.Username)
		if err != nil {
			return nil, fmt.Errorf("count products for %s: %w", u.Username, err)
		}
		out = append(out, UserInfo{
			Username:     u.Username,
			CreatedAt:    u.CreatedAt,
			IsAdmin:      u.IsAdmin,
			ProductCount: n,
		})
	}
	return out, nil
}

// StatsFor summarizes a user listing.
func StatsFor(users []UserInfo) Stats {
	st := Stats{Total: len(users)}
	for _, u := range users {
		if u.IsAdmin {
			st.Admins++
		} else {
			st.Regular++
		}
	}
	return st
}

// OwnedProduct is a product tagged with its owner, as listed to admins.
type OwnedProduct struct {
	types.Product
	Username string `json:"username"`
}

// AllProducts lists every user's products, grouped by user in account
// order.
func (s *Service) AllProducts(ctx context.Context) ([]OwnedProduct, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []OwnedProduct
	for _, u := range users {
		list, err := s.products.List(ctx, u.Username)
		if err != nil {
			return nil, fmt.Errorf("list products for %s: %w", u.Username, err)
		}
		for _, p := range list {
			out = append(out, OwnedProduct{Product: p, Username: u.Username})
		}
	}
	return out, nil
}

// EditRequest describes an admin edit of one account. An empty Password
// keeps the current one, and a nil IsAdmin keeps the current role.
type EditRequest struct {
	Username string
	Password string
	IsAdmin  *bool
}

// EditUser updates oldUsername per req. Renames move the user's products.
func (s *Service) EditUser(ctx context.Context, oldUsername string, req EditRequest) (types.User, error) {
	cur, err := s.users.Get(ctx, oldUsername)
	if err != nil {
		return types.User{}, err
	}

	next := cur
	next.Username = strings.TrimSpace(req.Username)
	if next.Username == "" {
		next.Username = cur.Username
	}
	if pw := strings.TrimSpace(req.Password); pw != "" {
		next.Password = pw
	}
	if req.IsAdmin != nil {
		next.IsAdmin = *req.IsAdmin
	}
	if err := next.Validate(); err != nil {
		return types.User{}, err
	}

	renamed := next.Username != cur.Username
	if renamed && next.Key() != cur.Key() {
		taken, err := s.users.Exists(ctx, next.Username)
		if err != nil {
			return types.User{}, err
		}
		if taken {
			return types.User{}, types.ErrUsernameTaken
		}
	}
	if renamed {
		if err := s.products.RenameOwner(ctx, cur.Username, next.Username); err != nil {
			return types.User{}, err
		}
	}
	if err := s.users.Update(ctx, cur.Username, next); err != nil {
		if renamed {
			if rerr := s.products.RenameOwner(ctx, next.Username, cur.Username); rerr != nil {
				s.log.Error("restoring product owner", zap.String("user", cur.Username), zap.Error(rerr))
			}
		}
		return types.User{}, err
	}
	s.log.Info("user edited",
		zap.String("user", cur.Username), zap.String("newName", next.Username), zap.Bool("admin", next.IsAdmin))
	return next, nil
}

// DeleteUser removes username and all of its products. actor is the
// signed-in admin; deleting oneself is refused.
func (s *Service) DeleteUser(ctx context.Context, actor, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrMissingFields
	}
	if types.UsernameKey(actor) == types.UsernameKey(username) {
		return ErrSelfDelete
	}
	u, err := s.users.Get(ctx, username)
	if err != nil {
		return err
	}
	if err := s.products.DeleteAllForUser(ctx, u.Username); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	if err := s.users.Delete(ctx, u.Username); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user", u.Username), zap.String("by", actor))
	return nil
}

// CreateAdmin adds an administrator account. Empty credentials fall back
// to the defaults.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (types.User, error) {
	if strings.TrimSpace(username) == "" {
		username = DefaultAdminUsername
	}
	if strings.TrimSpace(password) == "" {
		password = DefaultAdminPassword
	}
	u := types.NewUser(username, password, true)
	if err := u.Validate(); err != nil {
		return types.User{}, err
	}
	if err := s.users.Add(ctx, u); err != nil {
		return types.User{}, err
	}
	s.log.Info("admin created", zap.String("user", u.Username))
	return u, nil
}
