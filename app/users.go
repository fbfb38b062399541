package app

import (
	"context"
	"errors"
	"strings"

	"github.com/ledgerdesk/ledgerdesk/domain/permission"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
)

// ErrInvalidCredentials is returned when authentication fails. The reason
// (unknown email, wrong password, inactive account) is deliberately not
// distinguished to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService manages back-office user accounts and authentication.
type UserService struct {
	users  ports.UserStore
	hasher ports.Hasher
	clock  ports.Clock
	idGen  ports.IDGenerator
	logger zerolog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	users ports.UserStore,
	hasher ports.Hasher,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		clock:  clock,
		idGen:  idGen,
		logger: logger,
	}
}

// CreateUserInput carries the fields for registering a user.
type CreateUserInput struct {
	Email       string
	Name        string
	Password    string
	Permissions []permission.Permission
}

// Create registers a user account with a hashed password.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (ports.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return ports.User{}, ErrValidation{Reason: "email is required"}
	}
	if len(in.Password) < 8 {
		return ports.User{}, ErrValidation{Reason: "password must be at least 8 characters"}
	}
	for _, p := range in.Permissions {
		if !permission.Known(p) {
			return ports.User{}, ErrValidation{Reason: "unknown permission: " + string(p)}
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return ports.User{}, err
	}

	now := s.clock.Now()
	u := ports.User{
		ID:           s.idGen.New(),
		Email:        email,
		Name:         in.Name,
		PasswordHash: hash,
		Permissions:  in.Permissions,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, u); err != nil {
		if isDuplicate(err) {
			return ports.User{}, ErrValidation{Reason: "a user with this email already exists"}
		}
		return ports.User{}, err
	}

	s.logger.Info().
		Str("user_id", u.ID).
		Str("email", u.Email).
		Msg("user created")

	return u, nil
}

// Authenticate verifies credentials and returns the matching active user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (ports.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return ports.User{}, ErrInvalidCredentials
		}
		return ports.User{}, err
	}
	if !u.Active {
		return ports.User{}, ErrInvalidCredentials
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return ports.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateUserInput carries the mutable user fields. Nil fields are left
// unchanged.
type UpdateUserInput struct {
	Name        *string
	Password    *string
	Permissions []permission.Permission
	Active      *bool
}

// Update modifies a user account.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (ports.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return ports.User{}, err
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return ports.User{}, ErrValidation{Reason: "password must be at least 8 characters"}
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return ports.User{}, err
		}
		u.PasswordHash = hash
	}
	if in.Permissions != nil {
		for _, p := range in.Permissions {
			if !permission.Known(p) {
				return ports.User{}, ErrValidation{Reason: "unknown permission: " + string(p)}
			}
		}
		u.Permissions = in.Permissions
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	u.UpdatedAt = s.clock.Now()

	if err := s.users.Update(ctx, u); err != nil {
		return ports.User{}, err
	}
	return u, nil
}

// Delete removes a user account.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (ports.User, error) {
	return s.users.Get(ctx, id)
}

// List returns users with pagination.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]ports.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}
