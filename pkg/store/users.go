package store

import (
	"context"
	"crypto/subtle"
	"time"
)

// CreateUser inserts a new account and returns its id. Duplicate usernames
// fail with ErrDuplicateUser.
func (s *Store) CreateUser(ctx context.Context, username, verifier string, isAdmin bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &User{
		Username:     username,
		PasswordHash: verifier,
		IsAdmin:      isAdmin,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrDuplicateUser
		}
		return 0, err
	}
	return user.ID, nil
}

// VerifyUser authenticates a username/verifier pair. Only active users
// authenticate; every failure mode collapses into ErrInvalidCredentials so
// callers cannot probe for usernames.
func (s *Store) VerifyUser(ctx context.Context, username, verifier string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, convertNotFoundError(err, ErrInvalidCredentials)
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(verifier)) != 1 {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// GetUsername resolves a user id to its username.
func (s *Store) GetUsername(ctx context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return "", convertNotFoundError(err, ErrUserNotFound)
	}
	return user.Username, nil
}

// IsAdmin reports whether the user id has the admin flag. Unknown users
// are not admins.
func (s *Store) IsAdmin(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return false
	}
	return user.IsAdmin
}

// ListUsers returns every account ordered by id ascending.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser sets the admin and active flags. Clearing the admin flag on
// the primary admin is rejected.
func (s *Store) UpdateUser(ctx context.Context, id int64, isAdmin, isActive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == PrimaryAdminID && !isAdmin {
		return ErrProtectedUser
	}

	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_admin":  isAdmin,
			"is_active": isActive,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes an account. The primary admin is protected.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == PrimaryAdminID {
		return ErrProtectedUser
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
