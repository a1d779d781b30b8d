package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-records-service/internal/domain/user"
)

// UserRepo implements the user Repository interface on top of GORM.
// A UserRepo is bound to one session; obtain it through Store.WithSession.
type UserRepo struct {
	db  *gorm.DB    // Session-scoped handle (a transaction)
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepo creates a new instance of UserRepo bound to db.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// Create inserts a new user into the database and returns the generated ID.
func (r *UserRepo) Create(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}

	model, err := toSchema(u)
	if err != nil {
		return 0, err
	}
	model.UserID = 0

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("unique constraint rejected user insert", zap.String("email", u.Email))
			return 0, fmt.Errorf("%w: %s", user.ErrEmailTaken, u.Email)
		}
		r.log.Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	r.log.Info("user created in db", zap.Int64("id", model.UserID))
	return model.UserID, nil
}

// Update replaces every mutable column of an existing user.
// Columns absent from u are written as NULL (or an empty list), never preserved.
func (r *UserRepo) Update(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}

	model, err := toSchema(u)
	if err != nil {
		return 0, err
	}

	res := r.db.WithContext(ctx).
		Model(&UserSchema{}).
		Where("user_id = ?", u.ID).
		Updates(map[string]any{
			"user_name":       model.UserName,
			"user_email":      model.UserEmail,
			"age":             model.Age,
			"recommendations": model.Recommendations,
			"zip_code":        model.ZipCode,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			r.log.Warn("unique constraint rejected user update", zap.Int64("id", u.ID), zap.String("email", u.Email))
			return 0, fmt.Errorf("%w: %s", user.ErrEmailTaken, u.Email)
		}
		r.log.Error("failed to update user in db", zap.Error(res.Error), zap.Int64("id", u.ID))
		return 0, fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: id=%d", user.ErrNotFound, u.ID)
	}

	r.log.Info("user updated in db", zap.Int64("id", u.ID))
	return u.ID, nil
}

// Delete removes a user from the database by ID.
func (r *UserRepo) Delete(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", id).Delete(&UserSchema{})
	if res.Error != nil {
		r.log.Error("failed to delete user in db", zap.Error(res.Error), zap.Int64("id", id))
		return 0, fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: id=%d", user.ErrNotFound, id)
	}

	r.log.Info("user deleted in db", zap.Int64("id", id))
	return id, nil
}

// GetByID retrieves a user from the database by their unique ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("user_id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, fmt.Errorf("%w: id=%d", user.ErrNotFound, id)
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toDomain(&model)
}

// GetByEmail retrieves a user by exact email match.
// It returns nil, nil when no user has the email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("user_email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found by email", zap.String("email", email))
			return nil, nil
		}
		r.log.Error("failed to get user by email from db", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return toDomain(&model)
}

// List retrieves every user in store order.
func (r *UserRepo) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, 0, len(models))
	for i := range models {
		u, err := toDomain(&models[i])
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	return users, nil
}

// isUniqueViolation reports whether err was raised by a unique index.
// Drivers without error translation are matched on their message.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
