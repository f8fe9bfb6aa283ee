package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stocktrail/stocktrail/internal/adapters/sqlite/gormsqlite"
	"github.com/stocktrail/stocktrail/internal/core/domain"
)

type userModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string    `gorm:"column:email;not null"`
	Username     string    `gorm:"column:username;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	FullName     string    `gorm:"column:full_name;not null"`
	Role         string    `gorm:"column:role;not null"`
	Active       bool      `gorm:"column:active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (userModel) TableName() string {
	return "users"
}

type UserRepository struct {
	db *gormsqlite.DB
}

func NewUserRepository(db *gormsqlite.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	model := userModel{
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		FullName:     user.FullName,
		Role:         string(user.Role),
		Active:       user.Active,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		// Pre-check so the caller gets a precise duplicate error; the
		// unique constraints remain the backstop under concurrency.
		var existing userModel
		err := tx.Where("email = ? OR username = ?", user.Email, user.Username).First(&existing).Error
		switch {
		case err == nil:
			if existing.Email == user.Email {
				return domain.ErrDuplicateEmail
			}
			return domain.ErrDuplicateUsername
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("check existing user: %w", err)
		}

		if err := tx.Create(&model).Error; err != nil {
			if isUniqueViolation(err, "users.email") {
				return domain.ErrDuplicateEmail
			}
			if isUniqueViolation(err, "users.username") {
				return domain.ErrDuplicateUsername
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	return toDomainUser(model), nil
}

func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (domain.User, error) {
	var model userModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}

	return toDomainUser(model), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	var model userModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("find user by id: %w", err)
	}

	return toDomainUser(model), nil
}

func toDomainUser(model userModel) domain.User {
	return domain.User{
		ID:           model.ID,
		Email:        model.Email,
		Username:     model.Username,
		PasswordHash: model.PasswordHash,
		FullName:     model.FullName,
		Role:         domain.Role(model.Role),
		Active:       model.Active,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}
