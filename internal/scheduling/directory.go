package scheduling

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MrZacked/Healem/internal/models"
)

// UserInfo is the slice of a user the scheduling core needs: enough to
// validate references and to denormalize display fields at read time.
type UserInfo struct {
	ID             string
	Role           models.Role
	IsActive       bool
	DisplayName    string
	Specialization string
	Email          string
}

// Directory resolves user references. It is the scheduling core's only view
// of the user base.
type Directory interface {
	GetUser(ctx context.Context, id string) (*UserInfo, error)
}

type gormDirectory struct {
	db *gorm.DB
}

// NewDirectory returns the GORM-backed user directory.
func NewDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) GetUser(ctx context.Context, id string) (*UserInfo, error) {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &UserInfo{
		ID:             user.ID,
		Role:           user.Role,
		IsActive:       user.IsActive,
		DisplayName:    user.DisplayName(),
		Specialization: user.Specialization,
		Email:          user.Email,
	}, nil
}
