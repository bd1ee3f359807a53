package repo

import (
	"context"

	"FileVault/model"

	"gorm.io/gorm"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts the user. A taken username returns ErrDuplicate.
func (s *UserStore) CreateUser(ctx context.Context, user *model.User) error {
	return translateErr(s.db.WithContext(ctx).Create(user).Error)
}

func (s *UserStore) GetUserByName(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("user_name = ?", username).Take(&user).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *UserStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error
	return count, err
}
