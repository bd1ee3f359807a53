package model

import "time"

type User struct {
	ID uint64 `gorm:"primaryKey"`

	UserName string `gorm:"column:user_name;type:varchar(50);not null;unique"`

	Password string `gorm:"column:hashed_password;type:varchar(255);not null" json:"-"`

	Email    string `gorm:"column:email;type:varchar(255);not null;default:''"`
	FullName string `gorm:"column:full_name;type:varchar(120);not null;default:''"`

	CreatedAt time.Time
}

// TableName returns the database table name.
func (User) TableName() string {
	return "user_info"
}
