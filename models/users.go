package models

import (
	"time"
)

type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username   string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FirstName  string    `gorm:"size:150" json:"first_name"`
	LastName   string    `gorm:"size:150" json:"last_name"`
	Email      string    `gorm:"size:254" json:"email"`
	Password   string    `gorm:"size:255" json:"-"`
	DateJoined time.Time `gorm:"autoCreateTime" json:"date_joined"`
	UpdatedAt  time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserShort is the public projection of a user embedded in orders,
// comments, chats and messages.
type UserShort struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u User) Short() UserShort {
	return UserShort{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}

// Profile is what the owner sees at /user/.
type Profile struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	DateJoined time.Time `json:"date_joined"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		DateJoined: u.DateJoined,
	}
}
