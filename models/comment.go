package models

import "time"

// Comment is left by Author about User.
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Message   string    `gorm:"size:255;not null" json:"message"`
	UserID    int64     `gorm:"not null;index" json:"-"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AuthorID  int64     `gorm:"not null;index" json:"-"`
	Author    User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Comment) TableName() string {
	return "comments"
}

type CommentView struct {
	ID        int64     `json:"id"`
	User      UserShort `json:"user"`
	Author    UserShort `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Comment) View() CommentView {
	return CommentView{
		ID:        c.ID,
		User:      c.User.Short(),
		Author:    c.Author.Short(),
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
	}
}
