package models

import "time"

// Chat links one order with the two users talking about it. The triple is
// unique.
type Chat struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64     `gorm:"not null;uniqueIndex:idx_chat_triple" json:"-"`
	Order      Order     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProducerID int64     `gorm:"not null;uniqueIndex:idx_chat_triple;index" json:"-"`
	Producer   User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ConsumerID int64     `gorm:"not null;uniqueIndex:idx_chat_triple;index" json:"-"`
	Consumer   User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Chat) TableName() string {
	return "chats"
}

// HasParticipant reports whether userID is the producer or the consumer.
func (c Chat) HasParticipant(userID int64) bool {
	return c.ProducerID == userID || c.ConsumerID == userID
}

type OrderShort struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type ChatView struct {
	ID        int64      `json:"id"`
	Order     OrderShort `json:"order"`
	Producer  UserShort  `json:"producer"`
	Consumer  UserShort  `json:"consumer"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c Chat) View() ChatView {
	return ChatView{
		ID:        c.ID,
		Order:     OrderShort{ID: c.Order.ID, Title: c.Order.Title},
		Producer:  c.Producer.Short(),
		Consumer:  c.Consumer.Short(),
		CreatedAt: c.CreatedAt,
	}
}
