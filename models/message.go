package models

import (
	"time"
)

type MessageType int16

const (
	MessageTypeText  MessageType = 1
	MessageTypeImage MessageType = 2
)

func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// Message is a chat line. Messages are never updated or deleted.
type Message struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Text        string      `gorm:"type:text;not null" json:"text"`
	ChatID      int64       `gorm:"not null;index:idx_message_chat_created" json:"-"`
	Chat        Chat        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SenderID    int64       `gorm:"not null;index" json:"-"`
	Sender      User        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MessageType MessageType `gorm:"not null" json:"message_type"`
	CreatedAt   time.Time   `gorm:"autoCreateTime;index:idx_message_chat_created" json:"created_at"`
	UpdatedAt   time.Time   `json:"-"`
}

// TableName keeps the plural table name used by raw queries.
func (Message) TableName() string {
	return "messages"
}

// MessageView is the wire shape of a message, both over REST and over the
// chat socket.
type MessageView struct {
	ID          int64       `json:"id"`
	Text        string      `json:"text"`
	Sender      UserShort   `json:"sender"`
	MessageType MessageType `json:"message_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (m Message) View() MessageView {
	return MessageView{
		ID:          m.ID,
		Text:        m.Text,
		Sender:      m.Sender.Short(),
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
}
