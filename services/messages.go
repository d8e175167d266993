package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace/db"
	"marketplace/models"

	"gorm.io/gorm"
)

var (
	ErrInvalidMessageType = errors.New("unknown message type")
	ErrNotParticipant     = errors.New("sender is not a participant of the chat")
)

// MessageService persists chat messages coming from the realtime gateway.
type MessageService struct {
	orm *gorm.DB
}

func NewMessageService(orm *gorm.DB) *MessageService {
	return &MessageService{orm: orm}
}

// Participant loads a chat and checks that userID takes part in it.
func (s *MessageService) Participant(ctx context.Context, chatID, userID int64) (*models.Chat, error) {
	var chat models.Chat
	err := db.GetReadOnlyDB(ctx, s.orm).First(&chat, chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chat %d: %w", chatID, err)
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return &chat, nil
}

// Create stores one message and returns it with its sender loaded.
func (s *MessageService) Create(ctx context.Context, chatID, senderID int64, text string, messageType models.MessageType) (*models.Message, error) {
	if !messageType.Valid() {
		return nil, ErrInvalidMessageType
	}
	if _, err := s.Participant(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	msg := &models.Message{
		Text:        text,
		ChatID:      chatID,
		SenderID:    senderID,
		MessageType: messageType,
	}
	if err := db.GetWriteDB(ctx, s.orm).Omit("Chat", "Sender").Create(msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := db.GetWriteDB(ctx, s.orm).First(&msg.Sender, senderID).Error; err != nil {
		return nil, fmt.Errorf("load sender: %w", err)
	}
	return msg, nil
}
