package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace/db"
	"marketplace/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChatInput struct {
	Order    int64 `json:"order" binding:"required,gt=0"`
	Producer int64 `json:"producer" binding:"required,gt=0"`
	Consumer int64 `json:"consumer" binding:"required,gt=0,nefield=Producer"`
}

type ChatService struct {
	orm *gorm.DB
}

func NewChatService(orm *gorm.DB) *ChatService {
	return &ChatService{orm: orm}
}

func (s *ChatService) withRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Order").Preload("Producer").Preload("Consumer")
}

// List returns the chats userID takes part in, newest first.
func (s *ChatService) List(ctx context.Context, userID int64, p Page) (PageResult[models.Chat], error) {
	var res PageResult[models.Chat]
	q := db.GetReadOnlyDB(ctx, s.orm).Model(&models.Chat{}).
		Where("producer_id = ? OR consumer_id = ?", userID, userID)
	if err := q.Session(&gorm.Session{}).Count(&res.Count).Error; err != nil {
		return res, fmt.Errorf("count chats: %w", err)
	}
	err := s.withRelations(q).Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Size).Find(&res.Results).Error
	if err != nil {
		return res, fmt.Errorf("list chats: %w", err)
	}
	return res, nil
}

// Get returns a chat userID takes part in.
func (s *ChatService) Get(ctx context.Context, userID, id int64) (*models.Chat, error) {
	var chat models.Chat
	err := s.withRelations(db.GetReadOnlyDB(ctx, s.orm)).First(&chat, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chat %d: %w", id, err)
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotFound
	}
	return &chat, nil
}

// Open returns the chat for the (order, producer, consumer) triple,
// creating it on first use. The caller must be one of the two users.
func (s *ChatService) Open(ctx context.Context, userID int64, in ChatInput) (*models.Chat, bool, error) {
	v := structErrors(in)
	if len(v.Fields) == 0 && userID != in.Producer && userID != in.Consumer {
		v.Add("non_field_errors", "you must be the producer or the consumer of the chat")
	}
	if err := v.Err(); err != nil {
		return nil, false, err
	}

	read := db.GetReadOnlyDB(ctx, s.orm)
	var count int64
	if err := read.Model(&models.Order{}).Where("id = ?", in.Order).Count(&count).Error; err != nil {
		return nil, false, fmt.Errorf("check order: %w", err)
	}
	if count == 0 {
		v.Add("order", fmt.Sprintf("invalid pk \"%d\" - object does not exist", in.Order))
	}
	var users int64
	if err := read.Model(&models.User{}).Where("id IN ?", []int64{in.Producer, in.Consumer}).Count(&users).Error; err != nil {
		return nil, false, fmt.Errorf("check users: %w", err)
	}
	if users != 2 {
		v.Add("non_field_errors", "producer or consumer does not exist")
	}
	if err := v.Err(); err != nil {
		return nil, false, err
	}

	triple := models.Chat{OrderID: in.Order, ProducerID: in.Producer, ConsumerID: in.Consumer}
	write := db.GetWriteDB(ctx, s.orm)
	var chat models.Chat
	err := write.Where(&triple).First(&chat).Error
	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		chat = triple
		if err := write.Omit("Order", "Producer", "Consumer").Create(&chat).Error; err != nil {
			// lost a race against a concurrent open of the same triple
			if err2 := write.Where(&triple).First(&chat).Error; err2 != nil {
				return nil, false, fmt.Errorf("open chat: %w", err)
			}
		} else {
			created = true
			zap.L().Info("chat created", zap.Int64("chat_id", chat.ID), zap.Int64("order_id", in.Order))
		}
	case err != nil:
		return nil, false, fmt.Errorf("open chat: %w", err)
	}
	loaded, err := s.Get(ctx, userID, chat.ID)
	return loaded, created, err
}

// Messages returns the chat history newest first. Only participants may
// read it.
func (s *ChatService) Messages(ctx context.Context, userID, chatID int64, p Page) (PageResult[models.Message], error) {
	var res PageResult[models.Message]
	if _, err := s.Get(ctx, userID, chatID); err != nil {
		return res, err
	}
	q := db.GetReadOnlyDB(ctx, s.orm).Model(&models.Message{}).Where("chat_id = ?", chatID)
	if err := q.Session(&gorm.Session{}).Count(&res.Count).Error; err != nil {
		return res, fmt.Errorf("count messages: %w", err)
	}
	err := q.Preload("Sender").Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Size).Find(&res.Results).Error
	if err != nil {
		return res, fmt.Errorf("list messages: %w", err)
	}
	return res, nil
}
