package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace/db"
	"marketplace/models"

	"gorm.io/gorm"
)

type CommentInput struct {
	User    int64  `json:"user" binding:"required,gt=0"`
	Message string `json:"message" binding:"required,max=255"`
}

type CommentService struct {
	orm *gorm.DB
}

func NewCommentService(orm *gorm.DB) *CommentService {
	return &CommentService{orm: orm}
}

func (s *CommentService) withUsers(q *gorm.DB) *gorm.DB {
	return q.Preload("User").Preload("Author")
}

func (s *CommentService) List(ctx context.Context, p Page) (PageResult[models.Comment], error) {
	var res PageResult[models.Comment]
	q := db.GetReadOnlyDB(ctx, s.orm).Model(&models.Comment{})
	if err := q.Session(&gorm.Session{}).Count(&res.Count).Error; err != nil {
		return res, fmt.Errorf("count comments: %w", err)
	}
	err := s.withUsers(q).Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Size).Find(&res.Results).Error
	if err != nil {
		return res, fmt.Errorf("list comments: %w", err)
	}
	return res, nil
}

// ForUser lists comments left about userID, newest first.
func (s *CommentService) ForUser(ctx context.Context, userID int64) ([]models.Comment, error) {
	var count int64
	if err := db.GetReadOnlyDB(ctx, s.orm).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	comments := []models.Comment{}
	err := s.withUsers(db.GetReadOnlyDB(ctx, s.orm)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments for user %d: %w", userID, err)
	}
	return comments, nil
}

func (s *CommentService) Get(ctx context.Context, id int64) (*models.Comment, error) {
	var comment models.Comment
	err := s.withUsers(db.GetReadOnlyDB(ctx, s.orm)).First(&comment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load comment %d: %w", id, err)
	}
	return &comment, nil
}

// Create stores a comment written by authorID.
func (s *CommentService) Create(ctx context.Context, authorID int64, in CommentInput) (*models.Comment, error) {
	in.Message = strings.TrimSpace(in.Message)
	v := structErrors(in)
	if _, failed := v.Fields["user"]; !failed {
		var count int64
		if err := db.GetReadOnlyDB(ctx, s.orm).Model(&models.User{}).Where("id = ?", in.User).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("check user: %w", err)
		}
		if count == 0 {
			v.Add("user", fmt.Sprintf("invalid pk \"%d\" - object does not exist", in.User))
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	comment := &models.Comment{Message: in.Message, UserID: in.User, AuthorID: authorID}
	if err := db.GetWriteDB(ctx, s.orm).Omit("User", "Author").Create(comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return s.Get(ctx, comment.ID)
}

// Delete removes a comment written by authorID.
func (s *CommentService) Delete(ctx context.Context, authorID, id int64) error {
	res := db.GetWriteDB(ctx, s.orm).Where("id = ? AND author_id = ?", id, authorID).Delete(&models.Comment{})
	if res.Error != nil {
		return fmt.Errorf("delete comment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
