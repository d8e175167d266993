package services

import (
	"context"
	"fmt"

	"marketplace/db"
	"marketplace/models"

	"gorm.io/gorm"
)

type CategoryService struct {
	orm *gorm.DB
}

func NewCategoryService(orm *gorm.DB) *CategoryService {
	return &CategoryService{orm: orm}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := db.GetReadOnlyDB(ctx, s.orm).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}
