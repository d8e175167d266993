package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"marketplace/db"
	"marketplace/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderForm holds the scalar fields of a multipart order payload. Nil means
// the field was not sent.
type OrderForm struct {
	Title       *string
	Description *string
	Price       *string
	Category    *string
	// Images is the comma separated list of image ids to keep on update.
	Images *string
}

type OrderService struct {
	orm     *gorm.DB
	storage FileStorage
}

func NewOrderService(orm *gorm.DB, storage FileStorage) *OrderService {
	return &OrderService{orm: orm, storage: storage}
}

func (s *OrderService) withRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Author").Preload("Category")
}

func (s *OrderService) list(ctx context.Context, base *gorm.DB, f OrderFilter, p Page) (PageResult[models.Order], error) {
	var res PageResult[models.Order]
	q := f.apply(base)
	if err := q.Session(&gorm.Session{}).Model(&models.Order{}).Count(&res.Count).Error; err != nil {
		return res, fmt.Errorf("count orders: %w", err)
	}
	err := s.withRelations(q).Offset(p.Offset()).Limit(p.Size).Find(&res.Results).Error
	if err != nil {
		return res, fmt.Errorf("list orders: %w", err)
	}
	return res, nil
}

// List returns active orders of every author.
func (s *OrderService) List(ctx context.Context, f OrderFilter, p Page) (PageResult[models.Order], error) {
	base := db.GetReadOnlyDB(ctx, s.orm).Model(&models.Order{}).Where("is_active = ?", true)
	return s.list(ctx, base, f, p)
}

// ListByAuthor returns the author's own orders, inactive ones included.
func (s *OrderService) ListByAuthor(ctx context.Context, authorID int64, f OrderFilter, p Page) (PageResult[models.Order], error) {
	f.AuthorID = 0
	base := db.GetReadOnlyDB(ctx, s.orm).Model(&models.Order{}).Where("author_id = ?", authorID)
	return s.list(ctx, base, f, p)
}

func (s *OrderService) load(q *gorm.DB, id int64) (*models.Order, error) {
	var order models.Order
	err := s.withRelations(q).Preload("Images", func(q *gorm.DB) *gorm.DB {
		return q.Order("id ASC")
	}).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return &order, nil
}

// Get returns the order as seen by viewerID together with the id of the
// viewer's chat about it. Inactive orders are only visible to their author.
func (s *OrderService) Get(ctx context.Context, viewerID, id int64) (*models.Order, *int64, error) {
	order, err := s.load(db.GetReadOnlyDB(ctx, s.orm), id)
	if err != nil {
		return nil, nil, err
	}
	if !order.IsActive && order.AuthorID != viewerID {
		return nil, nil, ErrNotFound
	}

	var chatIDs []int64
	err = db.GetReadOnlyDB(ctx, s.orm).Model(&models.Chat{}).
		Where("order_id = ? AND (producer_id = ? OR consumer_id = ?)", id, viewerID, viewerID).
		Order("id ASC").Limit(1).Pluck("id", &chatIDs).Error
	if err != nil {
		return nil, nil, fmt.Errorf("load order chat: %w", err)
	}
	var chatID *int64
	if len(chatIDs) > 0 {
		chatID = &chatIDs[0]
	}
	return order, chatID, nil
}

func (s *OrderService) loadOwned(q *gorm.DB, authorID, id int64) (*models.Order, error) {
	var order models.Order
	err := q.Where("id = ? AND author_id = ?", id, authorID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return &order, nil
}

// validate copies the present form fields onto order. With partial unset
// every scalar field is required.
func (s *OrderService) validate(ctx context.Context, form OrderForm, order *models.Order, partial bool) error {
	v := &ValidationError{}
	required := func(field string, val *string) (string, bool) {
		if val == nil || strings.TrimSpace(*val) == "" {
			if val != nil || !partial {
				v.Add(field, "this field is required")
			}
			return "", false
		}
		return strings.TrimSpace(*val), true
	}

	if title, ok := required("title", form.Title); ok {
		if len(title) > 128 {
			v.Add("title", "ensure this field has no more than 128 characters")
		}
		order.Title = title
	}
	if description, ok := required("description", form.Description); ok {
		order.Description = description
	}
	if raw, ok := required("price", form.Price); ok {
		price, err := strconv.ParseInt(raw, 10, 64)
		switch {
		case err != nil:
			v.Add("price", "a valid integer is required")
		case price < 0:
			v.Add("price", "ensure this value is greater than or equal to 0")
		default:
			order.Price = price
		}
	}
	if raw, ok := required("category", form.Category); ok {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			v.Add("category", "incorrect type, expected pk value")
		} else {
			var count int64
			if err := db.GetReadOnlyDB(ctx, s.orm).Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
				return fmt.Errorf("check category: %w", err)
			}
			if count == 0 {
				v.Add("category", fmt.Sprintf("invalid pk %q - object does not exist", raw))
			} else {
				order.CategoryID = categoryID
			}
		}
	}
	return v.Err()
}

func parseImageIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fieldError("images", fmt.Sprintf("%q is not a valid image id", part))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *OrderService) saveFiles(files []*multipart.FileHeader) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := s.storage.Save(fh)
		if err != nil {
			s.deleteFiles(names)
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *OrderService) deleteFiles(names []string) {
	for _, name := range names {
		if err := s.storage.Delete(name); err != nil {
			zap.L().Warn("failed to delete stored file", zap.String("file", name), zap.Error(err))
		}
	}
}

// Create stores a new active order authored by authorID with one image per
// uploaded file.
func (s *OrderService) Create(ctx context.Context, authorID int64, form OrderForm, files []*multipart.FileHeader) (*models.Order, error) {
	order := &models.Order{AuthorID: authorID, IsActive: true}
	if err := s.validate(ctx, form, order, false); err != nil {
		return nil, err
	}
	names, err := s.saveFiles(files)
	if err != nil {
		return nil, err
	}

	err = db.GetWriteDB(ctx, s.orm).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Images", "Author", "Category").Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, name := range names {
			if err := tx.Create(&models.Image{OrderID: order.ID, File: name}).Error; err != nil {
				return fmt.Errorf("create image: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.deleteFiles(names)
		return nil, err
	}
	zap.L().Info("order created", zap.Int64("order_id", order.ID), zap.Int64("author_id", authorID), zap.Int("images", len(names)))
	return s.load(db.GetWriteDB(ctx, s.orm), order.ID)
}

// Update changes an order of authorID. When form.Images is set, images
// whose id is not listed are deleted; uploaded files are appended.
func (s *OrderService) Update(ctx context.Context, authorID, id int64, form OrderForm, files []*multipart.FileHeader, partial bool) (*models.Order, error) {
	order, err := s.loadOwned(db.GetWriteDB(ctx, s.orm), authorID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, form, order, partial); err != nil {
		return nil, err
	}
	var retained []int64
	if form.Images != nil {
		if retained, err = parseImageIDs(*form.Images); err != nil {
			return nil, err
		}
	}
	names, err := s.saveFiles(files)
	if err != nil {
		return nil, err
	}

	var removed []models.Image
	err = db.GetWriteDB(ctx, s.orm).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Order{ID: order.ID}).Updates(map[string]interface{}{
			"title":       order.Title,
			"description": order.Description,
			"price":       order.Price,
			"category_id": order.CategoryID,
		}).Error
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if form.Images != nil {
			q := tx.Where("order_id = ?", order.ID)
			if len(retained) > 0 {
				q = q.Where("id NOT IN ?", retained)
			}
			if err := q.Find(&removed).Error; err != nil {
				return fmt.Errorf("find images: %w", err)
			}
			if len(removed) > 0 {
				if err := tx.Delete(&removed).Error; err != nil {
					return fmt.Errorf("delete images: %w", err)
				}
			}
		}
		for _, name := range names {
			if err := tx.Create(&models.Image{OrderID: order.ID, File: name}).Error; err != nil {
				return fmt.Errorf("create image: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.deleteFiles(names)
		return nil, err
	}
	for _, img := range removed {
		s.deleteFiles([]string{img.File})
	}
	return s.load(db.GetWriteDB(ctx, s.orm), order.ID)
}

// Delete removes an order of authorID together with its images.
func (s *OrderService) Delete(ctx context.Context, authorID, id int64) error {
	order, err := s.loadOwned(db.GetWriteDB(ctx, s.orm), authorID, id)
	if err != nil {
		return err
	}
	var images []models.Image
	err = db.GetWriteDB(ctx, s.orm).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Find(&images).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.Image{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, order.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	for _, img := range images {
		s.deleteFiles([]string{img.File})
	}
	return nil
}

// Switch flips the active flag of an order of authorID and returns the new
// value. The order itself is never removed.
func (s *OrderService) Switch(ctx context.Context, authorID, id int64) (bool, error) {
	order, err := s.loadOwned(db.GetWriteDB(ctx, s.orm), authorID, id)
	if err != nil {
		return false, err
	}
	active := !order.IsActive
	if err := db.GetWriteDB(ctx, s.orm).Model(&models.Order{ID: order.ID}).Update("is_active", active).Error; err != nil {
		return false, fmt.Errorf("switch order %d: %w", id, err)
	}
	return active, nil
}
