package models

import "time"

type Category struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:32;not null" json:"name"`
}

func (Category) TableName() string {
	return "categories"
}

// Order is a marketplace listing. Price is kept in the smallest currency unit.
type Order struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	Title       string    `gorm:"size:128;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	AuthorID    int64     `gorm:"not null;index" json:"-"`
	Author      User      `gorm:"constraint:OnDelete:CASCADE" json:"author"`
	Price       int64     `gorm:"not null;index" json:"price"`
	CategoryID  int64     `gorm:"not null;index" json:"-"`
	Category    Category  `gorm:"constraint:OnDelete:CASCADE" json:"category"`
	Images      []Image   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type Image struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64  `gorm:"not null;index" json:"-"`
	File    string `gorm:"size:255;not null" json:"file"`
}

func (Image) TableName() string {
	return "images"
}

// OrderListItem is the row shape of order listings.
type OrderListItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      UserShort `json:"author"`
	IsActive    bool      `json:"is_active"`
	Price       int64     `json:"price"`
	Category    Category  `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderDetail is the single order view; Chat holds the id of the viewer's
// chat about this order, if any.
type OrderDetail struct {
	OrderListItem
	ImageSet []Image `json:"image_set"`
	Chat     *int64  `json:"chat"`
}

func (o Order) ListItem() OrderListItem {
	return OrderListItem{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		Author:      o.Author.Short(),
		IsActive:    o.IsActive,
		Price:       o.Price,
		Category:    o.Category,
		CreatedAt:   o.CreatedAt,
	}
}

func (o Order) Detail(chatID *int64) OrderDetail {
	images := o.Images
	if images == nil {
		images = []Image{}
	}
	return OrderDetail{OrderListItem: o.ListItem(), ImageSet: images, Chat: chatID}
}
