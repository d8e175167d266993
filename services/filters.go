package services

import (
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const defaultOrdering = "-created_at"

// likeEscaper quotes LIKE wildcards with '!', which reads the same in
// postgres, mysql and sqlite string literals.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

var (
	// OrderOrdering lists the orderings accepted by the public order listing.
	OrderOrdering = []string{"created_at", "price", "title"}
	// OwnOrderOrdering lists the orderings accepted for the caller's own orders.
	OwnOrderOrdering = []string{"created_at", "title"}
)

type OrderFilter struct {
	Title      string
	CategoryID int64
	AuthorID   int64
	Price      *int64
	Search     string
	MinPrice   *int64
	MaxPrice   *int64
	Ordering   string
}

func parseID(raw string) int64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func parseOptionalInt(raw string) (*int64, bool) {
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// ParseOrderFilter reads filter parameters from a query string. It never
// fails: bounds are read min_price first, and the first non-numeric bound
// stops the price range there and resets ordering to newest first. Other
// unparsable values are ignored.
func ParseOrderFilter(q url.Values, allowedOrdering []string) OrderFilter {
	f := OrderFilter{
		Title:      q.Get("title"),
		CategoryID: parseID(q.Get("category")),
		AuthorID:   parseID(q.Get("author")),
		Search:     strings.TrimSpace(q.Get("search")),
		Ordering:   defaultOrdering,
	}
	if price, ok := parseOptionalInt(q.Get("price")); ok {
		f.Price = price
	}

	ordering := q.Get("ordering")
	for _, field := range allowedOrdering {
		if ordering == field || ordering == "-"+field {
			f.Ordering = ordering
			break
		}
	}

	minPrice, ok := parseOptionalInt(q.Get("min_price"))
	if !ok {
		f.Ordering = defaultOrdering
		return f
	}
	f.MinPrice = minPrice
	maxPrice, ok := parseOptionalInt(q.Get("max_price"))
	if !ok {
		f.Ordering = defaultOrdering
		return f
	}
	f.MaxPrice = maxPrice
	return f
}

func orderClause(ordering string) string {
	field := strings.TrimPrefix(ordering, "-")
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
	}
	return field + " " + dir + ", id " + dir
}

func (f OrderFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Title != "" {
		q = q.Where("title = ?", f.Title)
	}
	if f.CategoryID > 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.AuthorID > 0 {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.Price != nil {
		q = q.Where("price = ?", *f.Price)
	}
	if f.Search != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(strings.ToLower(f.Search))+"%")
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	ordering := f.Ordering
	if ordering == "" {
		ordering = defaultOrdering
	}
	return q.Order(orderClause(ordering))
}
