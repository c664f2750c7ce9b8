package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/account"
)

const dayLayout = "2006-01-02"

// OrderSource lists placed orders across customers.
type OrderSource interface {
	OrdersBetween(ctx context.Context, from, to time.Time) []account.Order
}

// DailySales aggregates the orders of one UTC day.
type DailySales struct {
	Day     string          `json:"day"`
	Orders  int             `json:"orders"`
	Units   int             `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
	VAT     decimal.Decimal `json:"vat"`
}

// TopProduct ranks a product by units sold.
type TopProduct struct {
	ProductID uuid.UUID       `json:"productId"`
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Service aggregates order history with an optional Redis cache.
type Service struct {
	Orders       OrderSource
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// SalesRange returns one row per UTC day between from (inclusive) and to (exclusive), including empty days.
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	if s == nil || s.Orders == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	from, to = from.UTC(), to.UTC()
	key := cacheKey("an", "sales", from.Format(time.RFC3339), to.Format(time.RFC3339))
	var rows []DailySales
	if s.fromCache(ctx, key, &rows) {
		return rows, nil
	}
	byDay := map[string]*DailySales{}
	rows = []DailySales{}
	for day := truncateDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		rows = append(rows, DailySales{Day: day.Format(dayLayout), Revenue: decimal.Zero, VAT: decimal.Zero})
	}
	for i := range rows {
		byDay[rows[i].Day] = &rows[i]
	}
	for _, o := range s.Orders.OrdersBetween(ctx, from, to) {
		row, ok := byDay[o.CreatedAt.UTC().Format(dayLayout)]
		if !ok {
			continue
		}
		row.Orders++
		row.Revenue = row.Revenue.Add(o.Totals.TotalInclusive)
		row.VAT = row.VAT.Add(o.Totals.TotalVAT)
		for _, l := range o.Lines {
			row.Units += l.Quantity
		}
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// TopProducts returns products ordered by units sold, then revenue.
func (s *Service) TopProducts(ctx context.Context, limit, offset int) ([]TopProduct, error) {
	if s == nil || s.Orders == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := cacheKey("an", "top", limit, offset)
	var rows []TopProduct
	if s.fromCache(ctx, key, &rows) {
		return rows, nil
	}
	agg := map[uuid.UUID]*TopProduct{}
	for _, o := range s.Orders.OrdersBetween(ctx, time.Time{}, s.now().Add(time.Nanosecond)) {
		for _, l := range o.Lines {
			row, ok := agg[l.ProductID]
			if !ok {
				row = &TopProduct{ProductID: l.ProductID, Slug: l.Slug, Name: l.Name, Revenue: decimal.Zero}
				agg[l.ProductID] = row
			}
			row.Quantity += l.Quantity
			row.Revenue = row.Revenue.Add(l.Computation.LineTotalInclusive)
		}
	}
	all := make([]TopProduct, 0, len(agg))
	for _, row := range agg {
		all = append(all, *row)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Quantity != all[j].Quantity {
			return all[i].Quantity > all[j].Quantity
		}
		if !all[i].Revenue.Equal(all[j].Revenue) {
			return all[i].Revenue.GreaterThan(all[j].Revenue)
		}
		return all[i].Slug < all[j].Slug
	})
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	rows = all[offset:end]
	s.store(ctx, key, rows)
	return rows, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
