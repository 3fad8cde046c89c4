package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/inventory"
	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
)

// ErrNotFound indicates the vaccine does not exist.
var ErrNotFound = errors.New("vaccine not found")

type queryProvider interface {
	ListVaccines(ctx context.Context, arg dbgen.ListVaccinesParams) ([]dbgen.VaccineStockRow, error)
	CountVaccines(ctx context.Context, arg dbgen.CountVaccinesParams) (int64, error)
	GetVaccineBySlug(ctx context.Context, slug string) (dbgen.VaccineStockRow, error)
	GetVaccineByID(ctx context.Context, id pgtype.UUID) (dbgen.VaccineStockRow, error)
	GetVaccinesByIDs(ctx context.Context, ids []pgtype.UUID) ([]dbgen.VaccineStockRow, error)
}

// Service reads vaccines joined with their stock records and derives availability.
type Service struct {
	queries      queryProvider
	cache        *Cache
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for the vaccine listing.
type ListParams struct {
	Query   string
	InStock bool
	Page    int
	Limit   int
}

// Item is a catalog entry with its stock snapshot.
type Item struct {
	ID           string           `json:"id"`
	Slug         string           `json:"slug"`
	Name         string           `json:"name"`
	Manufacturer string           `json:"manufacturer"`
	Description  *string          `json:"description,omitempty"`
	DoseLabel    string           `json:"doseLabel"`
	Price        int64            `json:"price"`
	PriceDisplay string           `json:"priceDisplay"`
	Stock        inventory.Record `json:"stock"`
	Availability inventory.Label  `json:"availability"`
	CanAddToCart bool             `json:"canAddToCart"`
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Item `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit, Query: strings.TrimSpace(values.Get("q"))}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(limit, s.maxLimit)
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = b
	}
	return params, nil
}

// ListVaccines returns a page of vaccines. Pages are cached for the cache TTL.
func (s *Service) ListVaccines(ctx context.Context, params ListParams) (ListResult, error) {
	key := listCacheKey(params)
	var cached ListResult
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	search := pgtype.Text{String: params.Query, Valid: params.Query != ""}
	total, err := s.queries.CountVaccines(ctx, dbgen.CountVaccinesParams{Search: search, InStockOnly: params.InStock})
	if err != nil {
		return ListResult{}, s.fetchFailed("count", err)
	}
	rows, err := s.queries.ListVaccines(ctx, dbgen.ListVaccinesParams{
		Search:      search,
		InStockOnly: params.InStock,
		Limit:       int32(params.Limit),
		Offset:      int32(common.Pagination{Page: params.Page, PerPage: params.Limit}.Offset()),
	})
	if err != nil {
		return ListResult{}, s.fetchFailed("list", err)
	}
	result := ListResult{Items: make([]Item, 0, len(rows)), Total: total, Page: params.Page, Limit: params.Limit}
	for _, row := range rows {
		result.Items = append(result.Items, toItem(row))
	}
	if err := s.cache.SetJSON(ctx, key, result); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return result, nil
}

// GetVaccine returns a single vaccine by slug. Detail reads bypass the cache so
// stock labels stay fresh.
func (s *Service) GetVaccine(ctx context.Context, slug string) (Item, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Item{}, badRequest("slug", "slug is required", nil)
	}
	row, err := s.queries.GetVaccineBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("%s: %w", slug, ErrNotFound)
		}
		return Item{}, s.fetchFailed("detail", err)
	}
	return toItem(row), nil
}

// GetForCart loads the live price and stock for a vaccine by id.
func (s *Service) GetForCart(ctx context.Context, vaccineID string) (Item, error) {
	id, err := db.UUID(vaccineID)
	if err != nil {
		return Item{}, fmt.Errorf("%s: %w", vaccineID, ErrNotFound)
	}
	row, err := s.queries.GetVaccineByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("%s: %w", vaccineID, ErrNotFound)
		}
		return Item{}, s.fetchFailed("by_id", err)
	}
	return toItem(row), nil
}

// GetManyForCheckout loads the given vaccines keyed by id. Missing ids are
// absent from the map.
func (s *Service) GetManyForCheckout(ctx context.Context, vaccineIDs []string) (map[string]Item, error) {
	ids := make([]pgtype.UUID, 0, len(vaccineIDs))
	for _, raw := range vaccineIDs {
		id, err := db.UUID(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	out := make(map[string]Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.queries.GetVaccinesByIDs(ctx, ids)
	if err != nil {
		return nil, s.fetchFailed("by_ids", err)
	}
	for _, row := range rows {
		item := toItem(row)
		out[item.ID] = item
	}
	return out, nil
}

func (s *Service) fetchFailed(op string, err error) error {
	obs.Inc(obs.CatalogFetchFailures, op)
	s.logger.Error().Err(err).Str("op", op).Msg("catalog fetch failed")
	return &common.AppError{
		Code:       "CATALOG_UNAVAILABLE",
		Message:    "catalog is temporarily unavailable",
		HTTPStatus: http.StatusInternalServerError,
		Err:        fmt.Errorf("catalog %s: %w", op, err),
	}
}

func toItem(row dbgen.VaccineStockRow) Item {
	id := db.UUIDString(row.ID)
	record := inventory.Record{
		VaccineID:         id,
		StockLevel:        int(row.StockLevel),
		LowStockThreshold: int(row.LowStockThreshold),
		IsAvailable:       row.IsAvailable,
	}
	label := inventory.Classify(record)
	return Item{
		ID:           id,
		Slug:         row.Slug,
		Name:         row.Name,
		Manufacturer: row.Manufacturer,
		Description:  db.TextPtr(row.Description),
		DoseLabel:    row.DoseLabel,
		Price:        row.Price,
		PriceDisplay: pricing.FormatAmount(row.Price),
		Stock:        record,
		Availability: label,
		CanAddToCart: label.CanAddToCart(),
	}
}

func listCacheKey(p ListParams) string {
	return fmt.Sprintf("catalog:vaccines:list:%s:%t:%d:%d", common.Sha256Hex(strings.ToLower(p.Query))[:16], p.InStock, p.Page, p.Limit)
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}
