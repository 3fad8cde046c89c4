package promotion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
)

// Querier captures the database methods required to look up promotions.
type Querier interface {
	GetPromotionByCode(ctx context.Context, code string) (dbgen.Promotion, error)
}

// Repository resolves promotions by code.
type Repository struct {
	Q Querier
}

// ByCode loads the promotion for code. Codes are matched case-insensitively.
func (r Repository) ByCode(ctx context.Context, code string) (Promotion, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Promotion{}, ErrNotFound
	}
	if r.Q == nil {
		return Promotion{}, errors.New("promotion repository not configured")
	}
	row, err := r.Q.GetPromotionByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Promotion{}, fmt.Errorf("%s: %w", normalized, ErrNotFound)
		}
		return Promotion{}, fmt.Errorf("get promotion %s: %w", normalized, err)
	}
	return FromModel(row)
}

// FromModel converts a stored row into a Promotion.
func FromModel(row dbgen.Promotion) (Promotion, error) {
	dt, err := ParseDiscountType(row.DiscountType)
	if err != nil {
		return Promotion{}, fmt.Errorf("%s: %w", row.Code, err)
	}
	p := Promotion{
		ID:            db.UUIDString(row.ID),
		Code:          row.Code,
		Title:         row.Title,
		DiscountType:  dt,
		DiscountValue: row.DiscountValue,
		ValidFrom:     db.TimePtr(row.ValidFrom),
		ValidTo:       db.TimePtr(row.ValidTo),
		Active:        row.Active,
	}
	if row.MinQuantity.Valid {
		q := int(row.MinQuantity.Int32)
		p.MinQuantity = &q
	}
	return p, nil
}
