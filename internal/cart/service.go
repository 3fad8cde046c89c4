package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/vaxcart-api/internal/catalog"
	"github.com/noah-isme/vaxcart-api/internal/inventory"
	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
	"github.com/noah-isme/vaxcart-api/internal/promotion"
)

// Catalog supplies live price and stock for a vaccine.
type Catalog interface {
	GetForCart(ctx context.Context, vaccineID string) (catalog.Item, error)
}

// Promotions resolves promotion codes.
type Promotions interface {
	ByCode(ctx context.Context, code string) (promotion.Promotion, error)
}

// Locker serialises mutations per cart.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service is the only component that reads or mutates carts.
type Service struct {
	Store      *Store
	Locker     Locker
	Catalog    Catalog
	Promotions Promotions
	Policy     pricing.Policy
	LockTTL    time.Duration
	Now        func() time.Time
}

// Quote is a priced view of a cart.
type Quote struct {
	Cart           Cart                 `json:"-"`
	Summary        pricing.Summary      `json:"pricing"`
	Promotion      *promotion.Promotion `json:"promotion,omitempty"`
	PromotionError string               `json:"promotionError,omitempty"`
	BonusPoints    int64                `json:"bonusPoints"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context) (Cart, error) {
	now := s.now()
	c := Cart{ID: uuid.NewString(), Items: []LineItem{}, CreatedAt: now, UpdatedAt: now}
	if err := s.Store.Save(ctx, c); err != nil {
		return Cart{}, err
	}
	obs.Inc(obs.CartMutationsTotal, "create", "ok")
	return c, nil
}

// Get loads a cart.
func (s *Service) Get(ctx context.Context, id string) (Cart, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Cart{}, ErrNotFound
	}
	return s.Store.Load(ctx, id)
}

// AddItem adds qty doses of a vaccine, merging with an existing line. Price and
// dose label are refreshed from the catalog.
func (s *Service) AddItem(ctx context.Context, id, vaccineID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, fmt.Errorf("qty %d: %w", qty, ErrInvalidLineItem)
	}
	return s.mutate(ctx, "add_item", id, func(ctx context.Context, c *Cart) error {
		item, err := s.Catalog.GetForCart(ctx, vaccineID)
		if err != nil {
			return err
		}
		if !item.Availability.CanAddToCart() {
			return fmt.Errorf("%s: %w", item.Name, ErrOutOfStock)
		}
		total := qty
		if existing, ok := c.Line(item.ID); ok {
			total += existing.Qty
		}
		if !item.Stock.Covers(total) {
			return stockError(item, total)
		}
		line, err := NewLineItem(item.ID, item.Name, item.DoseLabel, total, item.Price)
		if err != nil {
			return err
		}
		c.upsert(line)
		return nil
	})
}

// SetQuantity sets the quantity of an existing line. Zero removes the line and
// returns an undo token valid for the store's undo TTL.
func (s *Service) SetQuantity(ctx context.Context, id, vaccineID string, qty int) (Cart, string, error) {
	if qty < 0 {
		return Cart{}, "", fmt.Errorf("qty %d: %w", qty, ErrInvalidLineItem)
	}
	var token string
	c, err := s.mutate(ctx, "set_quantity", id, func(ctx context.Context, c *Cart) error {
		existing, ok := c.Line(vaccineID)
		if !ok {
			return ErrLineNotFound
		}
		if qty == 0 {
			removed, pos, _ := c.remove(vaccineID)
			t, err := s.Store.PutUndo(ctx, c.ID, undoRecord{Item: removed, Position: pos})
			if err != nil {
				return err
			}
			token = t
			return nil
		}
		if qty > existing.Qty {
			item, err := s.Catalog.GetForCart(ctx, vaccineID)
			if err != nil {
				return err
			}
			if !item.Stock.Covers(qty) {
				return stockError(item, qty)
			}
		}
		line, err := existing.WithQty(qty)
		if err != nil {
			return err
		}
		c.upsert(line)
		return nil
	})
	if err != nil {
		return Cart{}, "", err
	}
	return c, token, nil
}

// Undo re-inserts the line removed under token. The restored quantity, merged
// with any line re-added since, must still be covered by stock; a rejected undo
// leaves the token usable until it expires.
func (s *Service) Undo(ctx context.Context, id, token string) (Cart, error) {
	return s.mutate(ctx, "undo", id, func(ctx context.Context, c *Cart) error {
		rec, err := s.Store.PeekUndo(ctx, c.ID, token)
		if err != nil {
			return err
		}
		item, err := s.Catalog.GetForCart(ctx, rec.Item.VaccineID)
		if err != nil {
			return err
		}
		total := rec.Item.Qty
		if existing, ok := c.Line(item.ID); ok {
			total += existing.Qty
		}
		if !item.Stock.Covers(total) {
			return stockError(item, total)
		}
		if _, err := s.Store.TakeUndo(ctx, c.ID, token); err != nil {
			return err
		}
		c.reinsert(rec.Item, rec.Position)
		return nil
	})
}

// ApplyPromotion validates code against the current cart and records it. A
// cart holds at most one promotion; applying another replaces it.
func (s *Service) ApplyPromotion(ctx context.Context, id, code string) (Cart, error) {
	return s.mutate(ctx, "apply_promotion", id, func(ctx context.Context, c *Cart) error {
		p, err := s.Promotions.ByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := p.Validate(s.now(), c.TotalQty()); err != nil {
			return err
		}
		c.PromotionCode = p.Code
		return nil
	})
}

// ClearPromotion removes the applied promotion.
func (s *Service) ClearPromotion(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, "clear_promotion", id, func(_ context.Context, c *Cart) error {
		c.PromotionCode = ""
		return nil
	})
}

// SetRedeemPoints toggles loyalty points redemption.
func (s *Service) SetRedeemPoints(ctx context.Context, id string, redeem bool) (Cart, error) {
	return s.mutate(ctx, "redeem_points", id, func(_ context.Context, c *Cart) error {
		c.RedeemPoints = redeem
		return nil
	})
}

// Delete drops the cart.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.Locker.WithLock(ctx, cartKey(id), s.LockTTL, func(ctx context.Context) error {
		return s.Store.Delete(ctx, id)
	})
	obs.Inc(obs.CartMutationsTotal, "delete", result(err))
	return err
}

// Consume runs fn on the cart while holding its lock and deletes the cart
// when fn succeeds. Concurrent mutations wait until fn returns.
func (s *Service) Consume(ctx context.Context, id string, fn func(context.Context, Cart) error) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	err := s.Locker.WithLock(ctx, cartKey(id), s.LockTTL, func(ctx context.Context) error {
		c, err := s.Store.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, c); err != nil {
			return err
		}
		return s.Store.Delete(ctx, id)
	})
	obs.Inc(obs.CartMutationsTotal, "consume", result(err))
	return err
}

// Quote loads and prices the cart. availablePoints is the caller's loyalty
// balance; it only matters when redemption is enabled.
func (s *Service) Quote(ctx context.Context, id string, availablePoints int64) (Quote, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		obs.Inc(obs.CartQuotesTotal, "not_found")
		return Quote{}, err
	}
	q, err := s.Price(ctx, c, availablePoints)
	obs.Inc(obs.CartQuotesTotal, result(err))
	return q, err
}

// Price computes totals for c without touching the store. An applied
// promotion that no longer validates contributes nothing and is reported in
// PromotionError.
func (s *Service) Price(ctx context.Context, c Cart, availablePoints int64) (Quote, error) {
	q := Quote{Cart: c}
	var promoDiscount int64
	if c.PromotionCode != "" {
		p, err := s.Promotions.ByCode(ctx, c.PromotionCode)
		switch {
		case err == nil:
			if verr := p.Validate(s.now(), c.TotalQty()); verr != nil {
				q.PromotionError = verr.Error()
				break
			}
			q.Promotion = &p
			promoDiscount = p.Discount(pricing.Subtotal(c.PricingItems()))
			q.BonusPoints = p.BonusPoints()
		case errors.Is(err, promotion.ErrNotFound):
			q.PromotionError = err.Error()
		default:
			return Quote{}, err
		}
	}
	q.Summary = pricing.Compute(pricing.Input{
		Items:             c.PricingItems(),
		PromotionDiscount: promoDiscount,
		RedeemPoints:      c.RedeemPoints,
		AvailablePoints:   availablePoints,
	}, s.Policy)
	return q, nil
}

func (s *Service) mutate(ctx context.Context, op, id string, fn func(context.Context, *Cart) error) (Cart, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Cart{}, ErrNotFound
	}
	var out Cart
	err := s.Locker.WithLock(ctx, cartKey(id), s.LockTTL, func(ctx context.Context) error {
		c, err := s.Store.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, &c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()
		if err := s.Store.Save(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	obs.Inc(obs.CartMutationsTotal, op, result(err))
	return out, err
}

func stockError(item catalog.Item, requested int) error {
	if item.Availability == inventory.OutOfStock {
		return fmt.Errorf("%s: %w", item.Name, ErrOutOfStock)
	}
	return fmt.Errorf("%s requested %d of %d: %w", item.Name, requested, item.Stock.StockLevel, ErrInsufficientStock)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
