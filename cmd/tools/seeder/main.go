package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/catalog"
	"github.com/noah-isme/vaxcart-api/internal/config"
	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/inventory"
	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
	"github.com/noah-isme/vaxcart-api/internal/promotion"
)

type vaccineSeed struct {
	Slug, Name, Manufacturer, Description, DoseLabel, Price string
	Stock, Threshold                                        int
	Available                                               bool
}

var vaccines = []vaccineSeed{
	{"influenza-tetravalente", "Influenza Tetravalente", "Sanofi Pasteur", "Seasonal flu protection for adults and children over 6 months.", "1 dose", "25.50", 40, 5, true},
	{"hpv-9-valente", "HPV 9-valente", "MSD", "Protection against nine HPV strains.", "1 of 2 doses", "100.00", 12, 3, true},
	{"hepatitis-b-adulto", "Hepatitis B Adulto", "GSK", "Three-dose adult schedule.", "1 of 3 doses", "18.75", 3, 5, true},
	{"tdap", "Tdap", "Sanofi Pasteur", "Tetanus, diphtheria and pertussis booster.", "1 dose", "35.00", 25, 5, true},
	{"neumococo-20", "Neumococo 20-valente", "Pfizer", "Pneumococcal conjugate vaccine.", "1 dose", "120.00", 0, 2, true},
	{"fiebre-amarilla", "Fiebre Amarilla", "Sanofi Pasteur", "Required for travel to endemic regions.", "1 dose", "45.00", 8, 2, false},
}

type promotionSeed struct {
	Code, Title  string
	DiscountType promotion.DiscountType
	Value        string
	MinQty       int
	ValidDays    int
}

var promotions = []promotionSeed{
	{"VACUNA10", "10% off your vaccines", promotion.Percentage, "1000", 0, 90},
	{"FAMILIA", "RD$20 off family orders", promotion.Fixed, "20.00", 3, 60},
	{"PUNTOS200", "200 bonus loyalty points", promotion.Points, "200", 0, 30},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	err = db.RunInTx(ctx, pool, func(q *dbgen.Queries) error {
		if err := seedVaccines(ctx, q, logger); err != nil {
			return err
		}
		if err := seedPromotions(ctx, q, logger); err != nil {
			return err
		}
		return seedLoyalty(ctx, q, os.Getenv("SEED_USER_IDS"), logger)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	if err := invalidateCatalog(ctx, cfg.RedisURL); err != nil {
		logger.Warn().Err(err).Msg("catalog cache not invalidated")
	}
	logger.Info().Msg("seeding completed")
}

func seedVaccines(ctx context.Context, q *dbgen.Queries, logger zerolog.Logger) error {
	for _, v := range vaccines {
		price, err := pricing.ParseAmount(v.Price)
		if err != nil {
			return fmt.Errorf("vaccine %s: %w", v.Slug, err)
		}
		rec := inventory.Record{StockLevel: v.Stock, LowStockThreshold: v.Threshold, IsAvailable: v.Available}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("vaccine %s: %w", v.Slug, err)
		}
		row, err := q.UpsertVaccine(ctx, dbgen.UpsertVaccineParams{
			Slug:         v.Slug,
			Name:         v.Name,
			Manufacturer: v.Manufacturer,
			Description:  db.Text(v.Description),
			DoseLabel:    v.DoseLabel,
			Price:        price,
		})
		if err != nil {
			return fmt.Errorf("upsert vaccine %s: %w", v.Slug, err)
		}
		if err := q.UpsertInventory(ctx, dbgen.UpsertInventoryParams{
			VaccineID:         row.ID,
			StockLevel:        int32(rec.StockLevel),
			LowStockThreshold: int32(rec.LowStockThreshold),
			IsAvailable:       rec.IsAvailable,
		}); err != nil {
			return fmt.Errorf("upsert inventory %s: %w", v.Slug, err)
		}
		logger.Info().Str("slug", v.Slug).Str("availability", string(inventory.Classify(rec))).Msg("vaccine seeded")
	}
	return nil
}

func seedPromotions(ctx context.Context, q *dbgen.Queries, logger zerolog.Logger) error {
	now := time.Now().UTC()
	for _, p := range promotions {
		value, err := promotionValue(p)
		if err != nil {
			return fmt.Errorf("promotion %s: %w", p.Code, err)
		}
		var minQty pgtype.Int4
		if p.MinQty > 0 {
			minQty = pgtype.Int4{Int32: int32(p.MinQty), Valid: true}
		}
		if err := q.UpsertPromotion(ctx, dbgen.UpsertPromotionParams{
			Code:          promotion.NormalizeCode(p.Code),
			Title:         p.Title,
			DiscountType:  string(p.DiscountType),
			DiscountValue: value,
			ValidFrom:     db.Timestamptz(now.Add(-time.Hour)),
			ValidTo:       db.Timestamptz(now.AddDate(0, 0, p.ValidDays)),
			MinQuantity:   minQty,
			Active:        true,
		}); err != nil {
			return fmt.Errorf("upsert promotion %s: %w", p.Code, err)
		}
		logger.Info().Str("code", p.Code).Msg("promotion seeded")
	}
	return nil
}

// fixed promotions are written as currency amounts; the others are plain integers.
func promotionValue(p promotionSeed) (int64, error) {
	if p.DiscountType == promotion.Fixed {
		return pricing.ParseAmount(p.Value)
	}
	var n int64
	if _, err := fmt.Sscan(p.Value, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func seedLoyalty(ctx context.Context, q *dbgen.Queries, ids string, logger zerolog.Logger) error {
	for i, raw := range strings.Split(ids, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		uid, err := db.UUID(raw)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", raw, err)
		}
		points := int64(250 + i*600)
		if _, err := q.UpsertLoyaltyAccount(ctx, dbgen.UpsertLoyaltyAccountParams{
			UserID:      uid,
			Points:      points,
			TotalSpent:  points * 20,
			OrdersCount: int32(1 + i),
		}); err != nil {
			return fmt.Errorf("upsert loyalty %s: %w", raw, err)
		}
		logger.Info().Str("user_id", raw).Int64("points", points).Msg("loyalty account seeded")
	}
	return nil
}

func invalidateCatalog(ctx context.Context, redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()
	return catalog.NewCache(client, 0).InvalidateLists(ctx)
}
