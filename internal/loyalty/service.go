package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
)

// ErrInvalidUser is returned when the caller id is not a UUID.
var ErrInvalidUser = errors.New("invalid user id")

// Querier is the subset of generated queries the service reads.
type Querier interface {
	GetLoyaltyAccount(ctx context.Context, userID pgtype.UUID) (dbgen.LoyaltyAccount, error)
}

// Service reads loyalty ledgers. Writes happen inside checkout transactions.
type Service struct {
	Q Querier
}

// Account returns the user's ledger. Users without a row start at zero.
func (s *Service) Account(ctx context.Context, userID string) (Account, error) {
	id, err := db.UUID(userID)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	row, err := s.Q.GetLoyaltyAccount(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{UserID: userID}, nil
	}
	if err != nil {
		return Account{}, fmt.Errorf("get loyalty account: %w", err)
	}
	return FromModel(row), nil
}

// Balance returns only the redeemable points.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	acct, err := s.Account(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acct.Points, nil
}

// FromModel converts a stored ledger row.
func FromModel(row dbgen.LoyaltyAccount) Account {
	acct := Account{
		UserID:      db.UUIDString(row.UserID),
		Points:      row.Points,
		TotalSpent:  row.TotalSpent,
		OrdersCount: int(row.OrdersCount),
	}
	if row.UpdatedAt.Valid {
		acct.UpdatedAt = row.UpdatedAt.Time
	}
	return acct
}
