package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store persists carts and undo records in Redis.
type Store struct {
	R       *redis.Client
	TTL     time.Duration
	UndoTTL time.Duration
}

type undoRecord struct {
	Item     LineItem `json:"item"`
	Position int      `json:"position"`
}

func cartKey(id string) string { return "cart:" + id }

func undoKey(cartID, token string) string { return "cart:" + cartID + ":undo:" + token }

func (s *Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Store) undoTTL() time.Duration {
	if s.UndoTTL <= 0 {
		return 30 * time.Second
	}
	return s.UndoTTL
}

// Load reads the cart or returns ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (Cart, error) {
	raw, err := s.R.Get(ctx, cartKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("load cart %s: %w", id, err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart %s: %w", id, err)
	}
	return c, nil
}

// Save writes the cart and slides its expiry.
func (s *Store) Save(ctx context.Context, c Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", c.ID, err)
	}
	if err := s.R.Set(ctx, cartKey(c.ID), raw, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", c.ID, err)
	}
	return nil
}

// Delete removes the cart. Missing carts are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.R.Del(ctx, cartKey(id)).Err()
}

// PutUndo stores a removed line and returns the token that restores it.
func (s *Store) PutUndo(ctx context.Context, cartID string, rec undoRecord) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.R.Set(ctx, undoKey(cartID, token), raw, s.undoTTL()).Err(); err != nil {
		return "", fmt.Errorf("store undo: %w", err)
	}
	return token, nil
}

// PeekUndo reads the undo record without consuming it.
func (s *Store) PeekUndo(ctx context.Context, cartID, token string) (undoRecord, error) {
	return decodeUndo(s.R.Get(ctx, undoKey(cartID, token)).Bytes())
}

// TakeUndo consumes the undo record. A token can be used once.
func (s *Store) TakeUndo(ctx context.Context, cartID, token string) (undoRecord, error) {
	return decodeUndo(s.R.GetDel(ctx, undoKey(cartID, token)).Bytes())
}

func decodeUndo(raw []byte, err error) (undoRecord, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return undoRecord{}, ErrUndoExpired
		}
		return undoRecord{}, fmt.Errorf("read undo: %w", err)
	}
	var rec undoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return undoRecord{}, fmt.Errorf("decode undo: %w", err)
	}
	return rec, nil
}
