package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestUUIDRoundTrip(t *testing.T) {
	id, err := UUID("2f7a3c1e-9a4b-4d5e-8f60-1a2b3c4d5e6f")
	require.NoError(t, err)
	require.True(t, id.Valid)
	require.Equal(t, "2f7a3c1e-9a4b-4d5e-8f60-1a2b3c4d5e6f", UUIDString(id))

	_, err = UUID("not-a-uuid")
	require.Error(t, err)
}

func TestNullableHelpers(t *testing.T) {
	require.False(t, Text("").Valid)
	require.Nil(t, TextPtr(Text("")))
	require.Equal(t, "dhl", *TextPtr(Text("dhl")))

	require.False(t, Timestamptz(time.Time{}).Valid)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.Equal(t, now, *TimePtr(Timestamptz(now)))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	require.True(t, IsUniqueViolation(err))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(nil))
}
