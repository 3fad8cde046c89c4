package tracking

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/db"
	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
	"github.com/noah-isme/vaxcart-api/internal/obs"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Courier-Signature"

const maxWebhookBody = 64 << 10

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Webhook accepts courier callbacks.
type Webhook struct {
	Svc       *Service
	Replay    replayStore
	ReplayTTL time.Duration
	// Secret enables signature checks when set.
	Secret string
}

type webhookPayload struct {
	OrderID        string     `json:"orderId"`
	TrackingNumber string     `json:"trackingNumber"`
	Status         string     `json:"status"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	OccurredAt     *time.Time `json:"occurredAt"`
}

// Handle processes POST /webhooks/tracking/{courier}.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("tracking.Webhook").Start(r.Context(), "TrackingWebhook.Handle")
	defer span.End()
	r = r.WithContext(ctx)

	courier := normaliseLabel(chi.URLParam(r, "courier"))
	span.SetAttributes(attribute.String("tracking.webhook.courier", courier))
	outcome := "error"
	defer func() { obs.Inc(obs.TrackingWebhookTotal, courier, outcome) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		span.RecordError(err)
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read payload", nil)
		return
	}
	if h.Secret != "" && !validSignature(h.Secret, body, r.Header.Get(SignatureHeader)) {
		outcome = "unauthorized"
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature mismatch", nil)
		return
	}
	key := fmt.Sprintf("trackwh:%s:%s", courier, common.Sha256Hex(string(body)))
	fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
	if err != nil {
		span.RecordError(err)
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "replay protection failed", nil)
		return
	}
	if !fresh {
		outcome = "replay"
		span.AddEvent("tracking webhook replay prevented")
		common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook payload", nil)
		return
	}
	// Failed deliveries release the key so the courier's retry is processed.
	release := func() { _ = h.Replay.Del(context.WithoutCancel(ctx), key).Err() }

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		release()
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return
	}
	status, ok := MapExternal(payload.Status)
	if !ok {
		outcome = "ignored"
		w.WriteHeader(http.StatusNoContent)
		return
	}
	span.SetAttributes(attribute.String("tracking.webhook.status", string(status)))

	delivery, err := h.lookup(ctx, courier, payload)
	if err != nil {
		release()
		writeError(w, err)
		return
	}
	update := Update{
		Status:      status,
		Description: payload.Description,
		Location:    payload.Location,
		Raw:         body,
		Source:      SourceWebhook,
	}
	if payload.OccurredAt != nil {
		update.OccurredAt = *payload.OccurredAt
	}
	d, changed, err := h.Svc.Apply(ctx, delivery.ID, update)
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			release()
		}
		span.RecordError(err)
		writeError(w, err)
		return
	}
	outcome = "applied"
	if !changed {
		outcome = "unchanged"
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": NewView(d, nil)})
}

func (h Webhook) lookup(ctx context.Context, courier string, p webhookPayload) (dbgen.Delivery, error) {
	if strings.TrimSpace(p.TrackingNumber) != "" {
		return h.Svc.ByTracking(ctx, courier, p.TrackingNumber)
	}
	if p.OrderID != "" {
		id, err := db.UUID(p.OrderID)
		if err != nil {
			return dbgen.Delivery{}, common.BadRequest("BAD_REQUEST", "invalid order id", err)
		}
		return h.Svc.ByOrder(ctx, id)
	}
	return dbgen.Delivery{}, common.BadRequest("BAD_REQUEST", "trackingNumber or orderId is required", nil)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDeliveryNotFound):
		common.JSONError(w, http.StatusNotFound, "DELIVERY_NOT_FOUND", "delivery not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, ErrDeliveryClosed):
		common.JSONError(w, http.StatusConflict, "DELIVERY_CLOSED", "delivery already completed", nil)
	default:
		common.WriteError(w, err)
	}
}

// Sign returns the signature a courier sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, got string) bool {
	want := Sign(secret, body)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(got))))
}
