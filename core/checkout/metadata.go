package checkout

import (
	"encoding/json"
	"fmt"

	"github.com/atelierco/storefront/core/order"
)

// The provider session's metadata bag is the only durable record of a
// purchase between session creation and webhook delivery, so its layout is
// explicit and versioned: a version tag, a kind discriminator, and one
// JSON payload string. Prices inside were computed server-side at
// session-build time and are trusted on the way back.
const (
	metaVersionKey = "v"
	metaKindKey    = "kind"
	metaPayloadKey = "payload"

	metaVersion = "1"

	kindOrder   = "order"
	kindBooking = "booking"
)

type orderPayload struct {
	Email   string             `json:"email"`
	UserID  *string            `json:"userId,omitempty"`
	Address order.Address      `json:"address"`
	Items   []orderPayloadItem `json:"items"`
}

type orderPayloadItem struct {
	ProductID  string            `json:"productId"`
	Name       string            `json:"name"`
	Selections map[string]string `json:"selections"`
	Quantity   int               `json:"quantity"`
	UnitPrice  int64             `json:"unitPrice"`
}

type bookingPayload struct {
	TrainingID    string  `json:"trainingId"`
	TrainingSlug  string  `json:"trainingSlug"`
	TrainingTitle string  `json:"trainingTitle"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone,omitempty"`
	Experience    string  `json:"experience,omitempty"`
	Requirements  string  `json:"requirements,omitempty"`
	UserID        *string `json:"userId,omitempty"`
	GuestEmail    *string `json:"guestEmail,omitempty"`
	Amount        int64   `json:"amount"`
	FullAmount    int64   `json:"fullAmount"`
	PaymentType   string  `json:"paymentType"`
}

func encodeMetadata(kind string, payload interface{}) (map[string]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s metadata payload: %w", kind, err)
	}

	return map[string]string{
		metaVersionKey: metaVersion,
		metaKindKey:    kind,
		metaPayloadKey: string(raw),
	}, nil
}

func decodeMetadata(md map[string]string) (kind string, raw []byte, err error) {
	if len(md) == 0 {
		return "", nil, fmt.Errorf("session has no metadata")
	}
	if v := md[metaVersionKey]; v != metaVersion {
		return "", nil, fmt.Errorf("unsupported metadata version %q", v)
	}

	kind = md[metaKindKey]
	if kind != kindOrder && kind != kindBooking {
		return "", nil, fmt.Errorf("unknown metadata kind %q", kind)
	}

	payload := md[metaPayloadKey]
	if payload == "" {
		return "", nil, fmt.Errorf("metadata payload is empty")
	}
	return kind, []byte(payload), nil
}
