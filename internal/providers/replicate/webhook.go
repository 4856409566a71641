package replicate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"movieposter/internal/domain"
)

var (
	ErrInvalidSignature = errors.New("replicate: invalid webhook signature")
	ErrStaleWebhook     = errors.New("replicate: webhook timestamp outside tolerance")
)

// DefaultWebhookTolerance bounds how far a webhook timestamp may drift from now.
const DefaultWebhookTolerance = 5 * time.Minute

// WebhookVerifier checks the webhook-id, webhook-timestamp and
// webhook-signature headers Replicate attaches to callbacks.
type WebhookVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier decodes a "whsec_" prefixed signing secret. An empty
// secret yields a nil verifier, which accepts everything.
func NewWebhookVerifier(secret string, tolerance time.Duration) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, errors.New("replicate: webhook secret is not valid base64")
	}
	if tolerance <= 0 {
		tolerance = DefaultWebhookTolerance
	}
	return &WebhookVerifier{key: key, tolerance: tolerance, now: time.Now}, nil
}

// Verify returns nil when one of the listed signatures matches body.
func (v *WebhookVerifier) Verify(header http.Header, body []byte) error {
	if v == nil {
		return nil
	}
	id := header.Get("webhook-id")
	ts := header.Get("webhook-timestamp")
	sigs := header.Get("webhook-signature")
	if id == "" || ts == "" || sigs == "" {
		return ErrInvalidSignature
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if drift := v.now().Sub(time.Unix(sec, 0)); drift > v.tolerance || drift < -v.tolerance {
		return ErrStaleWebhook
	}
	expected := v.sign(id, ts, body)
	for _, candidate := range strings.Fields(sigs) {
		_, sig, ok := strings.Cut(candidate, ",")
		if !ok {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func (v *WebhookVerifier) sign(id, ts string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// DecodeWebhook parses a callback body into a prediction snapshot.
func DecodeWebhook(body []byte) (*domain.Prediction, error) {
	var resp predictionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.InvalidInput("Malformed prediction payload.")
	}
	p, err := resp.toDomain()
	if err != nil {
		return nil, domain.InvalidInput("Malformed prediction payload.")
	}
	return p, nil
}
