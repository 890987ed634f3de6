// Package paygate talks to the external payment gateway that funds escrow.
// Requests are signed with HMAC-SHA256 over merchant code, merchant ref and
// amount; callbacks are signed over the raw body.
package paygate

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const StatusPaid = "PAID"

type PaygateService struct {
	Client       *http.Client
	APIKey       string
	PrivateKey   string
	MerchantCode string
	BaseURL      string
	CallbackURL  string
	IntentTTL    time.Duration
}

func NewPaygateService(baseURL, apiKey, privateKey, merchantCode, callbackURL string) *PaygateService {
	return &PaygateService{
		Client:       &http.Client{Timeout: 15 * time.Second},
		APIKey:       apiKey,
		PrivateKey:   privateKey,
		MerchantCode: merchantCode,
		BaseURL:      baseURL,
		CallbackURL:  callbackURL,
		IntentTTL:    24 * time.Hour,
	}
}

type IntentRequest struct {
	MerchantRef   string
	Amount        decimal.Decimal
	CustomerName  string
	CustomerEmail string
	ItemName      string
	Method        string
}

type intentBody struct {
	Method        string          `json:"method"`
	MerchantRef   string          `json:"merchant_ref"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	ItemName      string          `json:"item_name"`
	Callback      string          `json:"callback_url"`
	ExpiredTime   int64           `json:"expired_time"`
	Signature     string          `json:"signature"`
}

type Intent struct {
	Reference   string          `json:"reference"`
	MerchantRef string          `json:"merchant_ref"`
	CheckoutURL string          `json:"checkout_url"`
	Amount      decimal.Decimal `json:"amount"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// CreateIntent registers a payment with the gateway and returns the
// reference stored on the Payment.
func (s *PaygateService) CreateIntent(ctx context.Context, in IntentRequest) (*Intent, error) {
	body := intentBody{
		Method:        in.Method,
		MerchantRef:   in.MerchantRef,
		Amount:        in.Amount,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		ItemName:      in.ItemName,
		Callback:      s.CallbackURL,
		ExpiredTime:   time.Now().Add(s.IntentTTL).Unix(),
		Signature:     s.sign(s.MerchantCode + in.MerchantRef + in.Amount.StringFixed(2)),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var out envelope[Intent]
	if err := s.do(ctx, http.MethodPost, "/transaction/create", bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

type Channel struct {
	Group string `json:"group"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

func (s *PaygateService) Channels(ctx context.Context) ([]Channel, error) {
	var out envelope[[]Channel]
	if err := s.do(ctx, http.MethodGet, "/merchant/payment-channel", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (s *PaygateService) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var head struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return fmt.Errorf("paygate: failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if !head.Success {
		return fmt.Errorf("paygate error: %s", head.Message)
	}
	return json.Unmarshal(raw, out)
}

// Callback is the notification the gateway posts when an intent changes state.
type Callback struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"` // PAID, EXPIRED, FAILED, REFUND
	PaidAt      int64  `json:"paid_at"`
}

// ValidateSignature checks the callback signature: HMAC-SHA256(body, private key).
func (s *PaygateService) ValidateSignature(signature string, body []byte) bool {
	expected := s.sign(string(body))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *PaygateService) sign(data string) string {
	h := hmac.New(sha256.New, []byte(s.PrivateKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
