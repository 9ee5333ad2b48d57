package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Provider verify codes. 100 means paid; 101 means the payment was already
// verified once and must still be treated as paid. Everything else is a
// failed verification.
const (
	CodeOK              = 100
	CodeAlreadyVerified = 101
)

func IsSuccessCode(code int) bool {
	return code == CodeOK || code == CodeAlreadyVerified
}

// ErrGatewayRequestFailed is the only error this package lets out for
// transport-level problems and non-success request codes. Callers have no
// transport recovery strategy; they treat the attempt as failed and let the
// user retry.
var ErrGatewayRequestFailed = errors.New("payment gateway request failed")

type PaymentRequest struct {
	Amount      int64
	Description string
	CallbackURL string
	OrderRef    string
}

type PaymentSession struct {
	Authority string
	Fee       int64
	Code      int
}

type VerifyRequest struct {
	Amount    int64
	Authority string
}

type VerifyResult struct {
	RefID string
	Fee   int64
	Code  int
}

type Client interface {
	RequestPayment(ctx context.Context, req PaymentRequest) (PaymentSession, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	PaymentURL(authority string) string
}

type requestPaymentBody struct {
	MerchantID  string `json:"merchant_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
	OrderRef    string `json:"order_ref"`
}

type requestPaymentResponse struct {
	Authority string `json:"authority"`
	Fee       int64  `json:"fee"`
	Code      int    `json:"code"`
}

type verifyPaymentBody struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type verifyPaymentResponse struct {
	RefID string `json:"ref_id"`
	Fee   int64  `json:"fee"`
	Code  int    `json:"code"`
}

// HTTPClient speaks the provider's JSON protocol. Calls run through a
// circuit breaker so a dead gateway fails fast instead of tying up request
// handlers for the full timeout, every time.
type HTTPClient struct {
	baseURL    string
	merchantID string
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewHTTPClient(baseURL, merchantID string, timeout time.Duration) *HTTPClient {
	settings := gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPClient{
		baseURL:    baseURL,
		merchantID: merchantID,
		http:       &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (c *HTTPClient) RequestPayment(ctx context.Context, req PaymentRequest) (PaymentSession, error) {
	body, err := c.post(ctx, "/payment/request", requestPaymentBody{
		MerchantID:  c.merchantID,
		Amount:      req.Amount,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
		OrderRef:    req.OrderRef,
	})
	if err != nil {
		return PaymentSession{}, err
	}

	var resp requestPaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Println("[GATEWAY] [ERROR] malformed request-payment response:", err)
		return PaymentSession{}, fmt.Errorf("%w: malformed response", ErrGatewayRequestFailed)
	}
	if resp.Code != CodeOK {
		log.Println("[GATEWAY] [ERROR] request-payment refused with code:", resp.Code)
		return PaymentSession{}, fmt.Errorf("%w: gateway code %d", ErrGatewayRequestFailed, resp.Code)
	}

	return PaymentSession{Authority: resp.Authority, Fee: resp.Fee, Code: resp.Code}, nil
}

// VerifyPayment returns the provider's code as-is; judging it against the
// success set is the orchestrator's call, not a transport concern.
func (c *HTTPClient) VerifyPayment(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	body, err := c.post(ctx, "/payment/verify", verifyPaymentBody{
		MerchantID: c.merchantID,
		Amount:     req.Amount,
		Authority:  req.Authority,
	})
	if err != nil {
		return VerifyResult{}, err
	}

	var resp verifyPaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Println("[GATEWAY] [ERROR] malformed verify-payment response:", err)
		return VerifyResult{}, fmt.Errorf("%w: malformed response", ErrGatewayRequestFailed)
	}

	return VerifyResult{RefID: resp.RefID, Fee: resp.Fee, Code: resp.Code}, nil
}

func (c *HTTPClient) PaymentURL(authority string) string {
	return c.baseURL + "/payment/start/" + authority
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		log.Println("[GATEWAY] [ERROR] call failed:", path, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}
	return body, nil
}
