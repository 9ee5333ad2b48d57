package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestPaymentSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/request" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body requestPaymentBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Amount != 79900000 || body.MerchantID != "merchant-1" {
			t.Errorf("unexpected request body: %+v", body)
		}
		json.NewEncoder(w).Encode(requestPaymentResponse{Authority: "A0001", Fee: 1000, Code: 100})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "merchant-1", time.Second)
	session, err := client.RequestPayment(context.Background(), PaymentRequest{
		Amount:      79900000,
		Description: "Order ORD-1",
		CallbackURL: "https://shop.example/payment/callback",
		OrderRef:    "ORD-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Authority != "A0001" || session.Fee != 1000 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if client.PaymentURL(session.Authority) != server.URL+"/payment/start/A0001" {
		t.Fatalf("unexpected payment url: %s", client.PaymentURL(session.Authority))
	}
}

func TestRequestPaymentNonSuccessCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(requestPaymentResponse{Code: -11})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "merchant-1", time.Second)
	_, err := client.RequestPayment(context.Background(), PaymentRequest{Amount: 1000})
	if !errors.Is(err, ErrGatewayRequestFailed) {
		t.Fatalf("expected ErrGatewayRequestFailed, got %v", err)
	}
}

func TestRequestPaymentServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "merchant-1", time.Second)
	_, err := client.RequestPayment(context.Background(), PaymentRequest{Amount: 1000})
	if !errors.Is(err, ErrGatewayRequestFailed) {
		t.Fatalf("expected ErrGatewayRequestFailed on 502, got %v", err)
	}
}

func TestRequestPaymentMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "merchant-1", time.Second)
	_, err := client.RequestPayment(context.Background(), PaymentRequest{Amount: 1000})
	if !errors.Is(err, ErrGatewayRequestFailed) {
		t.Fatalf("expected ErrGatewayRequestFailed on malformed body, got %v", err)
	}
}

func TestRequestPaymentTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "merchant-1", 20*time.Millisecond)
	_, err := client.RequestPayment(context.Background(), PaymentRequest{Amount: 1000})
	if !errors.Is(err, ErrGatewayRequestFailed) {
		t.Fatalf("expected ErrGatewayRequestFailed on timeout, got %v", err)
	}
}

func TestVerifyPaymentReturnsCodeUnjudged(t *testing.T) {
	codes := []int{100, 101, -21}
	for _, code := range codes {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/payment/verify" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(verifyPaymentResponse{RefID: "REF-9", Fee: 500, Code: code})
		}))

		client := NewHTTPClient(server.URL, "merchant-1", time.Second)
		result, err := client.VerifyPayment(context.Background(), VerifyRequest{Amount: 1000, Authority: "A1"})
		if err != nil {
			t.Fatalf("code %d: unexpected error: %v", code, err)
		}
		if result.Code != code {
			t.Fatalf("expected code %d passed through, got %d", code, result.Code)
		}
		server.Close()
	}
}

func TestIsSuccessCode(t *testing.T) {
	if !IsSuccessCode(100) || !IsSuccessCode(101) {
		t.Fatal("expected 100 and 101 to be success codes")
	}
	for _, code := range []int{0, 99, 102, -21} {
		if IsSuccessCode(code) {
			t.Fatalf("expected %d to be a failure code", code)
		}
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "merchant-1", time.Second)
	for i := 0; i < 7; i++ {
		_, err := client.RequestPayment(context.Background(), PaymentRequest{Amount: 1000})
		if !errors.Is(err, ErrGatewayRequestFailed) {
			t.Fatalf("call %d: expected ErrGatewayRequestFailed, got %v", i, err)
		}
	}

	if hits != 5 {
		t.Fatalf("expected breaker to stop calls after 5 consecutive failures, server saw %d", hits)
	}
}
