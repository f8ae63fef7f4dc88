// Package payment gates HTTP routes behind the x402 micropayment
// protocol. Verification and settlement are delegated to an external
// facilitator service; this package only speaks its HTTP API.
package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eggman-xyz/eggman-go/pkg/types"
)

// HeaderPayment carries the client's signed payment payload.
const HeaderPayment = "X-Payment-Payload"

// HeaderRequired carries the requirements echoed on a 402 challenge.
const HeaderRequired = "X-Payment-Required"

// Middleware provides payment protection for HTTP handlers
type Middleware struct {
	facilitatorURL string
	client         *http.Client
}

// NewMiddleware creates a middleware instance pointing at a facilitator
func NewMiddleware(facilitatorURL string) *Middleware {
	return &Middleware{
		facilitatorURL: strings.TrimSuffix(facilitatorURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second, // Prevent indefinite hangs
		},
	}
}

// PriceTag represents payment requirements for a route
type PriceTag struct {
	Requirements types.PaymentRequirements
}

// Protect wraps an HTTP handler with payment verification and settlement
func (m *Middleware) Protect(next http.Handler, priceTag *PriceTag) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paymentHeader := r.Header.Get(HeaderPayment)
		if paymentHeader == "" {
			// No payment provided, return 402 Payment Required
			m.send402(w, &priceTag.Requirements, "")
			return
		}

		var payload types.PaymentPayload
		if err := json.Unmarshal([]byte(paymentHeader), &payload); err != nil {
			http.Error(w, fmt.Sprintf("invalid payment payload: %v", err), http.StatusBadRequest)
			return
		}

		verifyResp, err := m.verify(&types.VerifyRequest{
			X402Version:         payload.X402Version,
			PaymentPayload:      payload,
			PaymentRequirements: priceTag.Requirements,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("payment verification failed: %v", err), http.StatusInternalServerError)
			return
		}
		if !verifyResp.IsValid {
			m.send402(w, &priceTag.Requirements, verifyResp.Reason)
			return
		}

		// Collect the payment before releasing the protected resource.
		settleResp, err := m.settle(&types.SettleRequest{
			PaymentPayload:      payload,
			PaymentRequirements: priceTag.Requirements,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("payment settlement failed: %v", err), http.StatusInternalServerError)
			return
		}
		if !settleResp.Success {
			m.send402(w, &priceTag.Requirements, settleResp.Error)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// verify calls the facilitator's /verify endpoint
func (m *Middleware) verify(req *types.VerifyRequest) (*types.VerifyResponse, error) {
	var resp types.VerifyResponse
	if err := m.post("/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// settle calls the facilitator's /settle endpoint
func (m *Middleware) settle(req *types.SettleRequest) (*types.SettleResponse, error) {
	var resp types.SettleResponse
	if err := m.post("/settle", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (m *Middleware) post(path string, req, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := m.client.Post(m.facilitatorURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("facilitator request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// send402 sends a 402 Payment Required response with the route's requirements
func (m *Middleware) send402(w http.ResponseWriter, requirements *types.PaymentRequirements, reason string) {
	reqJSON, _ := json.Marshal(requirements)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderRequired, string(reqJSON))
	w.WriteHeader(http.StatusPaymentRequired)

	response := map[string]interface{}{
		"error":                "payment required",
		"payment_requirements": requirements,
	}
	if reason != "" {
		response["reason"] = reason
	}

	json.NewEncoder(w).Encode(response)
}
