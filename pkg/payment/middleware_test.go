package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggman-xyz/eggman-go/pkg/types"
)

func testPriceTag() *PriceTag {
	return NewPriceTag(
		types.NetworkBaseSepolia,
		"25000",
		"0x1Ce8387EA976C070f8A82C1e099a821f96F65a2e",
		"/pay",
		"one-time upload token",
		common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
	)
}

func validPayloadHeader(t *testing.T) string {
	t.Helper()
	payload := types.PaymentPayload{
		X402Version: 1,
		Scheme:      types.SchemeExact,
		Network:     types.NetworkBaseSepolia,
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

// fakeFacilitator answers /verify and /settle with canned responses.
func fakeFacilitator(t *testing.T, verify types.VerifyResponse, settle types.SettleResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(verify)
		case "/settle":
			json.NewEncoder(w).Encode(settle)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestProtectMissingHeaderReturns402(t *testing.T) {
	m := NewMiddleware("http://unused.invalid")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run without payment")
	})

	req := httptest.NewRequest(http.MethodGet, "/pay", nil)
	rec := httptest.NewRecorder()
	m.Protect(next, testPriceTag()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequired))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "payment required", body["error"])
}

func TestProtectMalformedPayloadReturns400(t *testing.T) {
	m := NewMiddleware("http://unused.invalid")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/pay", nil)
	req.Header.Set(HeaderPayment, "{not json")
	rec := httptest.NewRecorder()
	m.Protect(next, testPriceTag()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectInvalidPaymentReturns402WithReason(t *testing.T) {
	fac := fakeFacilitator(t,
		types.VerifyResponse{IsValid: false, Reason: "payer has insufficient balance"},
		types.SettleResponse{},
	)
	defer fac.Close()

	m := NewMiddleware(fac.URL)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run for an invalid payment")
	})

	req := httptest.NewRequest(http.MethodGet, "/pay", nil)
	req.Header.Set(HeaderPayment, validPayloadHeader(t))
	rec := httptest.NewRecorder()
	m.Protect(next, testPriceTag()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "payer has insufficient balance", body["reason"])
}

func TestProtectSettlementFailureReturns402(t *testing.T) {
	fac := fakeFacilitator(t,
		types.VerifyResponse{IsValid: true, Payer: "0xabc"},
		types.SettleResponse{Success: false, Error: "transaction reverted"},
	)
	defer fac.Close()

	m := NewMiddleware(fac.URL)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run when settlement fails")
	})

	req := httptest.NewRequest(http.MethodGet, "/pay", nil)
	req.Header.Set(HeaderPayment, validPayloadHeader(t))
	rec := httptest.NewRecorder()
	m.Protect(next, testPriceTag()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestProtectSettledPaymentCallsNext(t *testing.T) {
	fac := fakeFacilitator(t,
		types.VerifyResponse{IsValid: true, Payer: "0xabc"},
		types.SettleResponse{Success: true, TransactionHash: "0xdeadbeef"},
	)
	defer fac.Close()

	m := NewMiddleware(fac.URL)
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/pay", nil)
	req.Header.Set(HeaderPayment, validPayloadHeader(t))
	rec := httptest.NewRecorder()
	m.Protect(next, testPriceTag()).ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectFacilitatorDownReturns500(t *testing.T) {
	m := NewMiddleware("http://127.0.0.1:1") // nothing listens here

	req := httptest.NewRequest(http.MethodGet, "/pay", nil)
	req.Header.Set(HeaderPayment, validPayloadHeader(t))
	rec := httptest.NewRecorder()
	m.Protect(http.NotFoundHandler(), testPriceTag()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
