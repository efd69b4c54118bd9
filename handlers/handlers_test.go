package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/handlers"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const fixtureWebhookSecret = "whsec_test_secret"

// fixture wires the HTTP surface against in-memory collaborators, with the
// same route table main.go registers.
type fixture struct {
	router    *gin.Engine
	subs      *testutil.InMemorySubscriptionStore
	payments  *testutil.InMemoryPaymentStore
	processor *testutil.FakeProcessor
	objects   *testutil.FakeObjectStore
	subSvc    *services.SubscriptionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		subs:      testutil.NewInMemorySubscriptionStore(),
		payments:  testutil.NewInMemoryPaymentStore(),
		processor: testutil.NewFakeProcessor(fixtureWebhookSecret),
		objects:   &testutil.FakeObjectStore{BucketName: "docs-bucket"},
	}

	f.subSvc = services.NewSubscriptionService(f.subs, nil, common.DefaultPlans())
	docSvc := services.NewDocumentService(f.subs, f.objects, 15*time.Minute)
	paySvc := services.NewPaymentService(f.payments, f.subs, f.processor, nil)

	subHandler := handlers.NewSubscriptionHandler(f.subSvc, docSvc)
	payHandler := handlers.NewPaymentHandler(paySvc)
	webhookHandler := handlers.NewWebhookHandler(paySvc)

	f.router = gin.New()
	f.router.POST("/api/subscriptions", subHandler.Create)
	f.router.POST("/api/subscriptions/lookup", subHandler.Lookup)
	f.router.GET("/api/subscriptions", subHandler.List)
	f.router.GET("/api/subscriptions/export", subHandler.Export)
	f.router.GET("/api/subscriptions/stats", subHandler.Stats)
	f.router.GET("/api/subscriptions/:id", subHandler.GetByID)
	f.router.GET("/api/subscriptions/:id/document-url", subHandler.DocumentURL)
	f.router.PUT("/api/subscriptions/:id/extend", subHandler.Extend)
	f.router.POST("/api/stripe/create-payment-intent", payHandler.CreatePaymentIntent)
	f.router.POST("/api/stripe/create-checkout-session", payHandler.CreateCheckoutSession)
	f.router.POST("/api/stripe/webhook", webhookHandler.HandleWebhook)
	f.router.GET("/api/payments/:id", payHandler.GetPayment)
	f.router.GET("/api/payments/subscription/:subscriptionId", payHandler.ListPaymentsForSubscription)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// doRaw posts an unencoded body, as webhook deliveries must reach the
// handler byte-for-byte for signature verification.
func (f *fixture) doRaw(t *testing.T, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func validRegistration() gin.H {
	return gin.H{
		"name":                  "Jamie Rivera",
		"email":                 "jamie@example.com",
		"telegram_username":     "@jamie_r",
		"id_document_url":       "id-documents/abc123_passport.jpg",
		"terms_accepted":        true,
		"program":               "vip-signals",
		"channel_type":          "private",
		"subscription_duration": "3_months",
	}
}

func (f *fixture) createSubscription(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/subscriptions", validRegistration(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id, ok := decodeBody(t, w)["id"].(string)
	require.True(t, ok)
	return id
}
