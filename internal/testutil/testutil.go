// Package testutil provides common test utilities and helpers for outreach
// workflow tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FelixNg1022/agent-workflow/internal/api"
	"github.com/FelixNg1022/agent-workflow/internal/flow"
	"github.com/FelixNg1022/agent-workflow/internal/messaging"
	"github.com/FelixNg1022/agent-workflow/internal/models"
	"github.com/FelixNg1022/agent-workflow/internal/store"
	"github.com/FelixNg1022/agent-workflow/internal/twiliowhatsapp"
)

// TestDeps bundles the in-memory dependency graph behind a test server so
// tests can reach into the transport and store directly.
type TestDeps struct {
	Server      *api.Server
	Store       *store.InMemoryStore
	Driver      *flow.Driver
	MsgService  *messaging.TwilioService
	MockClient  *twiliowhatsapp.MockClient
	RespHandler *messaging.ResponseHandler
}

// NewTestServer creates a test API server with in-memory dependencies.
// This centralizes the test server creation logic used across multiple test files.
func NewTestServer() *TestDeps {
	mock := twiliowhatsapp.NewMockClient()
	msgService := messaging.NewTwilioService(mock)
	st := store.NewInMemoryStore()
	driver := flow.NewDriver(st, msgService)
	respHandler := messaging.NewResponseHandler(msgService, st)
	server := api.NewServer(driver, st, msgService, respHandler, msgService)

	return &TestDeps{
		Server:      server,
		Store:       st,
		Driver:      driver,
		MsgService:  msgService,
		MockClient:  mock,
		RespHandler: respHandler,
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// AssertResponseCount validates the number of responses in store matches expected.
func AssertResponseCount(t *testing.T, st store.Store, expected int, context string) {
	t.Helper()
	responses, err := st.GetResponses(contextBackground())
	if err != nil {
		t.Fatalf("%s: failed to get responses: %v", context, err)
	}
	if len(responses) != expected {
		t.Errorf("%s: expected %d responses, got %d", context, expected, len(responses))
	}
}

// SeedTestData adds sample data to the store for testing.
func SeedTestData(t *testing.T, st store.Store) {
	t.Helper()
	ctx := contextBackground()

	testReceipts := []models.Receipt{
		{To: "+123456", Status: models.MessageStatusSent, Time: 1},
		{To: "+456789", Status: models.MessageStatusDelivered, Time: 2},
	}
	for _, receipt := range testReceipts {
		if err := st.AddReceipt(ctx, receipt); err != nil {
			t.Fatalf("failed to add test receipt: %v", err)
		}
	}

	testResponses := []models.Response{
		{From: "+123456", Body: "test response 1", Time: 10},
		{From: "+456789", Body: "test response 2", Time: 20},
	}
	for _, response := range testResponses {
		if err := st.AddResponse(ctx, response); err != nil {
			t.Fatalf("failed to add test response: %v", err)
		}
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

func contextBackground() context.Context { return context.Background() }
