package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/config"
)

type fakeConnectionTester struct {
	err error
}

func (f *fakeConnectionTester) TestConnection(context.Context) error {
	return f.err
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name           string
		tester         ConnectionTester
		wantDatasource string
	}{
		{name: "without datasource", tester: nil, wantDatasource: ""},
		{name: "datasource up", tester: &fakeConnectionTester{}, wantDatasource: "ok"},
		{name: "datasource down", tester: &fakeConnectionTester{err: errors.New("login failed")}, wantDatasource: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(&config.Config{Version: "test-version"}, tt.tester, zap.NewNop())

			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
			}

			var response HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != "ok" {
				t.Errorf("expected status 'ok', got '%s'", response.Status)
			}
			if response.Datasource != tt.wantDatasource {
				t.Errorf("expected datasource %q, got %q", tt.wantDatasource, response.Datasource)
			}
		})
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Env: "test"}
	handler := NewHealthHandler(cfg, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Version != "1.2.3" || response.Environment != "test" || response.Service != "ekaya-askdb" {
		t.Errorf("unexpected ping response: %+v", response)
	}
}
