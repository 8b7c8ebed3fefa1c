package wsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetTransactionLogsReturnsLogMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"meta":{"logMessages":["Program X invoke [1]","Program X success"]}}}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, 2*time.Second)
	logs, err := c.GetTransactionLogs(context.Background(), "sig1")
	if err != nil {
		t.Fatalf("GetTransactionLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
}

func TestGetTransactionLogsSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":{"message":"transaction not found"}}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, 2*time.Second)
	if _, err := c.GetTransactionLogs(context.Background(), "missing-sig"); err == nil {
		t.Fatal("GetTransactionLogs should surface the RPC-level error")
	}
}

func TestGetTransactionLogsErrorsWhenResultMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":null}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, 2*time.Second)
	if _, err := c.GetTransactionLogs(context.Background(), "sig1"); err == nil {
		t.Fatal("GetTransactionLogs should error when result/meta is absent")
	}
}
