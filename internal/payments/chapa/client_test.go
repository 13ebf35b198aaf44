package chapa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req InitializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "TX-1-1", req.TxRef)
		require.Equal(t, "ETB", req.Currency)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "success",
			"message": "Hosted Link",
			"data":    map[string]string{"checkout_url": "https://checkout.chapa.co/abc"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	url, err := c.Initialize(context.Background(), InitializeRequest{
		Amount: 100, Currency: "ETB", Email: "a@b.c", TxRef: "TX-1-1",
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.chapa.co/abc", url)
}

func TestInitializeMissingCheckoutURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success"})
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.Initialize(context.Background(), InitializeRequest{TxRef: "TX-1-2"})
	require.Error(t, err)
}

func TestInitializeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "failed", "message": "Invalid API Key"})
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	_, err := c.Initialize(context.Background(), InitializeRequest{TxRef: "TX-1-3"})
	require.ErrorContains(t, err, "Invalid API Key")
}

func TestVerifyStatusMapping(t *testing.T) {
	cases := []struct {
		gateway string
		want    Status
	}{
		{"success", StatusSuccess},
		{"failed", StatusFailed},
		{"pending", StatusPending},
		{"processing", StatusPending}, // anything unrecognized stays pending
	}
	for _, tc := range cases {
		t.Run(tc.gateway, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/transaction/verify/TX-9-9", r.URL.Path)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status": "success",
					"data":   map[string]string{"status": tc.gateway},
				})
			}))
			defer srv.Close()

			c := New(srv.URL, "k")
			got, err := c.Verify(context.Background(), "TX-9-9")
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
