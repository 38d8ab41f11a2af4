package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliver_NoSignatureWithoutSecret(t *testing.T) {
	sigs := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		sigs <- r.Header.Get("X-Sellerwatch-Signature")
	}))
	defer srv.Close()

	err := Deliver(context.Background(), srv.Client(), srv.URL, "", Event{Type: SnapshotRefresh})
	assert.NoError(t, err)
	assert.Empty(t, <-sigs)
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Deliver(context.Background(), srv.Client(), srv.URL, "k", Event{Type: TaskRefresh})
	assert.Error(t, err)
}

func TestSign_KnownVector(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")),
	)
}
