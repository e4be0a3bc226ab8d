package gmo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Test that private requests carry the authentication headers.
func TestPrivateRequestSigning(t *testing.T) {
	var gotKey, gotTimestamp, gotSign string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("API-KEY")
		gotTimestamp = r.Header.Get("API-TIMESTAMP")
		gotSign = r.Header.Get("API-SIGN")
		w.Write([]byte(`{"status":0,"data":{"list":[]}}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "test-secret", server.URL, server.URL)

	_, err := client.OpenPositions(context.Background(), "DOGE_JPY")
	if err != nil {
		t.Fatalf("OpenPositions returned error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("Expected API-KEY header test-key, got %q", gotKey)
	}
	if gotTimestamp == "" {
		t.Error("Expected API-TIMESTAMP header to be set")
	}
	if gotSign == "" {
		t.Error("Expected API-SIGN header to be set")
	}
}

// Test that a nonzero envelope status becomes a rejection error.
func TestNonzeroStatusIsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":1,"messages":[{"message_code":"ERR-5122","message_string":"The margin is insufficient."}]}`))
	}))
	defer server.Close()

	client := NewClient("k", "s", server.URL, server.URL)

	_, err := client.OpenPosition(context.Background(), "DOGE_JPY", SideBuy, 10, 1)
	if err == nil {
		t.Fatal("Expected error for nonzero status")
	}
	if !IsRejection(err) {
		t.Errorf("Expected rejection error, got %v", err)
	}
	if IsTransient(err) {
		t.Error("Rejection should not be classified transient")
	}
}

// Test that server errors are classified transient.
func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("k", "s", server.URL, server.URL)

	_, err := client.GetTicker(context.Background(), "DOGE_JPY")
	if err == nil {
		t.Fatal("Expected error for HTTP 503")
	}
	if !IsTransient(err) {
		t.Errorf("Expected transient error, got %v", err)
	}
	if IsRejection(err) {
		t.Error("Transport failure should not be classified as rejection")
	}
}

func TestPositionParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":0,"data":{"list":[
			{"positionId":123456,"symbol":"DOGE_JPY","side":"BUY","size":"30","orderdSize":"0","price":"29.45","lossGain":"-12","leverage":"4","timestamp":"2024-05-01T02:15:06.094Z"}
		]}}`))
	}))
	defer server.Close()

	client := NewClient("k", "s", server.URL, server.URL)

	positions, err := client.OpenPositions(context.Background(), "DOGE_JPY")
	if err != nil {
		t.Fatalf("OpenPositions returned error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(positions))
	}

	p := positions[0]
	if p.ID != 123456 {
		t.Errorf("Expected position ID 123456, got %d", p.ID)
	}
	if p.Side != SideBuy {
		t.Errorf("Expected BUY side, got %s", p.Side)
	}
	if p.Price != 29.45 {
		t.Errorf("Expected entry price 29.45, got %f", p.Price)
	}
	if p.Size != 30 {
		t.Errorf("Expected size 30, got %f", p.Size)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		size, step float64
		want       string
	}{
		{30.7, 1, "30"},
		{30, 1, "30"},
		{0.057, 0.01, "0.05"},
		{12.345, 0, "12.345"},
	}

	for _, c := range cases {
		if got := FormatSize(c.size, c.step); got != c.want {
			t.Errorf("FormatSize(%v, %v) = %q, want %q", c.size, c.step, got, c.want)
		}
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("Opposite of BUY should be SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("Opposite of SELL should be BUY")
	}
}
