package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNominatimGeocoder_Found verifies query parameters and result mapping.
func TestNominatimGeocoder_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "1 Infinite Loop, Cupertino" {
			t.Errorf("q = %q", q.Get("q"))
		}
		if q.Get("countrycodes") != "us,ca" {
			t.Errorf("countrycodes = %q, want us,ca", q.Get("countrycodes"))
		}
		if q.Get("limit") != "1" || q.Get("format") != "jsonv2" {
			t.Errorf("unexpected query %v", q)
		}
		if ua := r.Header.Get("User-Agent"); ua != "resolver-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"37.3318","lon":"-122.0312","address":{"town":"Cupertino","state":"California","postcode":"95014","country_code":"us"}}]`))
	}))
	defer server.Close()

	g := NewNominatimGeocoder(Options{BaseURL: server.URL, UserAgent: "resolver-test"})
	loc, err := g.Geocode(context.Background(), "1 Infinite Loop, Cupertino")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if !loc.HasCoordinates() || *loc.Latitude != 37.3318 || *loc.Longitude != -122.0312 {
		t.Errorf("coordinates = (%v, %v)", loc.Latitude, loc.Longitude)
	}
	if loc.City != "Cupertino" || loc.State != "California" || loc.PostalCode != "95014" || loc.Country != "US" {
		t.Errorf("components = %+v", loc)
	}
}

// TestNominatimGeocoder_Errors verifies empty results and failures are classified.
func TestNominatimGeocoder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"no results", http.StatusOK, `[]`, ErrNotFound},
		{"server error", http.StatusInternalServerError, `{}`, ErrUnavailable},
		{"bad latitude", http.StatusOK, `[{"lat":"north","lon":"1"}]`, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			g := NewNominatimGeocoder(Options{BaseURL: server.URL, Timeout: time.Second})
			_, err := g.Geocode(context.Background(), "anywhere")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Geocode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestNominatimGeocoder_Unreachable verifies transport failures map to ErrUnavailable.
func TestNominatimGeocoder_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	g := NewNominatimGeocoder(Options{BaseURL: url, Timeout: time.Second})
	_, err := g.Geocode(context.Background(), "anywhere")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Geocode() error = %v, want ErrUnavailable", err)
	}
}
