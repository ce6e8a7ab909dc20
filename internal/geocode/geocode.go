// Package geocode turns a free-form address into coordinates and address components.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kjstillabower/weather-resolver/internal/models"
	"github.com/kjstillabower/weather-resolver/internal/observability"
)

const (
	DefaultBaseURL      = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "weather-resolver/1.0"
	DefaultCountryCodes = "us,ca"
	defaultTimeout      = 5 * time.Second
	searchEndpoint      = "/search"
)

var (
	// ErrNotFound means the provider returned no match for the address.
	ErrNotFound = errors.New("address could not be geocoded")
	// ErrUnavailable covers transport failures and non-2xx responses.
	ErrUnavailable = errors.New("geocoding service unavailable")
)

// Geocoder resolves an address. The returned Location carries coordinates and
// whatever components the provider reported; ID and Address are left to the caller.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Location, error)
}

// Options configures a NominatimGeocoder.
type Options struct {
	BaseURL      string
	UserAgent    string
	CountryCodes string
	Timeout      time.Duration
}

// NominatimGeocoder queries an OpenStreetMap Nominatim search endpoint.
type NominatimGeocoder struct {
	client       *resty.Client
	countryCodes string
}

// NewNominatimGeocoder builds a geocoder; zero-valued options fall back to defaults.
func NewNominatimGeocoder(opts Options) *NominatimGeocoder {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.CountryCodes == "" {
		opts.CountryCodes = DefaultCountryCodes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout)

	return &NominatimGeocoder{
		client:       client,
		countryCodes: opts.CountryCodes,
	}
}

type searchResult struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Geocode returns the first match for address.
func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (models.Location, error) {
	var results []searchResult
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":              address,
			"format":         "jsonv2",
			"addressdetails": "1",
			"limit":          "1",
			"countrycodes":   g.countryCodes,
		}).
		SetResult(&results).
		Get(searchEndpoint)
	if err != nil {
		observability.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return models.Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !resp.IsSuccess() {
		observability.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return models.Location{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	if len(results) == 0 {
		observability.GeocodeRequestsTotal.WithLabelValues("not_found").Inc()
		return models.Location{}, ErrNotFound
	}

	loc, err := toLocation(results[0])
	if err != nil {
		observability.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return models.Location{}, err
	}
	observability.GeocodeRequestsTotal.WithLabelValues("found").Inc()
	return loc, nil
}

func toLocation(r searchResult) (models.Location, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: bad latitude %q", ErrUnavailable, r.Lat)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: bad longitude %q", ErrUnavailable, r.Lon)
	}

	city := r.Address.City
	if city == "" {
		city = r.Address.Town
	}
	if city == "" {
		city = r.Address.Village
	}

	return models.Location{
		Latitude:   &lat,
		Longitude:  &lon,
		PostalCode: r.Address.Postcode,
		City:       city,
		State:      r.Address.State,
		Country:    strings.ToUpper(r.Address.CountryCode),
	}, nil
}
