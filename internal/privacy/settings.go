package privacy

import (
	"net/http"
	"strconv"
)

// Request headers carrying the client's privacy choices. Query parameters
// of the same meaning are accepted as a fallback.
const (
	HeaderDataSharing = "X-Privacy-Data-Sharing"
	HeaderAnalytics   = "X-Privacy-Analytics"
	HeaderLocation    = "X-Privacy-Location"

	QueryDataSharing = "data_sharing"
	QueryAnalytics   = "analytics"
	QueryLocation    = "location"
)

// Settings are the per-request privacy choices. They travel with every
// request and are never persisted.
type Settings struct {
	DataSharingEnabled      bool `json:"data_sharing_enabled"`
	AnalyticsEnabled        bool `json:"analytics_enabled"`
	LocationServicesEnabled bool `json:"location_services_enabled"`
}

// FromRequest resolves Settings from headers, falling back to query
// parameters. Absent or unparseable values resolve to false.
func FromRequest(r *http.Request) Settings {
	return Settings{
		DataSharingEnabled:      flag(r, HeaderDataSharing, QueryDataSharing),
		AnalyticsEnabled:        flag(r, HeaderAnalytics, QueryAnalytics),
		LocationServicesEnabled: flag(r, HeaderLocation, QueryLocation),
	}
}

// Apply writes s onto outgoing request headers.
func (s Settings) Apply(h http.Header) {
	h.Set(HeaderDataSharing, strconv.FormatBool(s.DataSharingEnabled))
	h.Set(HeaderAnalytics, strconv.FormatBool(s.AnalyticsEnabled))
	h.Set(HeaderLocation, strconv.FormatBool(s.LocationServicesEnabled))
}

func flag(r *http.Request, header, query string) bool {
	raw := r.Header.Get(header)
	if raw == "" {
		raw = r.URL.Query().Get(query)
	}
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return v
}
