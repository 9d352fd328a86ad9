package requestinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/user/tradedesk/backend/internal/models"
)

// Info is the normalized network context of a request: who connected,
// with what client, and (optionally) from where.
type Info struct {
	IPAddress string
	UserAgent string
	Location  *models.Location
}

// FromFiberCtx extracts ip and user agent from the request. Location is
// left nil; the audit logger resolves it lazily, off the hot path.
func FromFiberCtx(c *fiber.Ctx) Info {
	ip := NormalizeIP(c.Get("X-Forwarded-For"))
	if ip == "" {
		ip = NormalizeIP(c.IP())
	}

	ua := c.Get("User-Agent")
	if ua == "" {
		ua = "unknown"
	}

	return Info{IPAddress: ip, UserAgent: ua}
}

// NormalizeIP takes the first entry of a comma-separated list and strips
// IPv6 loopback/mapped prefixes.
func NormalizeIP(ip string) string {
	if ip == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(ip, ",")[0])
	if first == "::1" {
		return "127.0.0.1"
	}
	return strings.TrimSpace(strings.TrimPrefix(first, "::ffff:"))
}

// IsPrivateIP reports whether the address is loopback or in a private
// range. Location resolution is skipped for these.
func IsPrivateIP(ip string) bool {
	if ip == "" {
		return true
	}
	if ip == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(ip, "10.") || strings.HasPrefix(ip, "192.168.") {
		return true
	}
	if strings.HasPrefix(ip, "172.") {
		parts := strings.Split(ip, ".")
		if len(parts) > 1 {
			second, err := strconv.Atoi(parts[1])
			if err == nil && second >= 16 && second <= 31 {
				return true
			}
		}
	}
	return false
}

// Resolver looks up an approximate location for a public IP address.
// Failures are not errors worth surfacing: callers get nil and move on.
type Resolver struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewResolver returns a resolver against the public ipapi.co endpoint.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		BaseURL: "https://ipapi.co",
		Timeout: timeout,
		Client:  &http.Client{},
	}
}

type geoResponse struct {
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Country   string  `json:"country_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locate resolves a public IP to a location. Private addresses, lookup
// failures and timeouts all yield nil.
func (r *Resolver) Locate(ctx context.Context, ip string) *models.Location {
	if IsPrivateIP(ip) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/json/", r.BaseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var geo geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return nil
	}

	return &models.Location{
		City:    geo.City,
		Region:  geo.Region,
		Country: geo.Country,
		Lat:     geo.Latitude,
		Lng:     geo.Longitude,
	}
}
