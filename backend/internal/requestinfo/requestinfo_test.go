package requestinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "203.0.113.9", "203.0.113.9"},
		{"forwarded list", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"ipv6 loopback", "::1", "127.0.0.1"},
		{"mapped", "::ffff:203.0.113.9", "203.0.113.9"},
		{"mapped in list", "::ffff:203.0.113.9, ::1", "203.0.113.9"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeIP(tt.in))
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip   string
		want bool
	}{
		{"", true},
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.0.5", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
		{"203.0.113.9", false},
		{"8.8.8.8", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPrivateIP(tt.ip))
		})
	}
}

func TestLocate_PrivateIPSkipsLookup(t *testing.T) {
	t.Parallel()

	r := NewResolver(time.Second)
	// A private address never reaches the network at all.
	r.Client = nil

	assert.Nil(t, r.Locate(context.Background(), "192.168.1.10"))
	assert.Nil(t, r.Locate(context.Background(), ""))
}

func TestLocate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/203.0.113.9/json/", req.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"city":"Lagos","region":"Lagos","country_name":"Nigeria","latitude":6.45,"longitude":3.39}`))
	}))
	defer srv.Close()

	r := &Resolver{BaseURL: srv.URL, Timeout: time.Second, Client: srv.Client()}

	loc := r.Locate(context.Background(), "203.0.113.9")
	require.NotNil(t, loc)
	assert.Equal(t, "Lagos", loc.City)
	assert.Equal(t, "Nigeria", loc.Country)
	assert.InDelta(t, 6.45, loc.Lat, 1e-9)
	assert.InDelta(t, 3.39, loc.Lng, 1e-9)
}

func TestLocate_LookupFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := &Resolver{BaseURL: srv.URL, Timeout: time.Second, Client: srv.Client()}
	assert.Nil(t, r.Locate(context.Background(), "203.0.113.9"))
}

func TestLocate_BadBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	r := &Resolver{BaseURL: srv.URL, Timeout: time.Second, Client: srv.Client()}
	assert.Nil(t, r.Locate(context.Background(), "203.0.113.9"))
}
