package security

import (
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.10:54321",
			want:       "192.0.2.10",
		},
		{
			name:       "forwarded header ignored without trust",
			remoteAddr: "192.0.2.10:54321",
			xff:        "203.0.113.5",
			trustProxy: false,
			want:       "192.0.2.10",
		},
		{
			name:       "forwarded header honored with trust",
			remoteAddr: "192.0.2.10:54321",
			xff:        "203.0.113.5",
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "first address in forwarded chain wins",
			remoteAddr: "192.0.2.10:54321",
			xff:        "203.0.113.5, 198.51.100.7, 192.0.2.1",
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "garbage forwarded entries skipped",
			remoteAddr: "192.0.2.10:54321",
			xff:        "not-an-ip, 203.0.113.5",
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "192.0.2.10:54321",
			xRealIP:    "203.0.113.9",
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				r.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := GetClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
