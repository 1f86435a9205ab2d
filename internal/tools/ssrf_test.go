package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"
)

func TestIsPrivateAddr(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
		desc string
	}{
		{"10.0.0.1", true, "RFC 1918 class A"},
		{"172.16.0.1", true, "RFC 1918 class B lower"},
		{"172.31.255.255", true, "RFC 1918 class B upper"},
		{"192.168.1.10", true, "RFC 1918 class C"},
		{"127.0.0.2", true, "IPv4 loopback range"},
		{"169.254.1.1", true, "IPv4 link-local"},
		{"100.64.0.1", true, "carrier-grade NAT"},
		{"0.0.0.0", true, "unspecified"},
		{"::1", true, "IPv6 loopback"},
		{"::ffff:10.1.2.3", true, "IPv4-mapped private"},
		{"fc00::1", true, "IPv6 unique local"},
		{"fe80::1", true, "IPv6 link-local"},
		{"8.8.8.8", false, "public DNS"},
		{"203.0.113.1", false, "TEST-NET-3"},
		{"2001:4860:4860::8888", false, "public IPv6"},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			if got := IsPrivateAddr(netip.MustParseAddr(tc.ip)); got != tc.want {
				t.Fatalf("IsPrivateAddr(%s) = %v, want %v", tc.ip, got, tc.want)
			}
		})
	}
}

func TestFetcher_BlockPrivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("secret"))
	}))
	defer srv.Close()

	f := NewHTTPFileFetcher("", 5*time.Second, 0, true)
	_, err := f.Get(context.Background(), srv.URL)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if !errors.Is(err, ErrPrivateAddress) {
		t.Fatalf("expected ErrPrivateAddress, got %v", err)
	}
}
