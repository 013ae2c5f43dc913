package logger

import (
	"net/http"
	"net/url"
	"testing"
)

func TestMaskAuthorizationBearer(t *testing.T) {
	got := MaskAuthorization("Bearer abcdef1234")
	want := "Bearer ****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskAuthorizationZoho(t *testing.T) {
	got := MaskAuthorization("Zoho-oauthtoken 1000.abcd.efgh9876")
	want := "Zoho-oauthtoken ****9876"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Zoho-oauthtoken secrettoken1234")
	headers.Set("Content-Type", "application/json")

	masked := MaskHeaders(headers)
	if masked["Authorization"] != "Zoho-oauthtoken ****1234" {
		t.Fatalf("expected masked authorization, got %q", masked["Authorization"])
	}
	if masked["Content-Type"] != "application/json" {
		t.Fatalf("expected content type untouched, got %q", masked["Content-Type"])
	}
}

func TestMaskQuery(t *testing.T) {
	params := url.Values{}
	params.Set("client_secret", "supersecret99")
	params.Set("grant_type", "refresh_token")

	masked := MaskQuery(params)
	if masked["client_secret"] != "****et99" {
		t.Fatalf("expected masked secret, got %q", masked["client_secret"])
	}
	if masked["grant_type"] != "refresh_token" {
		t.Fatalf("expected grant type untouched, got %q", masked["grant_type"])
	}
}
