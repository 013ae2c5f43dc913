package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/snowdenHM/bill/internal/config"
	"github.com/snowdenHM/bill/internal/observability/logger"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"go.uber.org/zap"
)

// TokenResponse is the subset of the OAuth response the pipeline keeps.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenClient exchanges codes and refresh tokens against the Zoho
// accounts endpoint.
type TokenClient struct {
	http        *http.Client
	accountsURL string
	log         *zap.Logger
}

func NewTokenClient(cfg config.Config, log *zap.Logger) *TokenClient {
	return &TokenClient{
		http:        &http.Client{Timeout: cfg.HTTPClientTimeout},
		accountsURL: cfg.ZohoAccountsURL,
		log:         log.Named("zoho.token"),
	}
}

// Exchange picks the grant from the credential's onboarding state:
// refresh_token once onboarded, authorization_code before that.
func (c *TokenClient) Exchange(ctx context.Context, cred *zohodomain.Credential) (*TokenResponse, error) {
	params := url.Values{}
	if cred.OnboardingStatus {
		params.Set("grant_type", "refresh_token")
		params.Set("refresh_token", cred.RefreshToken)
		params.Set("client_id", cred.ClientID)
		params.Set("client_secret", cred.ClientSecret)
	} else {
		params.Set("grant_type", "authorization_code")
		params.Set("code", cred.AccessCode)
		params.Set("client_id", cred.ClientID)
		params.Set("redirect_uri", cred.RedirectURL)
		params.Set("client_secret", cred.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountsURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Debug("token grant",
		zap.String("grant_type", params.Get("grant_type")),
		zap.String("client_id", logger.MaskAPIKey(cred.ClientID)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", zohodomain.ErrTokenGrantFailed, err)
	}
	defer resp.Body.Close()

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: %v", zohodomain.ErrTokenGrantFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", zohodomain.ErrTokenGrantFailed)
	}
	return &token, nil
}
