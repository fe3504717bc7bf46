// github.go exchanges GitHub OAuth authorization codes for user profiles. Only
// the code→token→profile flow lives here; session issuance and account
// get-or-create happen in the users API handlers.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/beatforge/forge-registry/internal/config"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

// GitHubProfile is the subset of the GitHub user object the registry stores
type GitHubProfile struct {
	ID        int64   `json:"id"`
	Login     string  `json:"login"`
	Name      *string `json:"name"`
	Email     string  `json:"email"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

// GitHubClient performs the OAuth code exchange against GitHub
type GitHubClient struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewGitHubClient creates a GitHub OAuth client from configuration
func NewGitHubClient(cfg *config.GitHubConfig) *GitHubClient {
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultGitHubAPIBaseURL
	}
	endpoint := github.Endpoint
	if cfg.OAuthBaseURL != "" {
		endpoint = oauth2.Endpoint{
			AuthURL:  cfg.OAuthBaseURL + "/login/oauth/authorize",
			TokenURL: cfg.OAuthBaseURL + "/login/oauth/access_token",
		}
	}
	return &GitHubClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ExchangeCode trades an OAuth authorization code for the user's profile
func (c *GitHubClient) ExchangeCode(ctx context.Context, code string) (*GitHubProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("User-Agent", "forge-registry")
	req.Header.Set("Accept", "application/vnd.github+json")
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GitHub profile request returned %d: %s", resp.StatusCode, body)
	}

	profile := &GitHubProfile{}
	if err := json.NewDecoder(resp.Body).Decode(profile); err != nil {
		return nil, fmt.Errorf("failed to decode GitHub profile: %w", err)
	}
	if profile.ID == 0 || profile.Login == "" {
		return nil, fmt.Errorf("GitHub profile response missing id or login")
	}

	return profile, nil
}
