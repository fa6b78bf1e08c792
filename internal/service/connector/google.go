package connector

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/executa/knowledge-engine/internal/config"
)

// googleOAuthConfig 构造 Drive 和 Gmail 共用的 OAuth 配置
func googleOAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
	}
}

// googleTokenSource 用当前凭证构造静态 token source
func googleTokenSource(creds Credentials) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken})
}

// googleRefresh 用 refresh token 换取新的 access token
// 无需刷新时返回 nil, nil
func googleRefresh(ctx context.Context, provider string, cfg config.GoogleConfig, creds Credentials) (*Credentials, error) {
	if !needsRefresh(creds) {
		return nil, nil
	}

	conf := googleOAuthConfig(cfg)
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
	if err != nil {
		return nil, &AuthError{Provider: provider, Err: err}
	}

	refreshed := &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		refreshed.ExpiresAt = &expiry
	}
	return refreshed, nil
}
