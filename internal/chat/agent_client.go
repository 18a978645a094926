package chat

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"fleet-monitor-backend/internal/config"
)

// NewAgentHTTPClient returns the client used for agent calls. Client
// credentials take precedence over a static token; with neither the
// requests go out unauthenticated. Deadlines are set per attempt, so the
// client itself carries no timeout.
func NewAgentHTTPClient(cfg config.NeuroConfig, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	switch {
	case cfg.TokenURL != "" && cfg.ClientID != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		return cc.Client(ctx)
	case cfg.APIToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken, TokenType: "Bearer"})
		return oauth2.NewClient(ctx, ts)
	}
	return base
}
