package oauth

import (
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// AuthorizeEndpoint is the service's authorization page.
const AuthorizeEndpoint = "https://my.pcloud.com/oauth2/authorize"

const (
	redirectSchemePrefix = "pclsdk-w-"
	redirectHost         = "oauth2redirect"
)

// RedirectURL returns the redirect address registered for clientID. The
// scheme is derived from the lowercased client identifier.
func RedirectURL(clientID string) *url.URL {
	return &url.URL{
		Scheme: redirectSchemePrefix + strings.ToLower(clientID),
		Host:   redirectHost,
	}
}

// AuthorizeURL returns the implicit-grant authorization address for clientID.
func AuthorizeURL(clientID string) string {
	return oauthConfig(clientID, AuthorizeEndpoint).AuthCodeURL("",
		oauth2.SetAuthURLParam("response_type", "token"),
	)
}

func oauthConfig(clientID, endpoint string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    oauth2.Endpoint{AuthURL: endpoint},
		RedirectURL: RedirectURL(clientID).String(),
	}
}

// isRedirect reports whether u is a navigation to redirect.
func isRedirect(u, redirect *url.URL) bool {
	return u != nil &&
		strings.EqualFold(u.Scheme, redirect.Scheme) &&
		strings.EqualFold(u.Host, redirect.Host)
}

// parseFragment splits a raw fragment into key/value pairs. Each pair splits
// on its first "="; a later duplicate key replaces an earlier one.
func parseFragment(raw string) map[string]string {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")
		out[unescape(key)] = unescape(value)
	}

	return out
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}

	return s
}
