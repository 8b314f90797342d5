package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "lt_access"
	RefreshCookieName = "lt_refresh"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

// Tokens travel in HttpOnly cookies so they never touch client-side
// script. SameSite Lax keeps top-level navigation working.
func (cfg CookieConfig) write(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func SetAuthCookies(w http.ResponseWriter, cfg CookieConfig, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	cfg.write(w, AccessCookieName, accessToken, int(accessTTL.Seconds()))
	cfg.write(w, RefreshCookieName, refreshToken, int(refreshTTL.Seconds()))
}

func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	cfg.write(w, AccessCookieName, "", -1)
	cfg.write(w, RefreshCookieName, "", -1)
}
