package cookie

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Scheme prefixes the signed token inside the cookie value so the format can
// evolve without renaming the cookie.
const Scheme = "Bearer "

// Transport moves the session credential between the signed-token form and
// the Set-Cookie / Cookie headers.
type Transport struct {
	name   string
	secure bool
}

func NewTransport(name string, secure bool) *Transport {
	return &Transport{name: name, secure: secure}
}

// Encode builds the Set-Cookie header value for a signed token. maxAge must
// be the stored record's expiresAt-issuedAt so client and server expiry agree.
func (t *Transport) Encode(rawToken string, maxAge time.Duration) string {
	value := fmt.Sprintf("%s=%s%s; HttpOnly; Max-Age=%d; Path=/", t.name, Scheme, rawToken, int(maxAge.Seconds()))
	if t.secure {
		value += "; Secure"
	}
	return value
}

// Revoke builds a Set-Cookie header value that overwrites the credential and
// expires it client-side almost immediately.
func (t *Transport) Revoke() string {
	value := fmt.Sprintf("%s=1; HttpOnly; Max-Age=1; Path=/", t.name)
	if t.secure {
		value += "; Secure"
	}
	return value
}

// Decode strips the scheme marker from a presented cookie value. The second
// return is false when there is nothing usable to authenticate.
func (t *Transport) Decode(value string) (string, bool) {
	raw, found := strings.CutPrefix(value, Scheme)
	if !found || raw == "" {
		return "", false
	}
	return raw, true
}

// Value pulls the raw credential (scheme marker included) out of the request.
// The cookie value contains a space, which net/http's cookie parser refuses,
// so the Cookie header is scanned directly.
func (t *Transport) Value(r *http.Request) (string, bool) {
	for _, part := range strings.Split(r.Header.Get("Cookie"), ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name != t.name {
			continue
		}
		return value, value != ""
	}
	return "", false
}

// Attach sets the credential on the response.
func (t *Transport) Attach(h http.Header, setCookie string) {
	h.Add("Set-Cookie", setCookie)
}
