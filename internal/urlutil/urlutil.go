// Package urlutil builds the absolute links the lobby hands out.
package urlutil

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginFromRequest returns scheme://host of the request, honouring
// X-Forwarded-Proto, or fallback when the request carries no host.
func OriginFromRequest(r *http.Request, fallback string) string {
	if r == nil || strings.TrimSpace(r.Host) == "" {
		return strings.TrimRight(strings.TrimSpace(fallback), "/")
	}
	return requestScheme(r) + "://" + strings.TrimSpace(r.Host)
}

// GameURL is the invite link for a room.
func GameURL(origin, roomID string) string {
	return strings.TrimRight(origin, "/") + "/games/" + url.PathEscape(roomID)
}

func requestScheme(r *http.Request) string {
	proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	if comma := strings.Index(proto, ","); comma >= 0 {
		proto = strings.TrimSpace(proto[:comma])
	}
	if proto == "http" || proto == "https" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
