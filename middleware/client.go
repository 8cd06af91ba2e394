package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP extracts the real visitor IP considering common proxy headers.
// Priority: CF-Connecting-IP > X-Real-IP > first of X-Forwarded-For > gin.ClientIP.
// Header values are only trusted when they carry a public address.
func ClientIP(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); v != "" {
		v = stripPort(v)
		if isValidPublicIP(v) {
			return v
		}
	}
	if v := strings.TrimSpace(c.GetHeader("X-Real-IP")); v != "" {
		v = stripPort(v)
		if isValidPublicIP(v) {
			return v
		}
	}
	if v := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); v != "" {
		first, _, _ := strings.Cut(v, ",")
		if cand := stripPort(strings.TrimSpace(first)); isValidPublicIP(cand) {
			return cand
		}
	}
	return stripPort(c.ClientIP())
}

func stripPort(ip string) string {
	if h, _, err := net.SplitHostPort(ip); err == nil {
		return h
	}
	return ip
}

func isValidPublicIP(ip string) bool {
	p := net.ParseIP(ip)
	if p == nil {
		return false
	}
	return !p.IsLoopback() && !p.IsPrivate() && !p.IsUnspecified()
}
