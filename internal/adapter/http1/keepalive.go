package http1

import "strings"

// KeepAlive decides whether a connection may be reused for another request,
// per RFC 7230 §6.3: HTTP/1.1 defaults to persistent unless "Connection:
// close" is present; HTTP/1.0 requires an explicit "Connection: keep-alive".
func KeepAlive(version string, headers Headers) bool {
	if headers.HasToken("Connection", "close") {
		return false
	}
	if strings.HasPrefix(version, "HTTP/1.1") {
		return true
	}
	return headers.HasToken("Connection", "keep-alive")
}

// WantsUpgrade reports whether a request asks to switch protocols via
// "Connection: upgrade" plus an Upgrade header, returning the requested
// protocol token.
func WantsUpgrade(headers Headers) (proto string, ok bool) {
	if !headers.HasToken("Connection", "upgrade") {
		return "", false
	}
	proto, ok = headers.Get("Upgrade")
	return proto, ok
}

// Wants100Continue reports whether a request carries "Expect: 100-continue",
// meaning the server must emit a 100 response before reading the body
// (unless it has already produced a final response).
func Wants100Continue(headers Headers) bool {
	return headers.HasToken("Expect", "100-continue")
}
