package matcher

import (
	"context"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ramaframework/rama/internal/core/extensions"
)

// Method matches requests whose method equals the given one, case-sensitively
// (HTTP methods are conventionally upper-case tokens).
func Method(method string) Matcher[HTTPRequest] {
	return Func[HTTPRequest](func(_ context.Context, req HTTPRequest) bool {
		return req.Method == method
	})
}

// HeaderExists matches requests carrying the named header, regardless of value.
func HeaderExists(name string) Matcher[HTTPRequest] {
	return Func[HTTPRequest](func(_ context.Context, req HTTPRequest) bool {
		_, ok := req.Header(name)
		return ok
	})
}

// HeaderValue matches requests whose named header's first value equals want.
func HeaderValue(name, want string) Matcher[HTTPRequest] {
	return Func[HTTPRequest](func(_ context.Context, req HTTPRequest) bool {
		got, ok := req.Header(name)
		return ok && got == want
	})
}

// Domain matches the request Host exactly, or as a subdomain when
// allowSubdomains is set (e.g. domain "example.com" matches
// "api.example.com" but not "notexample.com").
func Domain(domain string, allowSubdomains bool) Matcher[HTTPRequest] {
	domain = strings.ToLower(domain)
	return Func[HTTPRequest](func(_ context.Context, req HTTPRequest) bool {
		host := strings.ToLower(hostOnly(req.Host))
		if host == domain {
			return true
		}
		return allowSubdomains && strings.HasSuffix(host, "."+domain)
	})
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// Authority matches the request's authority (host[:port], as seen in an
// HTTP/2 :authority pseudo-header or HTTP/1 absolute-form request line)
// exactly.
func Authority(authority string) Matcher[HTTPRequest] {
	return Func[HTTPRequest](func(_ context.Context, req HTTPRequest) bool {
		return req.Authority == authority
	})
}

// RemoteIPRange matches when the request's remote address falls inside cidr.
func RemoteIPRange(cidr string) (Matcher[HTTPRequest], error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	return Func[HTTPRequest](func(_ context.Context, req HTTPRequest) bool {
		ip := parseIP(req.RemoteAddr)
		return ip != nil && network.Contains(ip)
	}), nil
}

func parseIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

// UriParams is the extensions entry a matching Path matcher inserts,
// carrying every :param and *wildcard capture from the pattern, decoded.
type UriParams map[string]string

// Path matches and captures a pattern like "/a/:foo/:bar/b/*rest" against
// req.Path. A leading ":name" segment captures exactly one path segment; a
// leading "*name" segment must be the last pattern segment and captures the
// remainder of the path verbatim, including any internal slashes. On
// success, a UriParams value with percent-decoded, UTF-8-validated captures
// is inserted into extensions.
func Path(pattern string) Matcher[HTTPRequest] {
	segments := splitSegments(pattern)
	return pathMatcher{segments: segments}
}

type pathMatcher struct{ segments []string }

func (m pathMatcher) Matches(ext *extensions.Extensions, _ context.Context, req HTTPRequest) bool {
	reqSegments := splitSegments(req.Path)

	params := UriParams{}
	for i, pat := range m.segments {
		switch {
		case strings.HasPrefix(pat, "*"):
			if i != len(m.segments)-1 {
				return false
			}
			remainder := strings.Join(reqSegments[min(i, len(reqSegments)):], "/")
			decoded, ok := decodeSegment(remainder)
			if !ok {
				return false
			}
			params[pat[1:]] = decoded
			if ext != nil {
				extensions.Insert(ext, params)
			}
			return true
		case strings.HasPrefix(pat, ":"):
			if i >= len(reqSegments) {
				return false
			}
			decoded, ok := decodeSegment(reqSegments[i])
			if !ok {
				return false
			}
			params[pat[1:]] = decoded
		default:
			if i >= len(reqSegments) || reqSegments[i] != pat {
				return false
			}
		}
	}

	if len(reqSegments) != len(m.segments) {
		return false
	}
	if ext != nil && len(params) > 0 {
		extensions.Insert(ext, params)
	}
	return true
}

func splitSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func decodeSegment(s string) (string, bool) {
	decoded, err := url.PathUnescape(s)
	if err != nil || !utf8.ValidString(decoded) {
		return "", false
	}
	return decoded, true
}
