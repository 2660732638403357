package aciptransport

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy is the browser-origin allow-list applied to inbound websocket
// ACIP connections. Entries are classified once at construction rather than
// re-parsed per request. Supported entry forms:
//
//   - full Origin values with scheme ("https://example.com:5173")
//   - bare hostnames ("example.com"), matched case-insensitively, any port
//   - host:port pairs ("example.com:5173")
//   - wildcards ("*.example.com"), matching the base domain and any subdomain
//   - literal non-URL Origin values ("null")
//
// A request with no Origin header at all (a non-browser client) is accepted
// or rejected according to allowMissing.
type OriginPolicy struct {
	exact        map[string]struct{}
	hosts        map[string]struct{}
	hostPorts    map[string]struct{}
	bases        []string
	allowMissing bool
}

// NewOriginPolicy builds a policy from allow-list entries. Blank entries are
// dropped; surrounding whitespace is ignored.
func NewOriginPolicy(entries []string, allowMissing bool) *OriginPolicy {
	p := &OriginPolicy{
		exact:        make(map[string]struct{}),
		hosts:        make(map[string]struct{}),
		hostPorts:    make(map[string]struct{}),
		allowMissing: allowMissing,
	}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		switch {
		case strings.Contains(entry, "://"):
			p.exact[entry] = struct{}{}
		case strings.HasPrefix(entry, "*."):
			if base := strings.ToLower(strings.TrimPrefix(entry, "*.")); base != "" {
				p.bases = append(p.bases, base)
			}
		default:
			if _, _, err := net.SplitHostPort(entry); err == nil {
				p.hostPorts[strings.ToLower(entry)] = struct{}{}
			} else {
				p.hosts[strings.ToLower(entry)] = struct{}{}
			}
			// A schemeless entry also matches a literal Origin value such
			// as "null", which never parses into a hostname.
			p.exact[entry] = struct{}{}
		}
	}
	return p
}

// Allow reports whether r's Origin header passes the policy. Pass it as
// UpgradeOptions.CheckOrigin.
func (p *OriginPolicy) Allow(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return p.allowMissing
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())
	if host != "" {
		if _, ok := p.hostPorts[host]; ok {
			return true
		}
	}
	if hostname == "" {
		return false
	}
	if _, ok := p.hosts[hostname]; ok {
		return true
	}
	for _, base := range p.bases {
		if hostname == base || strings.HasSuffix(hostname, "."+base) {
			return true
		}
	}
	return false
}
