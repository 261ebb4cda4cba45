package hostcall

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Outcome error codes produced by the connector. They travel opaquely
// through the scheduler and are interpreted by the extension runtime.
const (
	CodeDenied      = "denied"
	CodeTLSRequired = "tls_required"
	CodeInvalidURL  = "invalid_url"
	CodeTimeout     = "timeout"
	CodeNetwork     = "network"
	CodeTooLarge    = "too_large"
)

// Policy gates outbound host calls. Deny entries win over allow entries;
// an empty allow list admits every host not explicitly denied.
type Policy struct {
	AllowHosts   []string      // exact hostnames or ".suffix" domain patterns
	DenyHosts    []string      // same syntax, checked first
	RequireTLS   bool          // reject plain http URLs
	MaxBodyBytes int64         // response body cap; 0 means unlimited
	Timeout      time.Duration // per-request deadline
}

// DefaultPolicy returns the policy applied when none is configured:
// TLS required, 4 MiB body cap, 30 s timeout, all hosts admitted.
func DefaultPolicy() Policy {
	return Policy{
		RequireTLS:   true,
		MaxBodyBytes: 4 << 20,
		Timeout:      30 * time.Second,
	}
}

// violation is a policy rejection carrying a stable outcome code.
type violation struct {
	code    string
	message string
}

func (v *violation) Error() string {
	return fmt.Sprintf("%s: %s", v.code, v.message)
}

// check validates a raw URL against the policy. A nil return means the
// request may proceed to the network.
func (p Policy) check(rawURL string) *violation {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return &violation{code: CodeInvalidURL, message: fmt.Sprintf("cannot parse url %q", rawURL)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &violation{code: CodeInvalidURL, message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if p.RequireTLS && u.Scheme != "https" {
		return &violation{code: CodeTLSRequired, message: "plain http is disabled by policy"}
	}

	host := u.Hostname()
	for _, pattern := range p.DenyHosts {
		if hostMatches(host, pattern) {
			return &violation{code: CodeDenied, message: fmt.Sprintf("host %q is denied by policy", host)}
		}
	}
	if len(p.AllowHosts) > 0 {
		for _, pattern := range p.AllowHosts {
			if hostMatches(host, pattern) {
				return nil
			}
		}
		return &violation{code: CodeDenied, message: fmt.Sprintf("host %q is not on the allow list", host)}
	}
	return nil
}

// hostMatches compares a hostname against a pattern: an exact name, or a
// ".suffix" pattern matching the domain and any subdomain.
func hostMatches(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)
	if strings.HasPrefix(pattern, ".") {
		return host == pattern[1:] || strings.HasSuffix(host, pattern)
	}
	return host == pattern
}
