// Package policy decides whether a request may proceed based on an ordered
// table of method and path patterns.
//
// Patterns are matched segment by segment against the cleaned request path.
// A segment is a literal, a single-segment wildcard ("*" or a named
// parameter such as "{id}"), or "**" which matches any number of segments.
// A trailing "/**" also matches the prefix itself, so "/api/**" covers
// "/api". Rules are evaluated top to bottom and the first match wins. A
// request no rule matches requires authentication.
package policy

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Access is the visibility of a route.
type Access int

const (
	// RequiresAuth routes pass only for requests with a resolved identity.
	RequiresAuth Access = iota
	// Public routes pass regardless of authentication state.
	Public
)

// String returns the configuration spelling of a.
func (a Access) String() string {
	if a == Public {
		return "public"
	}
	return "requires_auth"
}

// ParseAccess parses "public" or "requires_auth" (also "authenticated").
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "permit_all":
		return Public, nil
	case "requires_auth", "authenticated":
		return RequiresAuth, nil
	}
	return RequiresAuth, fmt.Errorf("unknown access %q", s)
}

// AuthState is the outcome of request authentication.
type AuthState int

const (
	// Anonymous requests carry no usable identity.
	Anonymous AuthState = iota
	// Resolved requests carry a verified, existing user.
	Resolved
)

// ErrInvalidPattern is returned for patterns that are not absolute paths.
var ErrInvalidPattern = errors.New("policy pattern must start with /")

// Rule maps methods and a path pattern to an Access. Empty Methods, or a
// method of "*" or "ANY", matches every method.
type Rule struct {
	Methods []string
	Pattern string
	Access  Access
}

// Decision is the result of evaluating a request against the table.
type Decision struct {
	Access Access
	// Pattern is the matching rule's pattern, empty when no rule matched.
	Pattern string
}

type compiledRule struct {
	rule    Rule
	methods map[string]struct{}
	glob    glob.Glob
	// prefix is set for patterns ending in "/**" and matches exactly.
	prefix string
}

// Policy is an immutable compiled rule table, safe for concurrent use.
type Policy struct {
	rules []compiledRule
}

// New compiles rules in order.
func New(rules []Rule) (*Policy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		c, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Pattern, err)
		}
		compiled = append(compiled, c)
	}
	return &Policy{rules: compiled}, nil
}

// MustNew is New that panics on error. Intended for static tables.
func MustNew(rules []Rule) *Policy {
	p, err := New(rules)
	if err != nil {
		panic(err)
	}
	return p
}

// Default returns the policy for the built-in route table.
func Default() *Policy {
	return MustNew(DefaultRules())
}

// DefaultRules is the built-in route table. Own-account routes under
// /api/users/me are listed before the public profile lookup so that "me"
// is never treated as a user id.
func DefaultRules() []Rule {
	get := []string{http.MethodGet}
	post := []string{http.MethodPost}
	return []Rule{
		{Pattern: "/api/auth/**", Access: Public},
		{Methods: post, Pattern: "/api/users", Access: Public},
		{Methods: post, Pattern: "/api/users/login", Access: Public},
		{Methods: get, Pattern: "/api/users/email", Access: Public},
		{Methods: get, Pattern: "/oauth2/**", Access: Public},
		{Methods: get, Pattern: "/login/oauth2/**", Access: Public},
		{Methods: get, Pattern: "/health", Access: Public},
		{Methods: get, Pattern: "/metrics", Access: Public},
		{Pattern: "/api/users/me/**", Access: RequiresAuth},
		{Methods: get, Pattern: "/api/users/{id}", Access: Public},
		{Pattern: "/api/**", Access: RequiresAuth},
	}
}

// Decide returns the access of the first rule matching method and path,
// or RequiresAuth when none does.
func (p *Policy) Decide(method, requestPath string) Decision {
	method = strings.ToUpper(method)
	cleaned := cleanPath(requestPath)
	for _, r := range p.rules {
		if r.matches(method, cleaned) {
			return Decision{Access: r.rule.Access, Pattern: r.rule.Pattern}
		}
	}
	return Decision{Access: RequiresAuth}
}

// IsAllowed reports whether a request in the given state may proceed.
func (p *Policy) IsAllowed(method, requestPath string, state AuthState) bool {
	return p.Decide(method, requestPath).Allows(state)
}

// Allows reports whether a request in the given state passes d.
func (d Decision) Allows(state AuthState) bool {
	return d.Access == Public || state == Resolved
}

func (r compiledRule) matches(method, cleaned string) bool {
	if r.methods != nil {
		if _, ok := r.methods[method]; !ok {
			return false
		}
	}
	if r.prefix != "" && cleaned == r.prefix {
		return true
	}
	return r.glob.Match(cleaned)
}

func compile(r Rule) (compiledRule, error) {
	if !strings.HasPrefix(r.Pattern, "/") {
		return compiledRule{}, ErrInvalidPattern
	}

	c := compiledRule{rule: r}
	for _, m := range r.Methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "*" || m == "ANY" {
			c.methods = nil
			break
		}
		if c.methods == nil {
			c.methods = make(map[string]struct{}, len(r.Methods))
		}
		c.methods[m] = struct{}{}
	}

	pattern := r.Pattern
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasSuffix(pattern, "/**") {
		c.prefix = cleanPath(strings.TrimSuffix(pattern, "/**"))
	}

	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	for i, seg := range segments {
		segments[i] = translateSegment(seg)
	}

	g, err := glob.Compile("/"+strings.Join(segments, "/"), '/')
	if err != nil {
		return compiledRule{}, err
	}
	c.glob = g
	return c, nil
}

func translateSegment(seg string) string {
	switch {
	case seg == "**":
		return "**"
	case seg == "*", strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
		// One non-empty segment.
		return "?*"
	default:
		return glob.QuoteMeta(seg)
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
