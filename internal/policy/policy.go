// Package policy decides whether a caller may perform a verb. It knows
// nothing about resources or business rules.
package policy

import (
	"sort"
	"strings"

	"github.com/loykin/curator/internal/apperr"
)

// Verb is an HTTP method name.
type Verb string

const (
	Get    Verb = "GET"
	Post   Verb = "POST"
	Put    Verb = "PUT"
	Delete Verb = "DELETE"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID   string
	Username string
	Roles    []string
}

// Anonymous reports whether p carries no identity.
func (p *Principal) Anonymous() bool {
	return p == nil || p.Username == ""
}

// HasRole reports whether p holds role, compared after normalization.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	want := NormalizeRole(role)
	for _, r := range p.Roles {
		if NormalizeRole(r) == want {
			return true
		}
	}
	return false
}

// NormalizeRole upper-cases a role and strips a ROLE_ prefix.
func NormalizeRole(role string) string {
	r := strings.ToUpper(strings.TrimSpace(role))
	return strings.TrimPrefix(r, "ROLE_")
}

// Policy maps verbs to the roles that may perform them. A Policy is
// immutable and safe for concurrent use.
type Policy struct {
	rules map[Verb]map[string]struct{}
}

// DefaultRules is the stock verb table.
func DefaultRules() map[Verb][]string {
	return map[Verb][]string{
		Get:    {RoleUser, RoleAdmin},
		Post:   {RoleUser, RoleAdmin},
		Put:    {RoleUser, RoleAdmin},
		Delete: {RoleAdmin},
	}
}

// New builds a policy from a verb table.
func New(rules map[Verb][]string) *Policy {
	p := &Policy{rules: make(map[Verb]map[string]struct{}, len(rules))}
	for verb, roles := range rules {
		set := make(map[string]struct{}, len(roles))
		for _, r := range roles {
			if n := NormalizeRole(r); n != "" {
				set[n] = struct{}{}
			}
		}
		p.rules[Verb(strings.ToUpper(string(verb)))] = set
	}
	return p
}

// Default returns the stock policy.
func Default() *Policy { return New(DefaultRules()) }

// WithOverrides returns the stock table with the given verbs replaced.
// Keys are method names in any case.
func WithOverrides(overrides map[string][]string) *Policy {
	rules := DefaultRules()
	for verb, roles := range overrides {
		rules[Verb(strings.ToUpper(verb))] = roles
	}
	return New(rules)
}

// Allowed is the pure decision: do roles satisfy verb?
// Unknown verbs are never allowed.
func (p *Policy) Allowed(verb Verb, roles []string) bool {
	required, ok := p.rules[verb]
	if !ok {
		return false
	}
	for _, r := range roles {
		if _, hit := required[NormalizeRole(r)]; hit {
			return true
		}
	}
	return false
}

// Authorize returns nil when principal may perform verb. An anonymous
// caller is always Unauthenticated, checked before any role test.
func (p *Policy) Authorize(verb Verb, principal *Principal) error {
	if principal.Anonymous() {
		return apperr.Unauthenticated()
	}
	if !p.Allowed(verb, principal.Roles) {
		return apperr.Forbidden()
	}
	return nil
}

// Required lists the roles accepted for verb, sorted.
func (p *Policy) Required(verb Verb) []string {
	set := p.rules[verb]
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
