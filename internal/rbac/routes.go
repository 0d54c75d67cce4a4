package rbac

import (
	"fmt"
	"strings"
)

// Outcome is the result of an access decision.
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// RouteRule restricts every path starting with Prefix to Roles.
type RouteRule struct {
	Prefix string
	Roles  []Role
}

func (r RouteRule) allows(role Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Decision carries the outcome and the data a caller needs to act on it.
type Decision struct {
	Outcome Outcome
	// Callback is the originally requested path, set on RedirectLogin.
	Callback string
	// Rule is the matched rule, nil when none matched or the path is public.
	Rule *RouteRule
	// Public reports that the path matched the public allowlist.
	Public bool
}

// RouteTable is an ordered, immutable list of route rules.
type RouteTable struct {
	public      []string
	rules       []RouteRule
	defaultDeny bool
}

// RouteTableOption customises a RouteTable.
type RouteTableOption func(*RouteTable)

// WithDefaultDeny makes unmatched paths require ADMIN instead of allowing any
// authenticated principal.
func WithDefaultDeny() RouteTableOption {
	return func(t *RouteTable) { t.defaultDeny = true }
}

// WithPublicPrefixes replaces the public allowlist.
func WithPublicPrefixes(prefixes ...string) RouteTableOption {
	return func(t *RouteTable) { t.public = append([]string(nil), prefixes...) }
}

// DefaultPublicPrefixes lists paths reachable without a token.
func DefaultPublicPrefixes() []string {
	return []string{
		"/login",
		"/signup",
		"/forgot-password",
		"/unauthorized",
		"/api/auth",
		"/api/password",
		"/api/checkUser",
		"/static",
		"/healthz",
		"/favicon.ico",
	}
}

// DefaultRouteRules returns the built-in rules, most specific first.
func DefaultRouteRules() []RouteRule {
	all := []Role{RoleAdmin, RoleManager, RoleEmployee}
	staff := []Role{RoleAdmin, RoleManager}
	admin := []Role{RoleAdmin}
	return []RouteRule{
		{Prefix: "/api/users", Roles: staff},
		{Prefix: "/api/reports", Roles: admin},
		{Prefix: "/api/jobs", Roles: admin},
		{Prefix: "/api/audit", Roles: admin},
		{Prefix: "/api/leave-requests/approve", Roles: staff},
		{Prefix: "/api/leave-requests/deny", Roles: staff},
		{Prefix: "/api/leave-requests", Roles: all},
		{Prefix: "/users", Roles: staff},
		{Prefix: "/reports", Roles: admin},
		{Prefix: "/settings", Roles: admin},
		{Prefix: "/departments", Roles: staff},
		{Prefix: "/leave-requests/approvals", Roles: staff},
		{Prefix: "/leave-requests", Roles: all},
		{Prefix: "/dashboard", Roles: all},
		{Prefix: "/profile", Roles: all},
	}
}

// NewRouteTable validates rules and builds a table. A rule whose prefix starts
// with an earlier rule's prefix can never match and is rejected.
func NewRouteTable(rules []RouteRule, opts ...RouteTableOption) (*RouteTable, error) {
	t := &RouteTable{public: DefaultPublicPrefixes()}
	for _, opt := range opts {
		opt(t)
	}
	for i, rule := range rules {
		if rule.Prefix == "" || !strings.HasPrefix(rule.Prefix, "/") {
			return nil, fmt.Errorf("rbac: rule %d has invalid prefix %q", i, rule.Prefix)
		}
		if len(rule.Roles) == 0 {
			return nil, fmt.Errorf("rbac: rule %q allows no roles", rule.Prefix)
		}
		for _, role := range rule.Roles {
			if !role.Valid() {
				return nil, fmt.Errorf("rbac: rule %q names unknown role %q", rule.Prefix, role)
			}
		}
		for _, earlier := range rules[:i] {
			if strings.HasPrefix(rule.Prefix, earlier.Prefix) {
				return nil, fmt.Errorf("rbac: rule %q is shadowed by earlier rule %q", rule.Prefix, earlier.Prefix)
			}
		}
		t.rules = append(t.rules, RouteRule{Prefix: rule.Prefix, Roles: append([]Role(nil), rule.Roles...)})
	}
	return t, nil
}

// DefaultRouteTable builds the table from DefaultRouteRules.
func DefaultRouteTable(opts ...RouteTableOption) *RouteTable {
	t, err := NewRouteTable(DefaultRouteRules(), opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Rules returns a copy of the rules in declaration order.
func (t *RouteTable) Rules() []RouteRule {
	out := make([]RouteRule, len(t.rules))
	for i, r := range t.rules {
		out[i] = RouteRule{Prefix: r.Prefix, Roles: append([]Role(nil), r.Roles...)}
	}
	return out
}

// IsPublic reports whether path bypasses all checks.
func (t *RouteTable) IsPublic(path string) bool {
	for _, prefix := range t.public {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Decide evaluates a request for a single resolved role.
func (t *RouteTable) Decide(path string, tokenPresent bool, role Role) Decision {
	var set RoleSet
	if role != "" {
		set = RoleSet{role}
	}
	return t.DecideRoles(path, tokenPresent, set)
}

// DecideRoles evaluates a request for every role the principal holds.
func (t *RouteTable) DecideRoles(path string, tokenPresent bool, roles RoleSet) Decision {
	if t.IsPublic(path) {
		return Decision{Outcome: Allow, Public: true}
	}
	if !tokenPresent {
		return Decision{Outcome: RedirectLogin, Callback: path}
	}
	if roles.Contains(RoleAdmin) {
		return Decision{Outcome: Allow}
	}
	for i := range t.rules {
		rule := &t.rules[i]
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		for _, role := range roles {
			if rule.allows(role) {
				return Decision{Outcome: Allow, Rule: rule}
			}
		}
		return Decision{Outcome: RedirectUnauthorized, Rule: rule}
	}
	if t.defaultDeny {
		return Decision{Outcome: RedirectUnauthorized}
	}
	return Decision{Outcome: Allow}
}
