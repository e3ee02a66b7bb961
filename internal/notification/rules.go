// Package notification decides who is mailed about a ticket and renders the
// message. Rules are loaded once at startup, validated and then never
// mutated, so a *Rules can be shared freely between goroutines.
package notification

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// ErrRulesNotFound is returned alongside empty rules when the file is missing.
var ErrRulesNotFound = errors.New("notification rules file not found")

const wildcard = "*"

var roleKeys = map[string]domain.Role{
	"admins":   domain.RoleAdmin,
	"managers": domain.RoleManager,
	"agents":   domain.RoleAgent,
}

// Match is the category filter for one user or a role default.
type Match struct {
	all        bool
	categories map[string]struct{}
}

// Allows reports whether the category should be notified. Comparison is case-insensitive.
func (m Match) Allows(category string) bool {
	if m.all {
		return true
	}
	_, ok := m.categories[strings.ToLower(category)]
	return ok
}

// Selector holds the rule for one role: a default plus per-user overrides
// keyed by username or full name.
type Selector struct {
	fallback    Match
	hasFallback bool
	users       map[string]Match
}

// Lookup resolves the rule for a user: username first, then full name, then the default.
func (s *Selector) Lookup(user domain.User) (Match, bool) {
	if s == nil {
		return Match{}, false
	}
	if m, ok := s.users[user.Username]; ok {
		return m, true
	}
	if m, ok := s.users[user.FullName]; ok {
		return m, true
	}
	return s.fallback, s.hasFallback
}

// Rules maps roles to selectors. A role without a selector is never notified.
type Rules struct {
	byRole map[domain.Role]*Selector
}

// EmptyRules notifies nobody.
func EmptyRules() *Rules {
	return &Rules{byRole: map[domain.Role]*Selector{}}
}

// Selector returns the rule for a role, or nil.
func (r *Rules) Selector(role domain.Role) *Selector {
	if r == nil {
		return nil
	}
	return r.byRole[role]
}

// Roles lists the roles that have a rule, in a stable order.
func (r *Rules) Roles() []domain.Role {
	if r == nil {
		return nil
	}
	roles := make([]domain.Role, 0, len(r.byRole))
	for role := range r.byRole {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roleOrder(roles[i]) < roleOrder(roles[j]) })
	return roles
}

func roleOrder(role domain.Role) int {
	switch role {
	case domain.RoleAdmin:
		return 0
	case domain.RoleManager:
		return 1
	default:
		return 2
	}
}

// LoadRules reads and validates the rules file. JSON files are accepted
// since JSON is valid YAML.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return EmptyRules(), fmt.Errorf("%w: %s", ErrRulesNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read notification rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules validates raw rules. Each of admins, managers and agents may be
// a boolean, "all", or a map of username or full name (or "*") to true,
// "all", false, null or a list of categories.
func ParseRules(data []byte) (*Rules, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse notification rules: %w", err)
	}

	rules := EmptyRules()
	for key, value := range raw {
		role, ok := roleKeys[key]
		if !ok {
			return nil, fmt.Errorf("notification rules: unknown key %q", key)
		}
		selector, err := parseSelector(value)
		if err != nil {
			return nil, fmt.Errorf("notification rules: %s: %w", key, err)
		}
		if selector != nil {
			rules.byRole[role] = selector
		}
	}
	return rules, nil
}

func parseSelector(value any) (*Selector, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool, string:
		match, err := parseMatch(v)
		if err != nil {
			return nil, err
		}
		if !match.all {
			return nil, nil
		}
		return &Selector{fallback: match, hasFallback: true}, nil
	case map[string]any:
		selector := &Selector{users: map[string]Match{}}
		for name, ruleValue := range v {
			match, err := parseMatch(ruleValue)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", name, err)
			}
			if name == wildcard {
				selector.fallback = match
				selector.hasFallback = true
				continue
			}
			selector.users[name] = match
		}
		return selector, nil
	default:
		return nil, fmt.Errorf("expected boolean, \"all\" or a map, got %T", value)
	}
}

func parseMatch(value any) (Match, error) {
	switch v := value.(type) {
	case nil:
		return Match{}, nil
	case bool:
		return Match{all: v}, nil
	case string:
		if strings.EqualFold(v, "all") {
			return Match{all: true}, nil
		}
		return Match{}, fmt.Errorf("unsupported value %q", v)
	case []any:
		cats := make(map[string]struct{}, len(v))
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return Match{}, fmt.Errorf("category %v is not a string", item)
			}
			cats[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
		}
		return Match{categories: cats}, nil
	default:
		return Match{}, fmt.Errorf("unsupported value of type %T", value)
	}
}
