package forgemod

import (
	"fmt"
	"strings"

	version "github.com/hashicorp/go-version"
)

// Requirement is a parsed version requirement expression. Expressions accept
// the operators go-version understands (=, !=, >, >=, <, <=, ~>, comma-joined)
// plus caret and tilde shorthands ("^1.2.3", "~1.2") and "*" for any version.
type Requirement struct {
	raw         string
	constraints version.Constraints
}

// ParseRequirement parses a requirement expression.
func ParseRequirement(raw string) (*Requirement, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty requirement")
	}

	parts := strings.Split(trimmed, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		expr, err := normalizeExpr(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, expr)
	}

	constraints, err := version.NewConstraint(strings.Join(normalized, ","))
	if err != nil {
		return nil, fmt.Errorf("bad requirement %q: %w", raw, err)
	}

	return &Requirement{raw: trimmed, constraints: constraints}, nil
}

// Matches reports whether v satisfies the requirement.
func (r *Requirement) Matches(v *version.Version) bool {
	return r.constraints.Check(v)
}

// MatchesString parses v and reports whether it satisfies the requirement.
// Unparseable versions never match.
func (r *Requirement) MatchesString(v string) bool {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return false
	}
	return r.Matches(parsed)
}

func (r *Requirement) String() string { return r.raw }

// normalizeExpr rewrites caret and tilde shorthands into bounded ranges.
// "^1.2.3" allows changes that do not modify the leftmost non-zero component;
// "~1.2.3" allows patch-level changes.
func normalizeExpr(expr string) (string, error) {
	switch {
	case expr == "*":
		return ">=0.0.0", nil
	case strings.HasPrefix(expr, "^"):
		return caretRange(strings.TrimSpace(expr[1:]))
	case strings.HasPrefix(expr, "~") && !strings.HasPrefix(expr, "~>"):
		return tildeRange(strings.TrimSpace(expr[1:]))
	default:
		return expr, nil
	}
}

func caretRange(base string) (string, error) {
	v, err := version.NewVersion(base)
	if err != nil {
		return "", fmt.Errorf("bad caret requirement ^%s: %w", base, err)
	}
	segs := v.Segments()
	var upper string
	switch {
	case segs[0] > 0:
		upper = fmt.Sprintf("%d.0.0", segs[0]+1)
	case len(segs) > 1 && segs[1] > 0:
		upper = fmt.Sprintf("0.%d.0", segs[1]+1)
	case len(segs) > 2:
		upper = fmt.Sprintf("0.0.%d", segs[2]+1)
	default:
		upper = "0.1.0"
	}
	return fmt.Sprintf(">=%s,<%s", v.String(), upper), nil
}

func tildeRange(base string) (string, error) {
	v, err := version.NewVersion(base)
	if err != nil {
		return "", fmt.Errorf("bad tilde requirement ~%s: %w", base, err)
	}
	segs := v.Segments()
	upper := fmt.Sprintf("%d.%d.0", segs[0], segs[1]+1)
	return fmt.Sprintf(">=%s,<%s", v.String(), upper), nil
}
