// Package query compiles structured filter criteria into entity-query
// predicates.
package query

import (
	"fmt"
	"strings"
	"time"
)

// DateKind selects how a date criterion bounds the query.
type DateKind string

const (
	DateOlder   DateKind = "older"
	DateNewer   DateKind = "newer"
	DateBetween DateKind = "between"
)

// AttributeOp is the comparison operator for a custom-attribute criterion.
type AttributeOp string

const (
	AttrEq       AttributeOp = "eq"
	AttrNeq      AttributeOp = "neq"
	AttrContains AttributeOp = "contains"
	AttrTrue     AttributeOp = "true"
	AttrFalse    AttributeOp = "false"
)

// StatusCriterion filters by status. When both IDs and Names are given,
// IDs take precedence and Names are ignored.
type StatusCriterion struct {
	IDs   []string
	Names []string
}

// UserCriterion filters by owning user. IDs take precedence over Usernames.
type UserCriterion struct {
	IDs       []string
	Usernames []string
}

// DateCriterion filters by the version date. A criterion missing the bound
// its kind requires contributes nothing to the predicate.
type DateCriterion struct {
	Kind DateKind
	From *time.Time
	To   *time.Time
}

// AttributeCriterion filters by one custom attribute. Multiple criteria
// combine with and.
type AttributeCriterion struct {
	Key   string
	Op    AttributeOp
	Value string
}

// Criteria is the full set of filter groups. Nil groups contribute nothing.
type Criteria struct {
	Status     *StatusCriterion
	User       *UserCriterion
	Date       *DateCriterion
	Attributes []AttributeCriterion
}

// BuildWhere compiles criteria into a single predicate string. It returns
// "" when no group produced a clause and never emits a dangling operator.
// Groups are emitted in status, user, date, attribute order.
func BuildWhere(c Criteria) string {
	var clauses []string

	if clause := statusClause(c.Status); clause != "" {
		clauses = append(clauses, clause)
	}
	if clause := userClause(c.User); clause != "" {
		clauses = append(clauses, clause)
	}
	if clause := dateClause(c.Date); clause != "" {
		clauses = append(clauses, clause)
	}
	for _, attr := range c.Attributes {
		if clause := attributeClause(attr); clause != "" {
			clauses = append(clauses, clause)
		}
	}

	return strings.Join(clauses, " and ")
}

func statusClause(s *StatusCriterion) string {
	if s == nil {
		return ""
	}
	if len(s.IDs) > 0 {
		return "status_id in " + quoteList(s.IDs)
	}
	if len(s.Names) > 0 {
		return "status.name in " + quoteList(s.Names)
	}
	return ""
}

func userClause(u *UserCriterion) string {
	if u == nil {
		return ""
	}
	if len(u.IDs) > 0 {
		return "user_id in " + quoteList(u.IDs)
	}
	if len(u.Usernames) > 0 {
		return "user.username in " + quoteList(u.Usernames)
	}
	return ""
}

// dateClause silently drops a group whose required bound is missing. This
// mirrors longstanding tool behavior: an incomplete date filter means no
// date filter, not an error.
func dateClause(d *DateCriterion) string {
	if d == nil {
		return ""
	}
	switch d.Kind {
	case DateOlder:
		if d.To == nil {
			return ""
		}
		return fmt.Sprintf("date < %q", formatDate(*d.To))
	case DateNewer:
		if d.From == nil {
			return ""
		}
		return fmt.Sprintf("date >= %q", formatDate(*d.From))
	case DateBetween:
		if d.From == nil || d.To == nil {
			return ""
		}
		return fmt.Sprintf("date >= %q and date <= %q", formatDate(*d.From), formatDate(*d.To))
	default:
		return ""
	}
}

func attributeClause(a AttributeCriterion) string {
	if a.Key == "" {
		return ""
	}
	key := escape(a.Key)
	switch a.Op {
	case AttrEq:
		return fmt.Sprintf("custom_attributes any (key is \"%s\" and value is \"%s\")", key, escape(a.Value))
	case AttrNeq:
		return fmt.Sprintf("not custom_attributes any (key is \"%s\" and value is \"%s\")", key, escape(a.Value))
	case AttrContains:
		return fmt.Sprintf("custom_attributes any (key is \"%s\" and value like \"%%%s%%\")", key, escape(a.Value))
	case AttrTrue:
		return fmt.Sprintf("custom_attributes any (key is \"%s\" and value is \"true\")", key)
	case AttrFalse:
		return fmt.Sprintf("custom_attributes any (key is \"%s\" and value is \"false\")", key)
	default:
		return ""
	}
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + escape(v) + `"`
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
