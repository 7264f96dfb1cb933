package rulebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operator names supported in rule conditions.
const (
	OpEq       = "eq"
	OpNeq      = "neq"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpIn       = "in"
	OpNin      = "nin"
	OpContains = "contains"
	OpExists   = "exists"
)

var knownOperators = map[string]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true,
	OpLte: true, OpIn: true, OpNin: true, OpContains: true, OpExists: true,
}

var knownFields = map[string]bool{
	FieldLegalForm: true, FieldStatus: true, FieldTaxSystem: true,
	FieldIsVATPayer: true, FieldHasEmployees: true, FieldEmployeeCount: true,
	FieldTaxTags: true, FieldPayrollFrequency: true, FieldTimezone: true,
}

// Condition is one node of a match condition tree: either a group (All or
// Any set) or a leaf predicate (Field/Op set). A non-nil empty All group is
// a vacuous AND (true); a non-nil empty Any group is a vacuous OR (false).
type Condition struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`

	Field string `json:"field,omitempty"`
	Op    string `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`
}

// MarshalJSON keeps empty groups in the payload. `omitempty` would collapse
// a vacuous OR group (matches nobody) into an empty condition (matches
// everyone) on its way through the jsonb column.
func (c Condition) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if c.All != nil {
		out["all"] = c.All
	}
	if c.Any != nil {
		out["any"] = c.Any
	}
	if c.Field != "" {
		out["field"] = c.Field
	}
	if c.Op != "" {
		out["op"] = c.Op
	}
	if c.Value != nil {
		out["value"] = c.Value
	}
	return json.Marshal(out)
}

// IsEmpty reports whether the node carries no constraint at all. Rules with
// an empty condition apply to every client.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.All == nil && c.Any == nil && c.Field == "" && c.Op == "")
}

// Validate rejects malformed trees at the store boundary so broken rules
// never reach a generation run.
func (c *Condition) Validate() error {
	if c.IsEmpty() {
		return nil
	}
	groups := 0
	if c.All != nil {
		groups++
	}
	if c.Any != nil {
		groups++
	}
	if groups > 1 {
		return fmt.Errorf("condition node cannot combine all and any")
	}
	if groups == 1 {
		if c.Field != "" || c.Op != "" {
			return fmt.Errorf("condition group cannot also be a predicate")
		}
		for i := range c.All {
			if err := c.All[i].Validate(); err != nil {
				return err
			}
		}
		for i := range c.Any {
			if err := c.Any[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	op := strings.ToLower(c.Op)
	if !knownOperators[op] {
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	if !knownFields[strings.ToLower(c.Field)] {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	switch op {
	case OpExists:
		// value ignored
	case OpIn, OpNin:
		if _, ok := c.Value.([]any); !ok {
			if _, ok := c.Value.([]string); !ok {
				return fmt.Errorf("operator %q requires a list value", op)
			}
		}
	default:
		if c.Value == nil {
			return fmt.Errorf("operator %q requires a value", op)
		}
	}
	return nil
}

// Evaluate walks the condition tree against a profile. Evaluation fails
// closed: unknown operators, unresolvable fields and type mismatches all
// count as non-match, so one malformed rule skips a client instead of
// taking the whole run down.
func Evaluate(c *Condition, p Profile) bool {
	if c.IsEmpty() {
		return true
	}
	switch {
	case c.All != nil:
		for i := range c.All {
			if !Evaluate(&c.All[i], p) {
				return false
			}
		}
		return true
	case c.Any != nil:
		for i := range c.Any {
			if Evaluate(&c.Any[i], p) {
				return true
			}
		}
		return false
	}
	return evalPredicate(c, p)
}

func evalPredicate(c *Condition, p Profile) bool {
	op := strings.ToLower(c.Op)
	if !knownOperators[op] {
		return false
	}
	actual, present := p.Field(c.Field)
	if op == OpExists {
		return present
	}
	if !present {
		return false
	}
	switch op {
	case OpEq:
		return looseEqual(actual, c.Value)
	case OpNeq:
		return !looseEqual(actual, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		a, okA := asNumber(actual)
		b, okB := asNumber(c.Value)
		if !okA || !okB {
			return false
		}
		switch op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpIn:
		return valueInList(actual, c.Value)
	case OpNin:
		if _, ok := asList(c.Value); !ok {
			return false
		}
		return !valueInList(actual, c.Value)
	case OpContains:
		return containsValue(actual, c.Value)
	}
	return false
}

// looseEqual compares a profile attribute with a JSON-decoded rule value.
// Numbers compare numerically regardless of Go type; everything else must
// match kind exactly.
func looseEqual(actual, expected any) bool {
	if a, ok := asNumber(actual); ok {
		if b, okB := asNumber(expected); okB {
			return a == b
		}
		return false
	}
	switch av := actual.(type) {
	case string:
		bv, ok := expected.(string)
		return ok && av == bv
	case bool:
		bv, ok := expected.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func valueInList(actual, listValue any) bool {
	list, ok := asList(listValue)
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(actual, item) {
			return true
		}
	}
	return false
}

// containsValue handles both list attributes (tag membership) and plain
// string substring checks.
func containsValue(actual, needle any) bool {
	if list, ok := asList(actual); ok {
		for _, item := range list {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	}
	as, okA := actual.(string)
	ns, okN := needle.(string)
	return okA && okN && strings.Contains(as, ns)
}
