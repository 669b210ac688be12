package router

import (
	"encoding/json"
	"fmt"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
)

// termNode is the JSON form of a search term. Exactly one of And, Or, Not
// or Field is set:
//
//	{"and": [{"field": "sur_name", "op": "like", "value": "Mu*"},
//	         {"not": {"field": "email1", "op": "isnull"}}]}
type termNode struct {
	And   []termNode `json:"and,omitempty"`
	Or    []termNode `json:"or,omitempty"`
	Not   *termNode  `json:"not,omitempty"`
	Field string     `json:"field,omitempty"`
	Op    string     `json:"op,omitempty"`
	Value any        `json:"value,omitempty"`
}

type termRequest struct {
	Term    json.RawMessage `json:"term"`
	Folders []int           `json:"folders,omitempty"`
}

// decodeTerm parses a JSON search term.
func decodeTerm(raw json.RawMessage) (contact.SearchTerm, error) {
	if len(raw) == 0 {
		return nil, contact.ErrInvalidSearch("missing term")
	}
	var n termNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, contact.ErrInvalidSearch("malformed term: " + err.Error())
	}
	return n.build(0)
}

const maxTermDepth = 32

func (n *termNode) build(depth int) (contact.SearchTerm, error) {
	if depth > maxTermDepth {
		return nil, contact.ErrInvalidSearch("term nested too deeply")
	}

	set := 0
	if n.And != nil {
		set++
	}
	if n.Or != nil {
		set++
	}
	if n.Not != nil {
		set++
	}
	if n.Field != "" {
		set++
	}
	if set != 1 {
		return nil, contact.ErrInvalidSearch("a term needs exactly one of and, or, not, field")
	}

	switch {
	case n.And != nil:
		ts, err := buildAll(n.And, depth)
		if err != nil {
			return nil, err
		}
		return contact.And(ts...), nil
	case n.Or != nil:
		ts, err := buildAll(n.Or, depth)
		if err != nil {
			return nil, err
		}
		return contact.Or(ts...), nil
	case n.Not != nil:
		t, err := n.Not.build(depth + 1)
		if err != nil {
			return nil, err
		}
		return contact.Not(t), nil
	}

	m := contact.ByName(n.Field)
	if m == nil {
		return nil, contact.ErrInvalidSearch("unknown field " + n.Field)
	}
	op := contact.Op(n.Op)
	switch op {
	case contact.OpEquals, contact.OpLess, contact.OpGreater, contact.OpLike:
		if n.Value == nil {
			return nil, contact.ErrInvalidSearch(fmt.Sprintf("operator %s needs a value", op))
		}
	case contact.OpIsNull:
	default:
		return nil, contact.ErrInvalidSearch("unknown operator " + n.Op)
	}
	return contact.Compare(m.Field, op, n.Value), nil
}

func buildAll(nodes []termNode, depth int) ([]contact.SearchTerm, error) {
	if len(nodes) == 0 {
		return nil, contact.ErrInvalidSearch("empty operand list")
	}
	out := make([]contact.SearchTerm, 0, len(nodes))
	for i := range nodes {
		t, err := nodes[i].build(depth + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
