// Package processgraph models the process-graph fragments carried by query
// property filters: a mapping of node id to process invocation, in document order.
package processgraph

import (
	"encoding/json"
	"fmt"

	"github.com/geolake/stac-reader/common"
)

// Process ids of the equality operation
const (
	ProcessEq    = "eq"
	ProcessEqual = "="
)

// Argument is one argument of a process invocation: either a literal value or a
// reference to a bound parameter or to the result of another node.
type Argument struct {
	FromParameter string
	FromNode      string
	Value         interface{}
}

// IsParameterReference returns whether the argument references a bound parameter
func (a Argument) IsParameterReference() bool {
	return a.FromParameter != ""
}

// Interface returns the argument as a plain value
func (a Argument) Interface() interface{} {
	if a.FromParameter != "" {
		return map[string]interface{}{"from_parameter": a.FromParameter}
	}
	if a.FromNode != "" {
		return map[string]interface{}{"from_node": a.FromNode}
	}
	return a.Value
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Argument) UnmarshalJSON(data []byte) error {
	*a = Argument{}
	ref := struct {
		FromParameter *string `json:"from_parameter"`
		FromNode      *string `json:"from_node"`
	}{}
	if err := json.Unmarshal(data, &ref); err == nil {
		if ref.FromParameter != nil {
			a.FromParameter = *ref.FromParameter
			return nil
		}
		if ref.FromNode != nil {
			a.FromNode = *ref.FromNode
			return nil
		}
	}
	return json.Unmarshal(data, &a.Value)
}

// MarshalJSON implements json.Marshaler
func (a Argument) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Interface())
}

// Node is one process invocation of a graph
type Node struct {
	ProcessID string                      `json:"process_id"`
	Arguments common.OrderedMap[Argument] `json:"arguments"`
	Result    bool                        `json:"result,omitempty"`
}

// Graph is a process graph fragment: node id to invocation, document order kept
type Graph struct {
	common.OrderedMap[Node]
}

// EqualityValue walks the nodes in document order and returns the value carried
// by equality nodes: the y argument when x references a bound parameter, the x
// argument otherwise. The last equality node wins. found is false when the graph
// holds no equality node.
func (g Graph) EqualityValue() (value interface{}, found bool, err error) {
	for _, id := range g.Keys() {
		node, _ := g.Get(id)
		x, ok := node.Arguments.Get("x")
		if !ok {
			return nil, false, fmt.Errorf("node %s: missing argument x", id)
		}
		var v Argument
		if x.IsParameterReference() {
			y, ok := node.Arguments.Get("y")
			if !ok {
				return nil, false, fmt.Errorf("node %s: missing argument y", id)
			}
			v = y
		} else {
			v = x
		}
		if node.ProcessID == ProcessEq || node.ProcessID == ProcessEqual {
			value = v.Interface()
			found = true
		}
	}
	return value, found, nil
}
