// Package fbd parses function-block diagrams and evaluates them one cycle
// at a time. A diagram is a DAG of typed blocks wired port-to-port; cycles
// are tolerated with a best-effort ordering so a miswired program degrades
// instead of taking the engine down.
package fbd

import (
	"encoding/json"
	"fmt"
)

// Node is one block instance. Inputs/Outputs are the declared port counts;
// Params carries per-type settings (constant values, bound point ids).
type Node struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Inputs  int                    `json:"inputs"`
	Outputs int                    `json:"outputs"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Edge wires an output port of one node into an input port of another.
type Edge struct {
	FromNode string `json:"fromNode"`
	FromPort int    `json:"fromPort"`
	ToNode   string `json:"toNode"`
	ToPort   int    `json:"toPort"`
}

type Diagram struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ParseDiagram accepts the stored diagram in any of the shapes the editor
// saves: a JSON string, raw bytes, or an already-decoded map. An empty
// input is a valid empty diagram.
func ParseDiagram(raw interface{}) (Diagram, error) {
	var d Diagram
	switch t := raw.(type) {
	case nil:
		return d, nil
	case string:
		if t == "" {
			return d, nil
		}
		if err := json.Unmarshal([]byte(t), &d); err != nil {
			return Diagram{}, fmt.Errorf("cannot parse diagram: %s", err.Error())
		}
	case []byte:
		if len(t) == 0 {
			return d, nil
		}
		if err := json.Unmarshal(t, &d); err != nil {
			return Diagram{}, fmt.Errorf("cannot parse diagram: %s", err.Error())
		}
	case map[string]interface{}:
		// round-trip through JSON to reuse the field mapping
		buf, err := json.Marshal(t)
		if err != nil {
			return Diagram{}, fmt.Errorf("cannot parse diagram: %s", err.Error())
		}
		if err := json.Unmarshal(buf, &d); err != nil {
			return Diagram{}, fmt.Errorf("cannot parse diagram: %s", err.Error())
		}
	default:
		return Diagram{}, fmt.Errorf("unsupported diagram payload %T", raw)
	}
	return d, nil
}

// Marshal renders the diagram back to its canonical JSON form.
func (d Diagram) Marshal() (string, error) {
	buf, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Flatten converts per-node output vectors into the persisted
// runtime_values shape: "<node id>_out_<port>" -> value.
func Flatten(values map[string][]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(values))
	for nodeID, outputs := range values {
		for i, val := range outputs {
			flat[fmt.Sprintf("%s_out_%d", nodeID, i)] = val
		}
	}
	return flat
}
