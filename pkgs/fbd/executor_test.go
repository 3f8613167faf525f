package fbd

import (
	"reflect"
	"testing"
)

type fakeIO struct {
	points map[int64]interface{}
	writes map[int64]interface{}
}

func newFakeIO() *fakeIO {
	return &fakeIO{points: map[int64]interface{}{}, writes: map[int64]interface{}{}}
}

func (f *fakeIO) ReadPoint(id int64) (interface{}, bool) {
	v, ok := f.points[id]
	return v, ok
}

func (f *fakeIO) WritePoint(id int64, v interface{}) {
	f.writes[id] = v
}

func constDig(id string, value bool) Node {
	return Node{ID: id, Type: "CONST_DIG", Outputs: 1, Params: map[string]interface{}{"value": value}}
}

func TestDiagramRoundTrip(t *testing.T) {
	raw := `{"nodes":[{"id":"a","type":"CONST_ANA","inputs":0,"outputs":1,"params":{"value":2.5}},{"id":"b","type":"ANA_DISP","inputs":1,"outputs":1}],"edges":[{"fromNode":"a","fromPort":0,"toNode":"b","toPort":0}]}`

	d, err := ParseDiagram(raw)
	if err != nil {
		t.Fatalf("ParseDiagram() error = %v", err)
	}
	out, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	d2, err := ParseDiagram(out)
	if err != nil {
		t.Fatalf("re-parse error = %v", err)
	}
	if !reflect.DeepEqual(d, d2) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", d, d2)
	}
}

func TestDiagramFromMap(t *testing.T) {
	m := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "n1", "type": "NOT", "inputs": 1, "outputs": 1},
		},
		"edges": []interface{}{},
	}
	d, err := ParseDiagram(m)
	if err != nil {
		t.Fatalf("ParseDiagram(map) error = %v", err)
	}
	if len(d.Nodes) != 1 || d.Nodes[0].Type != "NOT" {
		t.Errorf("parsed diagram = %+v", d)
	}
}

func TestEmptyDiagram(t *testing.T) {
	for _, raw := range []interface{}{nil, "", []byte{}} {
		d, err := ParseDiagram(raw)
		if err != nil {
			t.Fatalf("ParseDiagram(%v) error = %v", raw, err)
		}
		e := NewExecutor("empty", d, nil)
		values := e.Cycle()
		if len(values) != 0 {
			t.Errorf("empty diagram produced values: %v", values)
		}
		if e.CycleDetected {
			t.Errorf("empty diagram flagged as cyclic")
		}
	}
}

func TestAndXorThreeInputs(t *testing.T) {
	d := Diagram{
		Nodes: []Node{
			constDig("a", true),
			constDig("b", true),
			constDig("c", false),
			{ID: "and3", Type: "AND", Inputs: 3, Outputs: 1},
			{ID: "xor3", Type: "XOR", Inputs: 3, Outputs: 1},
		},
	}
	for i, src := range []string{"a", "b", "c"} {
		d.Edges = append(d.Edges,
			Edge{FromNode: src, FromPort: 0, ToNode: "and3", ToPort: i},
			Edge{FromNode: src, FromPort: 0, ToNode: "xor3", ToPort: i})
	}

	values := NewExecutor("gates", d, nil).Cycle()

	if got := values["and3"][0]; got != false {
		t.Errorf("AND(true,true,false) = %v, want false", got)
	}
	if got := values["xor3"][0]; got != false {
		t.Errorf("XOR(true,true,false) = %v, want false (even count)", got)
	}
}

func TestCyclicGraphBestEffort(t *testing.T) {
	d := Diagram{
		Nodes: []Node{
			{ID: "n1", Type: "NOT", Inputs: 1, Outputs: 1},
			{ID: "n2", Type: "NOT", Inputs: 1, Outputs: 1},
		},
		Edges: []Edge{
			{FromNode: "n1", FromPort: 0, ToNode: "n2", ToPort: 0},
			{FromNode: "n2", FromPort: 0, ToNode: "n1", ToPort: 0},
		},
	}
	e := NewExecutor("loop", d, nil)
	if !e.CycleDetected {
		t.Fatalf("cycle not detected")
	}
	values := e.Cycle()
	if len(values) != 2 {
		t.Errorf("expected values for both nodes, got %v", values)
	}
	// a second pass must behave the same
	values2 := e.Cycle()
	if !reflect.DeepEqual(values, values2) {
		t.Errorf("cyclic program not stable between passes")
	}
}

func TestArithmeticChain(t *testing.T) {
	d := Diagram{
		Nodes: []Node{
			{ID: "c1", Type: "CONST_ANA", Outputs: 1, Params: map[string]interface{}{"value": 10.0}},
			{ID: "c2", Type: "CONST_ANA", Outputs: 1, Params: map[string]interface{}{"value": 4.0}},
			{ID: "sub", Type: "SUB", Inputs: 2, Outputs: 1},
			{ID: "div", Type: "DIV", Inputs: 2, Outputs: 1},
		},
		Edges: []Edge{
			{FromNode: "c1", FromPort: 0, ToNode: "sub", ToPort: 0},
			{FromNode: "c2", FromPort: 0, ToNode: "sub", ToPort: 1},
			{FromNode: "sub", FromPort: 0, ToNode: "div", ToPort: 0},
			{FromNode: "c2", FromPort: 0, ToNode: "div", ToPort: 1},
		},
	}
	values := NewExecutor("arith", d, nil).Cycle()
	if got := values["sub"][0]; got != 6.0 {
		t.Errorf("SUB(10,4) = %v, want 6", got)
	}
	if got := values["div"][0]; got != 1.5 {
		t.Errorf("DIV(6,4) = %v, want 1.5", got)
	}
}

func TestIOBlocks(t *testing.T) {
	io := newFakeIO()
	io.points[7] = "21.5"
	io.points[8] = "1"

	d := Diagram{
		Nodes: []Node{
			{ID: "in", Type: "ANALOG_IN", Outputs: 1, Params: map[string]interface{}{"pointId": 7}},
			{ID: "din", Type: "DIGITAL_IN", Outputs: 1, Params: map[string]interface{}{"pointId": 8}},
			{ID: "out", Type: "ANALOG_OUT", Inputs: 1, Outputs: 1, Params: map[string]interface{}{"pointId": 9}},
			{ID: "dout", Type: "DIGITAL_OUT", Inputs: 1, Outputs: 1, Params: map[string]interface{}{"pointId": 11}},
		},
		Edges: []Edge{
			{FromNode: "in", FromPort: 0, ToNode: "out", ToPort: 0},
			{FromNode: "din", FromPort: 0, ToNode: "dout", ToPort: 0},
		},
	}
	values := NewExecutor("io", d, io).Cycle()

	if got := values["in"][0]; got != 21.5 {
		t.Errorf("ANALOG_IN = %v, want 21.5", got)
	}
	if got := io.writes[9]; got != 21.5 {
		t.Errorf("ANALOG_OUT wrote %v, want 21.5", got)
	}
	if got := io.writes[11]; got != true {
		t.Errorf("DIGITAL_OUT wrote %v, want true", got)
	}
}

func TestUnknownBlockYieldsNulls(t *testing.T) {
	d := Diagram{Nodes: []Node{{ID: "x", Type: "FROBNICATE", Inputs: 1, Outputs: 2}}}
	values := NewExecutor("u", d, nil).Cycle()
	want := []interface{}{nil, nil}
	if !reflect.DeepEqual(values["x"], want) {
		t.Errorf("unknown block = %v, want %v", values["x"], want)
	}
}

func TestOutputVectorWidth(t *testing.T) {
	// every node's result vector is exactly outputs_count wide
	d := Diagram{
		Nodes: []Node{
			{ID: "c", Type: "CONST_ANA", Outputs: 1, Params: map[string]interface{}{"value": 6.0}},
			{ID: "split", Type: "SPLITTER", Inputs: 1, Outputs: 3},
			{ID: "dec", Type: "DECODER", Inputs: 1, Outputs: 4},
			{ID: "bits", Type: "BIN_TO_DIG", Inputs: 1, Outputs: 4},
		},
		Edges: []Edge{
			{FromNode: "c", FromPort: 0, ToNode: "split", ToPort: 0},
			{FromNode: "split", FromPort: 1, ToNode: "dec", ToPort: 0},
			{FromNode: "split", FromPort: 2, ToNode: "bits", ToPort: 0},
		},
	}
	values := NewExecutor("w", d, nil).Cycle()
	for _, n := range d.Nodes {
		if len(values[n.ID]) != n.Outputs {
			t.Errorf("node %s width = %d, want %d", n.ID, len(values[n.ID]), n.Outputs)
		}
	}
	// DECODER(6) with 4 outputs: index out of nothing -> one-hot at 6 is out of range? no: 6 >= 4 so all false
	if !reflect.DeepEqual(values["dec"], []interface{}{false, false, false, false}) {
		t.Errorf("DECODER(6) = %v", values["dec"])
	}
	// BIN_TO_DIG(6) = 0b0110
	if !reflect.DeepEqual(values["bits"], []interface{}{false, true, true, false}) {
		t.Errorf("BIN_TO_DIG(6) = %v", values["bits"])
	}
}

func TestFlatten(t *testing.T) {
	flat := Flatten(map[string][]interface{}{
		"a": {true, 2.0},
	})
	want := map[string]interface{}{"a_out_0": true, "a_out_1": 2.0}
	if !reflect.DeepEqual(flat, want) {
		t.Errorf("Flatten = %v, want %v", flat, want)
	}
}
