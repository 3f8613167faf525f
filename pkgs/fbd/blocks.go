package fbd

import (
	"math"

	"github.com/smarty-bms/smarty/pkgs/coerce"
)

// PointIO is how I/O blocks reach the point snapshot of the current cycle.
// ReadPoint returns the point's current value (read_value); WritePoint
// records a write intent that the scheduler persists at end of cycle.
type PointIO interface {
	ReadPoint(pointID int64) (interface{}, bool)
	WritePoint(pointID int64, value interface{})
}

// blockCtx is everything a block evaluation sees: the declared node, the
// raw gathered inputs and their float/bool coercions, and the point I/O.
type blockCtx struct {
	node Node
	raw  []interface{}
	f    []float64
	b    []bool
	io   PointIO
}

func (c *blockCtx) pointID() (int64, bool) {
	if c.node.Params == nil {
		return 0, false
	}
	v, ok := c.node.Params["pointId"]
	if !ok || v == nil {
		return 0, false
	}
	return coerce.Int(v), true
}

func (c *blockCtx) paramValue() interface{} {
	if c.node.Params == nil {
		return nil
	}
	return c.node.Params["value"]
}

type evalFunc func(c *blockCtx) []interface{}

// blockTable is the closed catalogue of block types. Adding a block means
// adding exactly one entry here.
var blockTable = map[string]evalFunc{
	// logic gates
	"AND": func(c *blockCtx) []interface{} {
		if len(c.b) == 0 {
			return outs(false)
		}
		return outs(allTrue(c.b))
	},
	"OR":  func(c *blockCtx) []interface{} { return outs(anyTrue(c.b)) },
	"XOR": func(c *blockCtx) []interface{} { return outs(countTrue(c.b)%2 == 1) },
	"NOT": func(c *blockCtx) []interface{} {
		if len(c.b) == 0 {
			return outs(true)
		}
		return outs(!c.b[0])
	},
	"NAND": func(c *blockCtx) []interface{} {
		if len(c.b) == 0 {
			return outs(true)
		}
		return outs(!allTrue(c.b))
	},
	"NOR":  func(c *blockCtx) []interface{} { return outs(!anyTrue(c.b)) },
	"XNOR": func(c *blockCtx) []interface{} { return outs(countTrue(c.b)%2 == 0) },

	// arithmetic
	"ADD": func(c *blockCtx) []interface{} { return outs(sum(c.f)) },
	"SUB": func(c *blockCtx) []interface{} {
		if len(c.f) == 0 {
			return outs(0.0)
		}
		return outs(c.f[0] - sum(c.f[1:]))
	},
	"MUL": func(c *blockCtx) []interface{} {
		m := 1.0
		for _, v := range c.f {
			m *= v
		}
		return outs(m)
	},
	"DIV": func(c *blockCtx) []interface{} {
		if len(c.f) == 0 {
			return outs(0.0)
		}
		d := c.f[0]
		for _, v := range c.f[1:] {
			if v == 0 {
				d = 0.0
				break
			}
			d /= v
		}
		return outs(d)
	},
	"MOD": func(c *blockCtx) []interface{} {
		if len(c.f) > 1 && c.f[1] != 0 {
			return outs(math.Mod(c.f[0], c.f[1]))
		}
		return outs(0.0)
	},
	"ABS": func(c *blockCtx) []interface{} {
		if len(c.f) == 0 {
			return outs(0.0)
		}
		return outs(math.Abs(c.f[0]))
	},
	"NEG": func(c *blockCtx) []interface{} {
		if len(c.f) == 0 {
			return outs(0.0)
		}
		return outs(-c.f[0])
	},
	"SQRT": func(c *blockCtx) []interface{} {
		if len(c.f) > 0 && c.f[0] >= 0 {
			return outs(math.Sqrt(c.f[0]))
		}
		return outs(0.0)
	},
	"POW": func(c *blockCtx) []interface{} {
		if len(c.f) > 1 {
			return outs(math.Pow(c.f[0], c.f[1]))
		}
		return outs(0.0)
	},

	// comparison on the first two inputs
	"EQ": func(c *blockCtx) []interface{} { return outs(cmp2(c.f, false, func(a, b float64) bool { return a == b })) },
	"NE": func(c *blockCtx) []interface{} { return outs(cmp2(c.f, true, func(a, b float64) bool { return a != b })) },
	"GT": func(c *blockCtx) []interface{} { return outs(cmp2(c.f, false, func(a, b float64) bool { return a > b })) },
	"GE": func(c *blockCtx) []interface{} { return outs(cmp2(c.f, false, func(a, b float64) bool { return a >= b })) },
	"LT": func(c *blockCtx) []interface{} { return outs(cmp2(c.f, false, func(a, b float64) bool { return a < b })) },
	"LE": func(c *blockCtx) []interface{} { return outs(cmp2(c.f, false, func(a, b float64) bool { return a <= b })) },

	// selection
	"SEL": func(c *blockCtx) []interface{} {
		if len(c.f) >= 3 {
			if c.b[0] {
				return outs(c.f[2])
			}
			return outs(c.f[1])
		}
		return outs(0.0)
	},
	"MAX": func(c *blockCtx) []interface{} {
		if len(c.f) == 0 {
			return outs(0.0)
		}
		m := c.f[0]
		for _, v := range c.f[1:] {
			if v > m {
				m = v
			}
		}
		return outs(m)
	},
	"MIN": func(c *blockCtx) []interface{} {
		if len(c.f) == 0 {
			return outs(0.0)
		}
		m := c.f[0]
		for _, v := range c.f[1:] {
			if v < m {
				m = v
			}
		}
		return outs(m)
	},
	"LIMIT": func(c *blockCtx) []interface{} {
		if len(c.f) >= 3 {
			mn, val, mx := c.f[0], c.f[1], c.f[2]
			return outs(math.Max(mn, math.Min(val, mx)))
		}
		return outs(0.0)
	},

	// point I/O
	"DIGITAL_IN": func(c *blockCtx) []interface{} { return outs(coerce.Bool(readBound(c))) },
	"ANALOG_IN":  func(c *blockCtx) []interface{} { return outs(coerce.Float(readBound(c))) },
	"DIGITAL_OUT": func(c *blockCtx) []interface{} {
		v := false
		if len(c.b) > 0 {
			v = c.b[0]
		}
		writeBound(c, v)
		return outs(v)
	},
	"ANALOG_OUT": func(c *blockCtx) []interface{} {
		v := 0.0
		if len(c.f) > 0 {
			v = c.f[0]
		}
		writeBound(c, v)
		return outs(v)
	},

	// constants
	"CONST_DIG": func(c *blockCtx) []interface{} { return outs(coerce.Bool(c.paramValue())) },
	"CONST_ANA": func(c *blockCtx) []interface{} { return outs(coerce.Float(c.paramValue())) },

	// multiplexing: last input selects among the preceding data inputs
	"MUX": func(c *blockCtx) []interface{} {
		if len(c.raw) < 2 {
			return outs(0.0)
		}
		sel := int(coerce.Float(c.raw[len(c.raw)-1]))
		data := c.raw[:len(c.raw)-1]
		if sel >= 0 && sel < len(data) {
			return outs(data[sel])
		}
		if len(data) > 0 {
			return outs(data[0])
		}
		return outs(0.0)
	},
	"DEMUX": func(c *blockCtx) []interface{} {
		res := make([]interface{}, c.node.Outputs)
		for i := range res {
			res[i] = 0.0
		}
		if len(c.raw) >= 2 {
			sel := int(coerce.Float(c.raw[1]))
			if sel >= 0 && sel < len(res) {
				res[sel] = c.raw[0]
			}
		}
		return res
	},

	// coding
	"ENCODER": func(c *blockCtx) []interface{} {
		idx := 0
		for i, v := range c.b {
			if v {
				idx = i
				break
			}
		}
		return outs(float64(idx))
	},
	"DECODER": func(c *blockCtx) []interface{} {
		res := make([]interface{}, c.node.Outputs)
		for i := range res {
			res[i] = false
		}
		idx := 0
		if len(c.raw) > 0 {
			idx = int(coerce.Float(c.raw[0]))
		}
		if idx >= 0 && idx < len(res) {
			res[idx] = true
		}
		return res
	},
	"BIN_TO_DIG": func(c *blockCtx) []interface{} {
		val := int64(0)
		if len(c.raw) > 0 {
			val = coerce.Int(c.raw[0])
		}
		res := make([]interface{}, c.node.Outputs)
		for i := range res {
			res[i] = (val>>uint(i))&1 == 1
		}
		return res
	},
	"DIG_TO_BIN": func(c *blockCtx) []interface{} {
		val := int64(0)
		for i, v := range c.b {
			if v {
				val |= 1 << uint(i)
			}
		}
		return outs(float64(val))
	},

	// utility
	"SPLITTER": func(c *blockCtx) []interface{} {
		var val interface{} = 0.0
		if len(c.raw) > 0 {
			val = c.raw[0]
		}
		res := make([]interface{}, c.node.Outputs)
		for i := range res {
			res[i] = val
		}
		return res
	},
	"ANA_DISP": func(c *blockCtx) []interface{} {
		if len(c.f) == 0 {
			return outs(0.0)
		}
		return outs(c.f[0])
	},
	"DIG_DISP": func(c *blockCtx) []interface{} {
		if len(c.b) == 0 {
			return outs(false)
		}
		return outs(c.b[0])
	},
}

func outs(vals ...interface{}) []interface{} { return vals }

func readBound(c *blockCtx) interface{} {
	id, ok := c.pointID()
	if !ok || c.io == nil {
		return nil
	}
	val, found := c.io.ReadPoint(id)
	if !found {
		return nil
	}
	return val
}

func writeBound(c *blockCtx, v interface{}) {
	id, ok := c.pointID()
	if !ok || c.io == nil {
		return
	}
	c.io.WritePoint(id, v)
}

func allTrue(b []bool) bool {
	for _, v := range b {
		if !v {
			return false
		}
	}
	return true
}

func anyTrue(b []bool) bool {
	for _, v := range b {
		if v {
			return true
		}
	}
	return false
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}

func cmp2(f []float64, dflt bool, op func(a, b float64) bool) bool {
	if len(f) < 2 {
		return dflt
	}
	return op(f[0], f[1])
}
