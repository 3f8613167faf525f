package script

import (
	"fmt"
	"math"

	"github.com/smarty-bms/smarty/pkgs/coerce"
)

// RuntimeError reports an execution failure with the source line that raised
// it.
type RuntimeError struct {
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at line %d: %s", e.Line, e.Msg)
}

func errAt(line int, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// builtinFunc is a function exposed to scripts. There is deliberately no I/O
// surface here: the only builtins are pure numeric helpers.
type builtinFunc func(line int, args []interface{}) (interface{}, error)

// namespace is a read-only attribute bag, used for the math module.
type namespace map[string]interface{}

type interp struct {
	vars     map[string]interface{}
	builtins map[string]interface{}
}

func newInterp(vars map[string]interface{}) *interp {
	return &interp{vars: vars, builtins: defaultBuiltins()}
}

func (in *interp) runSuite(stmts []stmt) error {
	for _, s := range stmts {
		if err := in.runStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (in *interp) runStmt(s stmt) error {
	switch s := s.(type) {
	case *passStmt:
		return nil

	case *exprStmt:
		_, err := in.eval(s.value)
		return err

	case *assignStmt:
		value, err := in.eval(s.value)
		if err != nil {
			return err
		}
		if s.op != "=" {
			cur, ok := in.vars[s.target]
			if !ok {
				return errAt(s.line, "name '%s' is not defined", s.target)
			}
			value, err = applyArith(s.op[:1], cur, value, s.line)
			if err != nil {
				return err
			}
		}
		in.vars[s.target] = value
		return nil

	case *ifStmt:
		cond, err := in.eval(s.cond)
		if err != nil {
			return err
		}
		if truthy(cond) {
			return in.runSuite(s.body)
		}
		return in.runSuite(s.orElse)

	default:
		return errAt(s.stmtLine(), "unsupported statement")
	}
}

func (in *interp) eval(e expr) (interface{}, error) {
	switch e := e.(type) {
	case *numberLit:
		return e.value, nil
	case *stringLit:
		return e.value, nil
	case *boolLit:
		return e.value, nil
	case *noneLit:
		return nil, nil

	case *nameRef:
		if v, ok := in.vars[e.name]; ok {
			return v, nil
		}
		if v, ok := in.builtins[e.name]; ok {
			return v, nil
		}
		return nil, errAt(e.line, "name '%s' is not defined", e.name)

	case *attrRef:
		target, err := in.eval(e.target)
		if err != nil {
			return nil, err
		}
		ns, ok := target.(namespace)
		if !ok {
			return nil, errAt(e.line, "object has no attribute '%s'", e.name)
		}
		v, ok := ns[e.name]
		if !ok {
			return nil, errAt(e.line, "module has no attribute '%s'", e.name)
		}
		return v, nil

	case *unaryOp:
		operand, err := in.eval(e.operand)
		if err != nil {
			return nil, err
		}
		switch e.op {
		case "not":
			return !truthy(operand), nil
		case "-":
			return -coerce.Float(operand), nil
		case "+":
			return coerce.Float(operand), nil
		}
		return nil, errAt(e.line, "unknown unary operator %q", e.op)

	case *boolOp:
		left, err := in.eval(e.left)
		if err != nil {
			return nil, err
		}
		// short-circuit, returning the deciding operand like Python does
		if e.op == "and" {
			if !truthy(left) {
				return left, nil
			}
		} else {
			if truthy(left) {
				return left, nil
			}
		}
		return in.eval(e.right)

	case *condExpr:
		cond, err := in.eval(e.cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return in.eval(e.then)
		}
		return in.eval(e.orElse)

	case *binaryOp:
		left, err := in.eval(e.left)
		if err != nil {
			return nil, err
		}
		right, err := in.eval(e.right)
		if err != nil {
			return nil, err
		}
		switch e.op {
		case "==":
			return looseEqual(left, right), nil
		case "!=":
			return !looseEqual(left, right), nil
		case "<":
			return coerce.Float(left) < coerce.Float(right), nil
		case "<=":
			return coerce.Float(left) <= coerce.Float(right), nil
		case ">":
			return coerce.Float(left) > coerce.Float(right), nil
		case ">=":
			return coerce.Float(left) >= coerce.Float(right), nil
		}
		return applyArith(e.op, left, right, e.line)

	case *callExpr:
		fn, err := in.eval(e.fn)
		if err != nil {
			return nil, err
		}
		callable, ok := fn.(builtinFunc)
		if !ok {
			return nil, errAt(e.line, "object is not callable")
		}
		args := make([]interface{}, len(e.args))
		for i, a := range e.args {
			v, err := in.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return callable(e.line, args)
	}
	return nil, errAt(e.exprLine(), "unsupported expression")
}

func applyArith(op string, left, right interface{}, line int) (interface{}, error) {
	// string concatenation is the one non-numeric arithmetic case
	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}

	l := coerce.Float(left)
	r := coerce.Float(right)
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, errAt(line, "division by zero")
		}
		return l / r, nil
	case "//":
		if r == 0 {
			return nil, errAt(line, "division by zero")
		}
		return math.Floor(l / r), nil
	case "%":
		if r == 0 {
			return nil, errAt(line, "division by zero")
		}
		m := math.Mod(l, r)
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	case "**":
		return math.Pow(l, r), nil
	}
	return nil, errAt(line, "unknown operator %q", op)
}

func truthy(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	}
	return true
}

func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as == bs
	}
	if aIsStr != bIsStr {
		return false
	}
	return coerce.Float(a) == coerce.Float(b)
}

func argFloat(args []interface{}, i int) float64 {
	return coerce.Float(args[i])
}

func defaultBuiltins() map[string]interface{} {
	unary := func(name string, f func(float64) float64) builtinFunc {
		return func(line int, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, errAt(line, "%s() takes exactly one argument (%d given)", name, len(args))
			}
			return f(argFloat(args, 0)), nil
		}
	}

	mathNS := namespace{
		"pi":    math.Pi,
		"e":     math.E,
		"sqrt":  unary("sqrt", math.Sqrt),
		"sin":   unary("sin", math.Sin),
		"cos":   unary("cos", math.Cos),
		"tan":   unary("tan", math.Tan),
		"floor": unary("floor", math.Floor),
		"ceil":  unary("ceil", math.Ceil),
		"log":   unary("log", math.Log),
		"log10": unary("log10", math.Log10),
		"exp":   unary("exp", math.Exp),
		"fabs":  unary("fabs", math.Abs),
		"pow": builtinFunc(func(line int, args []interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, errAt(line, "pow() takes exactly two arguments (%d given)", len(args))
			}
			return math.Pow(argFloat(args, 0), argFloat(args, 1)), nil
		}),
	}

	return map[string]interface{}{
		"math": mathNS,
		"abs":  unary("abs", math.Abs),
		"round": builtinFunc(func(line int, args []interface{}) (interface{}, error) {
			switch len(args) {
			case 1:
				return coerce.Round(argFloat(args, 0), 0), nil
			case 2:
				return coerce.Round(argFloat(args, 0), int(argFloat(args, 1))), nil
			}
			return nil, errAt(line, "round() takes one or two arguments (%d given)", len(args))
		}),
		"min": builtinFunc(func(line int, args []interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, errAt(line, "min() expected at least one argument")
			}
			best := argFloat(args, 0)
			for i := 1; i < len(args); i++ {
				if v := argFloat(args, i); v < best {
					best = v
				}
			}
			return best, nil
		}),
		"max": builtinFunc(func(line int, args []interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, errAt(line, "max() expected at least one argument")
			}
			best := argFloat(args, 0)
			for i := 1; i < len(args); i++ {
				if v := argFloat(args, i); v > best {
					best = v
				}
			}
			return best, nil
		}),
		"bool": builtinFunc(func(line int, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, errAt(line, "bool() takes exactly one argument (%d given)", len(args))
			}
			return truthy(args[0]), nil
		}),
		"float": builtinFunc(func(line int, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, errAt(line, "float() takes exactly one argument (%d given)", len(args))
			}
			return coerce.Float(args[0]), nil
		}),
		"int": builtinFunc(func(line int, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, errAt(line, "int() takes exactly one argument (%d given)", len(args))
			}
			return float64(coerce.Int(args[0])), nil
		}),
	}
}
