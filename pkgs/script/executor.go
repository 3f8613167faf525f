package script

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smarty-bms/smarty/pkgs/coerce"
	"github.com/smarty-bms/smarty/pkgs/model"
)

// PointAccess is the narrow point surface the executor needs: current values
// for declared inputs and a write sink for declared outputs.
type PointAccess interface {
	ReadPoint(id int64) (interface{}, bool)
	WritePoint(id int64, value interface{})
}

// Result is the outcome of one execution.
type Result struct {
	Status string // "success" or "error"
	Log    string
	Writes map[int64]string
}

// ValidationResult is returned by Validate and mirrored over HTTP.
type ValidationResult struct {
	Status       string        `json:"status"` // valid | invalid | error
	Declarations []Declaration `json:"declarations"`
	Error        string        `json:"error,omitempty"`
	Line         int           `json:"line,omitempty"`
}

// Execute runs a program against its bindings. Declarations with no point
// binding start at their type's zero value. Outputs are written back only
// when the whole body ran without error.
func Execute(program *model.ScriptProgram, bindings []model.ScriptBinding, access PointAccess) Result {
	decls, body, err := ParseDeclarations(program.CodeText)
	if err != nil {
		return failure(program, err.Error())
	}

	stmts, err := parseBody(body)
	if err != nil {
		return failure(program, err.Error())
	}

	byName := make(map[string]model.ScriptBinding, len(bindings))
	for _, b := range bindings {
		byName[b.VariableName] = b
	}

	vars := map[string]interface{}{}
	var outputs []Declaration
	for _, d := range decls {
		binding, bound := byName[d.Name]

		var raw interface{}
		if bound {
			if v, ok := access.ReadPoint(binding.PointID); ok {
				raw = v
			}
		}

		if d.Type.IsDigital() {
			vars[d.Name] = coerce.Bool(raw)
		} else {
			vars[d.Name] = coerce.Float(raw)
		}
		if !d.Type.IsInput() {
			outputs = append(outputs, d)
		}
	}

	if err := newInterp(vars).runSuite(stmts); err != nil {
		return failure(program, err.Error())
	}

	writes := make(map[int64]string, len(outputs))
	for _, d := range outputs {
		binding, bound := byName[d.Name]
		if !bound {
			continue
		}
		value := coerce.String(vars[d.Name])
		writes[binding.PointID] = value
		access.WritePoint(binding.PointID, value)
	}

	logrus.Debugf("script %s executed: %d inputs/outputs, %d writes", program.Name, len(decls), len(writes))
	return Result{Status: model.ExecutionSuccess, Log: "ok", Writes: writes}
}

func failure(program *model.ScriptProgram, msg string) Result {
	logrus.Warnf("script %s failed: %s", program.Name, msg)
	return Result{Status: model.ExecutionError, Log: msg}
}

// Validate compiles the program without running it.
func Validate(source string) ValidationResult {
	decls, body, err := ParseDeclarations(source)
	if err != nil {
		return ValidationResult{Status: "invalid", Error: err.Error(), Line: declErrLine(err)}
	}
	if decls == nil {
		decls = []Declaration{}
	}

	if _, err := parseBody(body); err != nil {
		res := ValidationResult{Status: "invalid", Declarations: decls, Error: err.Error()}
		if se, ok := err.(*SyntaxError); ok {
			res.Line = se.Line
		}
		return res
	}
	return ValidationResult{Status: "valid", Declarations: decls}
}

// LogLine renders the line stored into last_execution_log by a validation
// request.
func (r ValidationResult) LogLine() string {
	if r.Status == "valid" {
		return fmt.Sprintf("[Validation] valid, %d declarations", len(r.Declarations))
	}
	return fmt.Sprintf("[Validation] %s: %s", r.Status, r.Error)
}

func declErrLine(err error) int {
	// declaration errors are formatted "line N: ..."
	var line int
	msg := err.Error()
	if strings.HasPrefix(msg, "line ") {
		fmt.Sscanf(msg, "line %d:", &line)
	}
	return line
}
