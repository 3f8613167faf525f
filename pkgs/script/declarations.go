// Package script parses and executes the textual control language: a
// declaration header binding variables to points, followed by a small
// imperative body run in a sandboxed evaluator with no I/O surface.
package script

import (
	"fmt"
	"regexp"
	"strings"
)

// DeclType is the declared kind of a script variable.
type DeclType string

const (
	DigitalInput   DeclType = "digital_input"
	DigitalOutput  DeclType = "digital_output"
	AnalogueInput  DeclType = "analogue_input"
	AnalogueOutput DeclType = "analogue_output"
)

// IsInput reports whether the declaration reads from its bound point.
func (t DeclType) IsInput() bool {
	return t == DigitalInput || t == AnalogueInput
}

// IsDigital reports whether the variable carries a boolean.
func (t DeclType) IsDigital() bool {
	return t == DigitalInput || t == DigitalOutput
}

// Declaration is one header line: a type and a variable name.
type Declaration struct {
	Type DeclType `json:"type"`
	Name string   `json:"name"`
}

// reDecl matches one declaration line: the type keyword, an identifier, an
// optional semicolon and an optional trailing comment. Case-insensitive.
var reDecl = regexp.MustCompile(`(?i)^\s*(digital_input|digital_output|analogue_input|analogue_output)\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*;?(\s*#.*)?$`)

// ParseDeclarations splits the source into its header declarations and the
// body. Blank lines and comments inside the header are tolerated; the first
// other line ends the header. Header lines are commented out in the
// returned body so that line numbers in body errors match the source.
func ParseDeclarations(source string) ([]Declaration, string, error) {
	var decls []Declaration
	seen := map[string]bool{}
	inHeader := true

	lines := strings.Split(source, "\n")
	bodyLines := make([]string, 0, len(lines))

	for i, line := range lines {
		stripped := strings.TrimSpace(line)

		if stripped == "" || strings.HasPrefix(stripped, "#") {
			bodyLines = append(bodyLines, line)
			continue
		}

		if m := reDecl.FindStringSubmatch(stripped); inHeader && m != nil {
			declType := DeclType(strings.ToLower(m[1]))
			name := m[2]
			if seen[name] {
				return nil, "", fmt.Errorf("line %d: variable %q declared twice", i+1, name)
			}
			seen[name] = true
			decls = append(decls, Declaration{Type: declType, Name: name})
			bodyLines = append(bodyLines, "# "+line)
			continue
		}

		// first non-declaration line ends the header
		inHeader = false
		bodyLines = append(bodyLines, line)
	}

	return decls, strings.Join(bodyLines, "\n"), nil
}
