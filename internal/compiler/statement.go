package compiler

import (
	"fmt"
	"strings"

	"github.com/jeff-regier/example-models/internal/ir"
)

// ParseSampling parses one sampling statement string of the form
//
//	target ~ distribution(arg, arg, ...)
//
// into its structured form. Args are kept as trimmed strings: they may be
// numeric literals, parameter names, or indexing expressions like
// "theta[pp] - beta[ii]". Argument commas are split at the top level only,
// so nested calls keep their own argument lists intact.
func ParseSampling(raw string) (ir.SamplingStatement, error) {
	var stmt ir.SamplingStatement

	parts := strings.SplitN(raw, "~", 2)
	if len(parts) != 2 {
		return stmt, fmt.Errorf("sampling statement %q must contain exactly one %q", raw, "~")
	}
	stmt.Target = strings.TrimSpace(parts[0])
	if stmt.Target == "" {
		return stmt, fmt.Errorf("sampling statement %q has an empty target", raw)
	}

	rhs := strings.TrimSpace(parts[1])
	open := strings.IndexByte(rhs, '(')
	if open < 0 || !strings.HasSuffix(rhs, ")") {
		return stmt, fmt.Errorf("sampling statement %q: right-hand side must be dist(args...)", raw)
	}
	stmt.Distribution = strings.TrimSpace(rhs[:open])
	if stmt.Distribution == "" {
		return stmt, fmt.Errorf("sampling statement %q has an empty distribution name", raw)
	}

	inner := rhs[open+1 : len(rhs)-1]
	args, err := splitTopLevel(inner)
	if err != nil {
		return stmt, fmt.Errorf("sampling statement %q: %w", raw, err)
	}
	stmt.Args = args
	return stmt, nil
}

// splitTopLevel splits a comma-separated argument list, ignoring commas
// inside nested parentheses or brackets.
func splitTopLevel(s string) ([]string, error) {
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		args = append(args, tail)
	} else if len(args) > 0 {
		return nil, fmt.Errorf("trailing comma in %q", s)
	}
	for _, a := range args {
		if a == "" {
			return nil, fmt.Errorf("empty argument in %q", s)
		}
	}
	return args, nil
}
