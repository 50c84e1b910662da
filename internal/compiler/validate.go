package compiler

import (
	"fmt"
	"strings"

	"github.com/jeff-regier/example-models/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownFamily    = "E101" // family not one of the built-ins
	ErrMissingRole      = "E102" // required data role absent
	ErrDuplicateName    = "E103" // duplicate variable or parameter name
	ErrInvalidKind      = "E104" // kind not a known value kind
	ErrInvalidLength    = "E105" // length not a known length role
	ErrUnknownPriorRef  = "E106" // prior targets an undeclared parameter
	ErrInvalidTransform = "E107" // transform malformed or references unknowns
	ErrBadLikelihood    = "E108" // likelihood target is not the outcome variable
	ErrDuplicateRole    = "E109" // role declared by more than one variable
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled model spec against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.ModelSpec) []ValidationError {
	var errs []ValidationError

	// E101: family must be known.
	if !ir.ValidFamilies[spec.Family] {
		errs = append(errs, ValidationError{
			Field:   "family",
			Message: fmt.Sprintf("unknown family %q", spec.Family),
			Code:    ErrUnknownFamily,
		})
	}

	names := make(map[string]bool)
	roles := make(map[ir.VarRole]bool)

	for i, field := range spec.Data {
		path := fmt.Sprintf("data[%d]", i)

		// E103: duplicate variable name.
		if names[field.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate name %q", field.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[field.Name] = true

		// E104: kind must be known.
		if !ir.ValidKinds[field.Kind] {
			errs = append(errs, ValidationError{
				Field:   path + ".kind",
				Message: fmt.Sprintf("invalid kind %q for variable %q", field.Kind, field.Name),
				Code:    ErrInvalidKind,
			})
		}

		// E109: each role at most once.
		if field.Role != "" {
			if roles[field.Role] {
				errs = append(errs, ValidationError{
					Field:   path + ".role",
					Message: fmt.Sprintf("role %q declared more than once", field.Role),
					Code:    ErrDuplicateRole,
				})
			}
			roles[field.Role] = true
		}
	}

	// E102: every role the family needs must be present.
	for _, role := range ir.RequiredRoles(spec.Family) {
		if !roles[role] {
			errs = append(errs, ValidationError{
				Field:   "data",
				Message: fmt.Sprintf("family %q requires a variable with role %q", spec.Family, role),
				Code:    ErrMissingRole,
			})
		}
	}

	validLengths := map[ir.LengthRole]bool{
		ir.LenScalar: true, ir.LenItems: true, ir.LenItemsMinusOne: true,
		ir.LenPersons: true, ir.LenCovariates: true, ir.LenStepsMinusOne: true,
		ir.LenSites: true, ir.LenYears: true,
	}

	paramNames := make(map[string]bool)
	for i, param := range spec.Parameters {
		path := fmt.Sprintf("parameters[%d]", i)

		if names[param.Name] || paramNames[param.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate name %q", param.Name),
				Code:    ErrDuplicateName,
			})
		}
		paramNames[param.Name] = true

		if !ir.ValidKinds[param.Kind] {
			errs = append(errs, ValidationError{
				Field:   path + ".kind",
				Message: fmt.Sprintf("invalid kind %q for parameter %q", param.Kind, param.Name),
				Code:    ErrInvalidKind,
			})
		}
		if !validLengths[param.Length] {
			errs = append(errs, ValidationError{
				Field:   path + ".length",
				Message: fmt.Sprintf("invalid length %q for parameter %q", param.Length, param.Name),
				Code:    ErrInvalidLength,
			})
		}
	}

	// Transform targets become referenceable names alongside parameters.
	transformTargets := make(map[string]bool)
	for i, tr := range spec.Transforms {
		path := fmt.Sprintf("transformed[%d]", i)

		switch tr.Kind {
		case ir.TransformSumToZero:
			if tr.Source == "" {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("sum_to_zero transform %q requires a source (the free vector)", tr.Target),
					Code:    ErrInvalidTransform,
				})
			} else if !paramNames[tr.Source] {
				errs = append(errs, ValidationError{
					Field:   path + ".from",
					Message: fmt.Sprintf("source %q is not a declared parameter", tr.Source),
					Code:    ErrInvalidTransform,
				})
			}
		case ir.TransformLinearPredictor:
			// No structural constraints beyond the target name.
		default:
			errs = append(errs, ValidationError{
				Field:   path + ".kind",
				Message: fmt.Sprintf("unknown transform kind %q", tr.Kind),
				Code:    ErrInvalidTransform,
			})
		}

		if paramNames[tr.Target] || names[tr.Target] || transformTargets[tr.Target] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("transform target %q collides with an existing name", tr.Target),
				Code:    ErrDuplicateName,
			})
		}
		transformTargets[tr.Target] = true
	}

	// E106: every prior must target a declared parameter.
	for i, prior := range spec.Priors {
		if !paramNames[prior.Target] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("model.priors[%d]", i),
				Message: fmt.Sprintf("prior targets %q, which is not a declared parameter", prior.Target),
				Code:    ErrUnknownPriorRef,
			})
		}
	}

	// E108: the likelihood must target the outcome variable.
	if outcome, ok := spec.FieldByRole(ir.RoleOutcome); ok {
		target := strings.TrimSpace(spec.Likelihood.Target)
		if target != outcome.Name {
			errs = append(errs, ValidationError{
				Field:   "model.likelihood",
				Message: fmt.Sprintf("likelihood targets %q, want the outcome variable %q", target, outcome.Name),
				Code:    ErrBadLikelihood,
			})
		}
	}

	return errs
}
