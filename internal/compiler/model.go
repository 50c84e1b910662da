package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/jeff-regier/example-models/internal/ir"
)

// CompileModel parses a CUE value into a ModelSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: rasch_latent_reg: { ... }`)
//	spec, err := CompileModel(v.LookupPath(cue.ParsePath("model.rasch_latent_reg")))
func CompileModel(v cue.Value) (*ir.ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ModelSpec{}

	// Model name comes from the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	// Title is optional.
	if titleVal := v.LookupPath(cue.ParsePath("title")); titleVal.Exists() {
		title, err := titleVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Title = title
	}

	// Family is required.
	familyVal := v.LookupPath(cue.ParsePath("family"))
	if !familyVal.Exists() {
		return nil, &CompileError{
			Field:   "family",
			Message: "family is required",
			Pos:     v.Pos(),
		}
	}
	family, err := familyVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Family = ir.Family(family)

	spec.Data, err = parseData(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Data) == 0 {
		return nil, &CompileError{
			Field:   "data",
			Message: "at least one data variable is required",
			Pos:     v.Pos(),
		}
	}

	spec.Parameters, err = parseParameters(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Parameters) == 0 {
		return nil, &CompileError{
			Field:   "parameters",
			Message: "at least one parameter is required",
			Pos:     v.Pos(),
		}
	}

	spec.Transforms, err = parseTransforms(v)
	if err != nil {
		return nil, err
	}

	spec.Priors, spec.Likelihood, err = parseModelBlock(v)
	if err != nil {
		return nil, err
	}

	spec.Generated, err = parseGenerated(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseData extracts the data block: one entry per declared variable.
func parseData(v cue.Value) ([]ir.DataField, error) {
	var fields []ir.DataField

	dataVal := v.LookupPath(cue.ParsePath("data"))
	if !dataVal.Exists() {
		return fields, nil
	}

	iter, err := dataVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		fieldVal := iter.Value()

		field := ir.DataField{Name: name}

		kind, err := requiredString(fieldVal, "kind", fmt.Sprintf("data.%s", name))
		if err != nil {
			return nil, err
		}
		field.Kind = ir.ValueKind(kind)

		role, err := requiredString(fieldVal, "role", fmt.Sprintf("data.%s", name))
		if err != nil {
			return nil, err
		}
		field.Role = ir.VarRole(role)

		field.Lower, err = optionalFloat(fieldVal, "lower")
		if err != nil {
			return nil, err
		}
		field.Upper, err = optionalFloat(fieldVal, "upper")
		if err != nil {
			return nil, err
		}

		fields = append(fields, field)
	}

	return fields, nil
}

// parseParameters extracts the parameter block.
func parseParameters(v cue.Value) ([]ir.ParamSpec, error) {
	var params []ir.ParamSpec

	paramsVal := v.LookupPath(cue.ParsePath("parameters"))
	if !paramsVal.Exists() {
		return params, nil
	}

	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		paramVal := iter.Value()

		param := ir.ParamSpec{Name: name}

		kind, err := requiredString(paramVal, "kind", fmt.Sprintf("parameters.%s", name))
		if err != nil {
			return nil, err
		}
		param.Kind = ir.ValueKind(kind)

		if lengthVal := paramVal.LookupPath(cue.ParsePath("length")); lengthVal.Exists() {
			length, err := lengthVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			param.Length = ir.LengthRole(length)
		}

		param.Lower, err = optionalFloat(paramVal, "lower")
		if err != nil {
			return nil, err
		}

		params = append(params, param)
	}

	return params, nil
}

// parseTransforms extracts the transformed block.
func parseTransforms(v cue.Value) ([]ir.Transform, error) {
	var transforms []ir.Transform

	trVal := v.LookupPath(cue.ParsePath("transformed"))
	if !trVal.Exists() {
		return transforms, nil
	}

	iter, err := trVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		target := iter.Label()
		trValue := iter.Value()

		kind, err := requiredString(trValue, "kind", fmt.Sprintf("transformed.%s", target))
		if err != nil {
			return nil, err
		}

		tr := ir.Transform{Kind: kind, Target: target}

		if fromVal := trValue.LookupPath(cue.ParsePath("from")); fromVal.Exists() {
			from, err := fromVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			tr.Source = from
		}

		transforms = append(transforms, tr)
	}

	return transforms, nil
}

// parseModelBlock extracts priors and the likelihood. Both are written as
// sampling statement strings, `target ~ dist(args...)`.
func parseModelBlock(v cue.Value) ([]ir.SamplingStatement, ir.SamplingStatement, error) {
	var priors []ir.SamplingStatement
	var likelihood ir.SamplingStatement

	modelVal := v.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil, likelihood, &CompileError{
			Field:   "model",
			Message: "model block with a likelihood is required",
			Pos:     v.Pos(),
		}
	}

	priorsVal := modelVal.LookupPath(cue.ParsePath("priors"))
	if priorsVal.Exists() {
		iter, err := priorsVal.List()
		if err != nil {
			return nil, likelihood, formatCUEError(err)
		}
		for iter.Next() {
			raw, err := iter.Value().String()
			if err != nil {
				return nil, likelihood, formatCUEError(err)
			}
			stmt, err := ParseSampling(raw)
			if err != nil {
				return nil, likelihood, &CompileError{
					Field:   "model.priors",
					Message: err.Error(),
					Pos:     iter.Value().Pos(),
				}
			}
			priors = append(priors, stmt)
		}
	}

	likVal := modelVal.LookupPath(cue.ParsePath("likelihood"))
	if !likVal.Exists() {
		return nil, likelihood, &CompileError{
			Field:   "model.likelihood",
			Message: "likelihood is required",
			Pos:     modelVal.Pos(),
		}
	}
	raw, err := likVal.String()
	if err != nil {
		return nil, likelihood, formatCUEError(err)
	}
	likelihood, err = ParseSampling(raw)
	if err != nil {
		return nil, likelihood, &CompileError{
			Field:   "model.likelihood",
			Message: err.Error(),
			Pos:     likVal.Pos(),
		}
	}

	return priors, likelihood, nil
}

// parseGenerated extracts the generated block: name to description.
func parseGenerated(v cue.Value) ([]ir.GeneratedQuantity, error) {
	var generated []ir.GeneratedQuantity

	genVal := v.LookupPath(cue.ParsePath("generated"))
	if !genVal.Exists() {
		return generated, nil
	}

	iter, err := genVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		desc, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		generated = append(generated, ir.GeneratedQuantity{
			Name:        iter.Label(),
			Description: desc,
		})
	}

	return generated, nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalFloat(v cue.Value, path string) (*float64, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return nil, nil
	}
	f, err := val.Float64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &f, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
