package model

import (
	"fmt"

	"github.com/jeff-regier/example-models/internal/ir"
)

// Payload builders translate a dataset into the engine's data payload,
// keyed by the variable names the model document declares. The family math
// addresses variables by role, so a document is free to rename its data
// block as long as every required role is present.

// BuildIRTPayload builds the data payload for the Rasch and GPCM families.
func BuildIRTPayload(spec *ir.ModelSpec, ds *IRTDataset) (ir.DataPayload, error) {
	if spec.Family != ir.FamilyRasch && spec.Family != ir.FamilyGPCM {
		return nil, fmt.Errorf("model %q has family %q, want an IRT family", spec.Name, spec.Family)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	payload := ir.DataPayload{}
	set := func(role ir.VarRole, v ir.DataValue) error {
		field, ok := spec.FieldByRole(role)
		if !ok {
			return fmt.Errorf("model %q declares no variable with role %q", spec.Name, role)
		}
		payload[field.Name] = v
		return nil
	}

	rows, cols := ds.Covariates.Dims()
	design := make(ir.DataMatrix, rows)
	for r := 0; r < rows; r++ {
		design[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			design[r][c] = ds.Covariates.At(r, c)
		}
	}

	fill := []struct {
		role ir.VarRole
		v    ir.DataValue
	}{
		{ir.RoleObsCount, ir.DataInt(ds.Obs())},
		{ir.RoleItemCount, ir.DataInt(ds.Items)},
		{ir.RolePersonCount, ir.DataInt(ds.Persons)},
		{ir.RoleCovariateCount, ir.DataInt(cols)},
		{ir.RoleItemIndex, ir.DataIntVector(ds.ItemIndex)},
		{ir.RolePersonIndex, ir.DataIntVector(ds.PersonIndex)},
		{ir.RoleCovariates, design},
		{ir.RoleOutcome, ir.DataIntVector(ds.Response)},
	}
	for _, f := range fill {
		if err := set(f.role, f.v); err != nil {
			return nil, err
		}
	}

	if spec.Family == ir.FamilyGPCM {
		alloc, err := ir.AllocateSteps(ds.ItemIndex, ds.Response, ds.Items)
		if err != nil {
			return nil, fmt.Errorf("step allocation: %w", err)
		}
		if err := set(ir.RoleStepCount, ir.DataInt(alloc.Total)); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// BuildGLMMPayload builds the data payload for the Poisson GLMM family.
func BuildGLMMPayload(spec *ir.ModelSpec, ds *CountDataset) (ir.DataPayload, error) {
	if spec.Family != ir.FamilyPoissonGLMM {
		return nil, fmt.Errorf("model %q has family %q, want %q", spec.Name, spec.Family, ir.FamilyPoissonGLMM)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	payload := ir.DataPayload{}
	set := func(role ir.VarRole, v ir.DataValue) error {
		field, ok := spec.FieldByRole(role)
		if !ok {
			return fmt.Errorf("model %q declares no variable with role %q", spec.Name, role)
		}
		payload[field.Name] = v
		return nil
	}

	fill := []struct {
		role ir.VarRole
		v    ir.DataValue
	}{
		{ir.RoleObsCount, ir.DataInt(ds.Obs())},
		{ir.RoleSiteCount, ir.DataInt(ds.Sites)},
		{ir.RoleYearCount, ir.DataInt(ds.Years)},
		{ir.RoleSiteIndex, ir.DataIntVector(ds.SiteIndex)},
		{ir.RoleYearIndex, ir.DataIntVector(ds.YearIndex)},
		{ir.RoleOutcome, ir.DataIntVector(ds.Count)},
		{ir.RoleMissingSiteIndex, ir.DataIntVector(ds.MissingSiteIndex)},
		{ir.RoleMissingYearIndex, ir.DataIntVector(ds.MissingYearIndex)},
	}
	for _, f := range fill {
		if err := set(f.role, f.v); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
