package ir

// Family identifies a built-in model family.
type Family string

// Built-in families. The family determines the likelihood formula and the
// set of data roles the payload must provide.
const (
	FamilyRasch       Family = "rasch"
	FamilyGPCM        Family = "gpcm"
	FamilyPoissonGLMM Family = "poisson_glmm"
)

// ValidFamilies defines the allowed family strings.
var ValidFamilies = map[Family]bool{
	FamilyRasch:       true,
	FamilyGPCM:        true,
	FamilyPoissonGLMM: true,
}

// ValueKind is the shape of a data variable or parameter.
type ValueKind string

const (
	KindInt        ValueKind = "int"
	KindReal       ValueKind = "real"
	KindIntVector  ValueKind = "int_vector"
	KindRealVector ValueKind = "real_vector"
	KindMatrix     ValueKind = "matrix"
)

// ValidKinds defines the allowed kind strings.
var ValidKinds = map[ValueKind]bool{
	KindInt:        true,
	KindReal:       true,
	KindIntVector:  true,
	KindRealVector: true,
	KindMatrix:     true,
}

// VarRole names the role a data variable plays in the model. The engine
// payload is keyed by variable name; the family math locates variables by
// role, so renaming a variable in a spec never changes the formulas.
type VarRole string

const (
	RoleObsCount       VarRole = "obs_count"
	RoleItemCount      VarRole = "item_count"
	RolePersonCount    VarRole = "person_count"
	RoleCovariateCount VarRole = "covariate_count"
	RoleItemIndex      VarRole = "item_index"
	RolePersonIndex    VarRole = "person_index"
	RoleCovariates     VarRole = "covariates"
	RoleOutcome        VarRole = "outcome"
	RoleStepCount      VarRole = "step_count"

	// Poisson GLMM roles. Observed and missing cells are disjoint
	// (site, year) index sets; the likelihood covers observed cells only.
	RoleSiteCount        VarRole = "site_count"
	RoleYearCount        VarRole = "year_count"
	RoleSiteIndex        VarRole = "site_index"
	RoleYearIndex        VarRole = "year_index"
	RoleMissingSiteIndex VarRole = "missing_site_index"
	RoleMissingYearIndex VarRole = "missing_year_index"
)

// LengthRole ties a vector parameter's length to a dimension of the data.
type LengthRole string

const (
	LenScalar        LengthRole = ""                // scalar parameter
	LenItems         LengthRole = "items"           // one per item
	LenItemsMinusOne LengthRole = "items_minus_one" // free difficulties, last derived
	LenPersons       LengthRole = "persons"         // one per person
	LenCovariates    LengthRole = "covariates"      // one per regression column
	LenStepsMinusOne LengthRole = "steps_minus_one" // free step difficulties
	LenSites         LengthRole = "sites"
	LenYears         LengthRole = "years"
)

// ModelSpec is a compiled model definition: the declarative document's five
// blocks (data, parameters, transformed, model, generated) in struct form.
type ModelSpec struct {
	Name       string              `json:"name"`
	Title      string              `json:"title"`
	Family     Family              `json:"family"`
	Data       []DataField         `json:"data"`
	Parameters []ParamSpec         `json:"parameters"`
	Transforms []Transform         `json:"transforms,omitempty"`
	Priors     []SamplingStatement `json:"priors"`
	Likelihood SamplingStatement   `json:"likelihood"`
	Generated  []GeneratedQuantity `json:"generated,omitempty"`
}

// DataField declares one variable of the data block.
type DataField struct {
	Name  string    `json:"name"`
	Kind  ValueKind `json:"kind"`
	Role  VarRole   `json:"role"`
	Lower *float64  `json:"lower,omitempty"`
	Upper *float64  `json:"upper,omitempty"`
}

// ParamSpec declares one parameter of the parameter block.
type ParamSpec struct {
	Name   string     `json:"name"`
	Kind   ValueKind  `json:"kind"`
	Length LengthRole `json:"length,omitempty"`
	Lower  *float64   `json:"lower,omitempty"`
}

// Transform kinds used in the transformed-parameters block.
const (
	TransformSumToZero       = "sum_to_zero"
	TransformLinearPredictor = "linear_predictor"
)

// Transform declares an identification or predictor transform. SumToZero is
// the only transform with bookkeeping consequences: Target is the full
// constrained vector, Source the free vector with one fewer element.
type Transform struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
}

// SamplingStatement is one `target ~ dist(args...)` line from the model
// block. Args are literal numbers or names of other parameters.
type SamplingStatement struct {
	Target       string   `json:"target"`
	Distribution string   `json:"distribution"`
	Args         []string `json:"args"`
}

// GeneratedQuantity declares a derived quantity computed from posterior
// draws (e.g. posterior-predictive counts for missing GLMM cells).
type GeneratedQuantity struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FieldByRole returns the data field with the given role, or false.
func (m *ModelSpec) FieldByRole(role VarRole) (DataField, bool) {
	for _, f := range m.Data {
		if f.Role == role {
			return f, true
		}
	}
	return DataField{}, false
}

// ParamByName returns the parameter with the given name, or false.
func (m *ModelSpec) ParamByName(name string) (ParamSpec, bool) {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// HasTransform reports whether the spec declares a transform of the given
// kind targeting the named parameter.
func (m *ModelSpec) HasTransform(kind, target string) bool {
	for _, tr := range m.Transforms {
		if tr.Kind == kind && tr.Target == target {
			return true
		}
	}
	return false
}

// RequiredRoles lists the data roles a family's payload must provide.
func RequiredRoles(f Family) []VarRole {
	switch f {
	case FamilyRasch:
		return []VarRole{
			RoleObsCount, RoleItemCount, RolePersonCount, RoleCovariateCount,
			RoleItemIndex, RolePersonIndex, RoleCovariates, RoleOutcome,
		}
	case FamilyGPCM:
		return []VarRole{
			RoleObsCount, RoleItemCount, RolePersonCount, RoleCovariateCount,
			RoleItemIndex, RolePersonIndex, RoleCovariates, RoleOutcome,
			RoleStepCount,
		}
	case FamilyPoissonGLMM:
		return []VarRole{
			RoleObsCount, RoleSiteCount, RoleYearCount,
			RoleSiteIndex, RoleYearIndex, RoleOutcome,
			RoleMissingSiteIndex, RoleMissingYearIndex,
		}
	default:
		return nil
	}
}
