package ir

import "fmt"

// StepAllocation maps the flattened step-difficulty vector back to per-item
// step counts. Step parameters must be allocated from the categories an item
// actually exercises in the data, never assumed from a nominal maximum:
// fitting an item with an unused top category would leave its highest step
// unidentified.
type StepAllocation struct {
	// Steps[i] is the number of step parameters for item i: the item's
	// highest observed category. A dichotomous item has one step.
	Steps []int

	// Offset[i] is the index of item i's first step in the flattened
	// step vector. Offset[len(Steps)] == Total.
	Offset []int

	// Total is the length of the flattened step vector.
	Total int
}

// AllocateSteps derives the step allocation from observed responses.
// itemIndex holds 1-based item indices per observation (matching the data
// payload convention); responses the ordinal outcomes.
//
// Errors:
//   - an item with no observations cannot be allocated;
//   - a gap in an item's observed categories (e.g. responses in {0, 2} but
//     never 1) means the step for the absent category has no data. This is
//     surfaced as an error telling the analyst to recode the categories;
//     it is never repaired automatically.
func AllocateSteps(itemIndex []int64, responses []int64, itemCount int) (*StepAllocation, error) {
	if len(itemIndex) != len(responses) {
		return nil, fmt.Errorf("allocate steps: %d item indices but %d responses", len(itemIndex), len(responses))
	}
	if itemCount <= 0 {
		return nil, fmt.Errorf("allocate steps: item count must be positive, got %d", itemCount)
	}

	seen := make([]map[int64]bool, itemCount)
	maxCat := make([]int64, itemCount)
	for i := range seen {
		seen[i] = make(map[int64]bool)
		maxCat[i] = -1
	}

	for n, item := range itemIndex {
		if item < 1 || item > int64(itemCount) {
			return nil, fmt.Errorf("allocate steps: observation %d has item index %d outside [1, %d]", n, item, itemCount)
		}
		r := responses[n]
		if r < 0 {
			return nil, fmt.Errorf("allocate steps: observation %d has negative response %d", n, r)
		}
		seen[item-1][r] = true
		if r > maxCat[item-1] {
			maxCat[item-1] = r
		}
	}

	alloc := &StepAllocation{
		Steps:  make([]int, itemCount),
		Offset: make([]int, itemCount+1),
	}
	for i := 0; i < itemCount; i++ {
		if maxCat[i] < 0 {
			return nil, fmt.Errorf("allocate steps: item %d has no observations", i+1)
		}
		if maxCat[i] == 0 {
			return nil, fmt.Errorf("allocate steps: item %d has only zero responses; no step is estimable", i+1)
		}
		for c := int64(0); c <= maxCat[i]; c++ {
			if !seen[i][c] {
				return nil, fmt.Errorf(
					"allocate steps: item %d exercises category %d but never %d; recode the response categories before fitting",
					i+1, maxCat[i], c)
			}
		}
		alloc.Steps[i] = int(maxCat[i])
		alloc.Offset[i] = alloc.Total
		alloc.Total += alloc.Steps[i]
	}
	alloc.Offset[itemCount] = alloc.Total

	return alloc, nil
}

// ItemSteps returns item i's (0-based) slice of the flattened step vector.
func (a *StepAllocation) ItemSteps(flat []float64, i int) ([]float64, error) {
	if i < 0 || i >= len(a.Steps) {
		return nil, fmt.Errorf("item index %d outside [0, %d)", i, len(a.Steps))
	}
	if len(flat) != a.Total {
		return nil, fmt.Errorf("flattened step vector has length %d, allocation expects %d", len(flat), a.Total)
	}
	return flat[a.Offset[i]:a.Offset[i+1]], nil
}
