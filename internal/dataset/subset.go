package dataset

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/jeff-regier/example-models/internal/model"
)

// SubsetPersons keeps a seeded random sample of n persons and drops the
// rest, reindexing the survivors to 1..n in their original order. Example
// runs use this to keep documentation fits fast; the same seed always
// selects the same persons.
func SubsetPersons(ds *model.IRTDataset, n int, seed uint64) (*model.IRTDataset, error) {
	if n < 1 || n > ds.Persons {
		return nil, fmt.Errorf("subset size %d outside 1..%d", n, ds.Persons)
	}
	if n == ds.Persons {
		return ds, nil
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(ds.Persons)[:n]
	sort.Ints(perm)

	remap := make(map[int64]int64, n)
	for newIdx, oldIdx := range perm {
		remap[int64(oldIdx+1)] = int64(newIdx + 1)
	}

	_, k := ds.Covariates.Dims()
	out := &model.IRTDataset{
		Items:      ds.Items,
		Persons:    n,
		Covariates: mat.NewDense(n, k, nil),
	}
	for newIdx, oldIdx := range perm {
		for c := 0; c < k; c++ {
			out.Covariates.Set(newIdx, c, ds.Covariates.At(oldIdx, c))
		}
	}

	for i := range ds.Response {
		p, keep := remap[ds.PersonIndex[i]]
		if !keep {
			continue
		}
		out.PersonIndex = append(out.PersonIndex, p)
		out.ItemIndex = append(out.ItemIndex, ds.ItemIndex[i])
		out.Response = append(out.Response, ds.Response[i])
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
