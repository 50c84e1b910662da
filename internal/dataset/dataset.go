// Package dataset loads real example datasets from CSV into the shapes the
// simulators also produce, so the fit pipeline cannot tell simulated and
// real data apart.
//
// Raw person/item/site identifiers are remapped to contiguous 1-based
// indices in sorted label order, so loading the same file always yields the
// same index assignment.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/jeff-regier/example-models/internal/model"
)

// Values treated as a missing count cell.
var missingTokens = map[string]bool{"": true, "NA": true, "na": true, "NaN": true}

// IRTColumns names the CSV columns of a long-format item response file.
// Covariates lists person-level regression columns; an intercept column of
// ones is always prepended.
type IRTColumns struct {
	Person     string
	Item       string
	Response   string
	Covariates []string
}

// CountColumns names the CSV columns of a site-by-year count file. Missing
// counts are written as "NA" or left empty.
type CountColumns struct {
	Site  string
	Year  string
	Count string
}

// LoadIRT reads a long-format item response CSV.
func LoadIRT(r io.Reader, cols IRTColumns) (*model.IRTDataset, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	personCol, err := columnIndex(header, cols.Person)
	if err != nil {
		return nil, err
	}
	itemCol, err := columnIndex(header, cols.Item)
	if err != nil {
		return nil, err
	}
	respCol, err := columnIndex(header, cols.Response)
	if err != nil {
		return nil, err
	}
	covCols := make([]int, len(cols.Covariates))
	for i, name := range cols.Covariates {
		covCols[i], err = columnIndex(header, name)
		if err != nil {
			return nil, err
		}
	}

	persons := newIndexer()
	items := newIndexer()
	for _, row := range rows {
		persons.add(row[personCol])
		items.add(row[itemCol])
	}
	persons.freeze()
	items.freeze()

	ds := &model.IRTDataset{
		Items:   items.size(),
		Persons: persons.size(),
	}

	// Covariates are person-level: the first row seen for a person defines
	// them, later rows must agree.
	covariates := mat.NewDense(persons.size(), len(covCols)+1, nil)
	seen := make([]bool, persons.size())

	for line, row := range rows {
		p := persons.index(row[personCol])
		i := items.index(row[itemCol])
		y, err := strconv.ParseInt(strings.TrimSpace(row[respCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: response %q is not an integer", line+2, row[respCol])
		}
		if y < 0 {
			return nil, fmt.Errorf("row %d: negative response %d", line+2, y)
		}

		ds.PersonIndex = append(ds.PersonIndex, p)
		ds.ItemIndex = append(ds.ItemIndex, i)
		ds.Response = append(ds.Response, y)

		vals := make([]float64, len(covCols)+1)
		vals[0] = 1
		for k, c := range covCols {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: covariate %q value %q is not numeric", line+2, cols.Covariates[k], row[c])
			}
			vals[k+1] = v
		}
		if seen[p-1] {
			for k, v := range vals {
				if covariates.At(int(p-1), k) != v {
					return nil, fmt.Errorf("row %d: person %q has conflicting covariate values", line+2, row[personCol])
				}
			}
		} else {
			covariates.SetRow(int(p-1), vals)
			seen[p-1] = true
		}
	}
	ds.Covariates = covariates

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadCounts reads a site-by-year count CSV. Rows with a missing count
// become missing cells to be predicted rather than observations.
func LoadCounts(r io.Reader, cols CountColumns) (*model.CountDataset, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	siteCol, err := columnIndex(header, cols.Site)
	if err != nil {
		return nil, err
	}
	yearCol, err := columnIndex(header, cols.Year)
	if err != nil {
		return nil, err
	}
	countCol, err := columnIndex(header, cols.Count)
	if err != nil {
		return nil, err
	}

	sites := newIndexer()
	years := newIndexer()
	for _, row := range rows {
		sites.add(row[siteCol])
		years.add(row[yearCol])
	}
	sites.freeze()
	years.freeze()

	ds := &model.CountDataset{Sites: sites.size(), Years: years.size()}
	for line, row := range rows {
		s := sites.index(row[siteCol])
		y := years.index(row[yearCol])
		raw := strings.TrimSpace(row[countCol])
		if missingTokens[raw] {
			ds.MissingSiteIndex = append(ds.MissingSiteIndex, s)
			ds.MissingYearIndex = append(ds.MissingYearIndex, y)
			continue
		}
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: count %q is not an integer or NA", line+2, raw)
		}
		if count < 0 {
			return nil, fmt.Errorf("row %d: negative count %d", line+2, count)
		}
		ds.SiteIndex = append(ds.SiteIndex, s)
		ds.YearIndex = append(ds.YearIndex, y)
		ds.Count = append(ds.Count, count)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("csv needs a header and at least one data row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return header, records[1:], nil
}

func columnIndex(header []string, name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("column name must not be empty")
	}
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in header %v", name, header)
}

// indexer assigns contiguous 1-based indices in sorted label order.
type indexer struct {
	labels map[string]int64
	frozen bool
}

func newIndexer() *indexer {
	return &indexer{labels: make(map[string]int64)}
}

func (x *indexer) add(label string) {
	if !x.frozen {
		x.labels[strings.TrimSpace(label)] = 0
	}
}

func (x *indexer) freeze() {
	keys := make([]string, 0, len(x.labels))
	for k := range x.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		x.labels[k] = int64(i + 1)
	}
	x.frozen = true
}

func (x *indexer) index(label string) int64 {
	return x.labels[strings.TrimSpace(label)]
}

func (x *indexer) size() int { return len(x.labels) }
