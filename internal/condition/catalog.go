package condition

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Catalog column headers. The CSV is produced by hand, so header matching
// is case-insensitive and order-independent.
const (
	colCondition   = "condition"
	colAlternative = "alternative name"
	colCategory    = "category"
	colTags        = "tags"
)

// LoadCatalog reads the condition catalog CSV at path.
// Rows with an empty condition name are skipped.
func LoadCatalog(path string) ([]Condition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// ReadCatalog parses catalog CSV content from r.
func ReadCatalog(r io.Reader) ([]Condition, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx[colCondition]; !ok {
		return nil, fmt.Errorf("catalog missing %q column", colCondition)
	}

	field := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var conditions []Condition
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("parsing catalog line %d: %w", line, err)
		}

		name := field(row, colCondition)
		if name == "" {
			continue
		}

		c := Condition{
			Name:            name,
			AlternativeName: field(row, colAlternative),
			Category:        field(row, colCategory),
		}
		if tags := field(row, colTags); tags != "" {
			for _, t := range strings.Split(tags, ";") {
				if t = strings.TrimSpace(t); t != "" {
					c.Tags = append(c.Tags, t)
				}
			}
		}
		conditions = append(conditions, c)
	}

	if len(conditions) == 0 {
		return nil, fmt.Errorf("catalog contains no conditions")
	}
	return conditions, nil
}
