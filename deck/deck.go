// Package deck reads bulk data records from YAML. A deck has a bulk list
// whose entries are either sequences with the card name first,
//
//	bulk:
//	  - [GRID, 1, null, 0.0, 0.0, 0.0]
//
// or mappings with card and fields keys.
package deck

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/notargets/bdfsolve/model"
)

type file struct {
	Bulk []yaml.Node `yaml:"bulk"`
}

// Load reads the records of a deck file
func Load(path string) ([]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Parse decodes the records of a deck
func Parse(data []byte) ([]model.Record, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	recs := make([]model.Record, 0, len(f.Bulk))
	for i := range f.Bulk {
		rec, err := record(&f.Bulk[i])
		if err != nil {
			return nil, fmt.Errorf("bulk entry %d (line %d): %w", i, f.Bulk[i].Line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func record(n *yaml.Node) (model.Record, error) {
	var rec model.Record
	switch n.Kind {
	case yaml.SequenceNode:
		var values []any
		if err := n.Decode(&values); err != nil {
			return rec, err
		}
		if len(values) == 0 {
			return rec, fmt.Errorf("empty card")
		}
		name, ok := values[0].(string)
		if !ok {
			return rec, fmt.Errorf("card name %v is not a string", values[0])
		}
		rec = model.Record{Card: name, Fields: values[1:]}
	case yaml.MappingNode:
		if err := n.Decode(&rec); err != nil {
			return rec, err
		}
	default:
		return rec, fmt.Errorf("expected a sequence or mapping")
	}
	rec.Card = strings.ToUpper(strings.TrimSpace(rec.Card))
	if rec.Card == "" {
		return rec, fmt.Errorf("missing card name")
	}
	for i, v := range rec.Fields {
		switch v.(type) {
		case nil, int, float64, string:
		default:
			return rec, fmt.Errorf("%s field %d: unsupported value %v", rec.Card, i, v)
		}
	}
	return rec, nil
}
