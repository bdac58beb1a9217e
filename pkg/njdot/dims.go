// pkg/njdot/dims.go

package njdot

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// County is a county name with its municipality code map.
type County struct {
	Name           string         `yaml:"name" json:"name"`
	Municipalities map[int]string `yaml:"municipalities" json:"municipalities"`
}

// Dimensions maps dimension codes to display names. It is loaded once
// at startup and never mutated afterwards; share it by reference.
type Dimensions struct {
	Counties map[int]County `yaml:"counties" json:"counties"`
}

// LoadDimensions reads the county/municipality code maps from a YAML
// file.
func LoadDimensions(path string) (*Dimensions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "read %s", path)
	}
	var d Dimensions
	if err = yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.WithMessagef(err, "parse %s", path)
	}
	return &d, nil
}

// CountyName resolves a county code.
func (d *Dimensions) CountyName(cc int) (string, bool) {
	c, ok := d.Counties[cc]
	return c.Name, ok
}

// MuniName resolves a municipality code within its county.
func (d *Dimensions) MuniName(cc, mc int) (string, bool) {
	c, ok := d.Counties[cc]
	if !ok {
		return "", false
	}
	name, ok := c.Municipalities[mc]
	return name, ok
}
