// Package config holds the case control and solver parameters of a run,
// read from YAML on top of defaults and validated before use.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/notargets/bdfsolve/assembly"
	"github.com/notargets/bdfsolve/element"
	"github.com/notargets/bdfsolve/model"
	"github.com/notargets/bdfsolve/partitions"
	"github.com/notargets/bdfsolve/solver"
)

// Solution sequences
const (
	SolStatic = 101
	SolModes  = 103
)

const (
	DefaultAutoSPCTolerance = 1e-8
	DefaultK6Rot            = 100.0
	DefaultWarpTolerance    = 0.05
	DefaultPartitionSize    = 64
	DefaultDiagnosisLimit   = 500
	DefaultModeCount        = 10
)

type Config struct {
	Sol      int       `yaml:"sol" validate:"required"`
	Subcases []Subcase `yaml:"subcases" validate:"required,min=1,unique=ID,dive"`
	Params   Params    `yaml:"params"`
	Modes    Modes     `yaml:"modes"`
}

// Subcase selects the load, constraint and temperature sets of one case.
// Zero selects no set.
type Subcase struct {
	ID          int `yaml:"id" validate:"min=1"`
	Load        int `yaml:"load" validate:"min=0"`
	SPC         int `yaml:"spc" validate:"min=0"`
	MPC         int `yaml:"mpc" validate:"min=0"`
	Temperature int `yaml:"temperature" validate:"min=0"`
}

type Params struct {
	AutoSPC           bool    `yaml:"autospc"`
	AutoSPCTolerance  float64 `yaml:"autospc_tolerance" validate:"gt=0,lt=1"`
	K6Rot             float64 `yaml:"k6rot" validate:"min=0"`
	WarpTolerance     float64 `yaml:"warp_tolerance" validate:"gt=0"`
	Prune             bool    `yaml:"prune"`
	Workers           int     `yaml:"workers" validate:"min=0"`
	PartitionSize     int     `yaml:"partition_size" validate:"min=1"`
	PartitionStrategy string  `yaml:"partition_strategy" validate:"oneof=block round-robin cost"`
	DiagnosisLimit    int     `yaml:"diagnosis_limit" validate:"min=0"`
}

type Modes struct {
	Count   int     `yaml:"count" validate:"min=0"`
	FreqMin float64 `yaml:"freq_min" validate:"min=0"`
	FreqMax float64 `yaml:"freq_max" validate:"min=0"`
	Shift   float64 `yaml:"shift"`
}

func DefaultConfig() *Config {
	return &Config{
		Sol:      SolStatic,
		Subcases: []Subcase{{ID: 1}},
		Params: Params{
			AutoSPC:           true,
			AutoSPCTolerance:  DefaultAutoSPCTolerance,
			K6Rot:             DefaultK6Rot,
			WarpTolerance:     DefaultWarpTolerance,
			Prune:             true,
			PartitionSize:     DefaultPartitionSize,
			PartitionStrategy: partitions.BlockPartition.String(),
			DiagnosisLimit:    DefaultDiagnosisLimit,
		},
		Modes: Modes{Count: DefaultModeCount},
	}
}

// Load reads a YAML file over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and the solution sequence
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Sol != SolStatic && c.Sol != SolModes {
		return fmt.Errorf("sol %d: %w", c.Sol, model.ErrUnsupportedSolution)
	}
	if c.Modes.FreqMax > 0 && c.Modes.FreqMax < c.Modes.FreqMin {
		return fmt.Errorf("modes: freq_max %g is below freq_min %g", c.Modes.FreqMax, c.Modes.FreqMin)
	}
	return nil
}

func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "unique":
		return fmt.Sprintf("%s must not repeat %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// AssemblyOptions maps the parameters onto assembly and element options
func (c *Config) AssemblyOptions() (assembly.Options, error) {
	strategy, err := partitions.ParseStrategy(c.Params.PartitionStrategy)
	if err != nil {
		return assembly.Options{}, err
	}
	return assembly.Options{
		Element: element.Options{
			K6Rot:         c.Params.K6Rot,
			WarpTolerance: c.Params.WarpTolerance,
		},
		Workers:          c.Params.Workers,
		PartitionSize:    c.Params.PartitionSize,
		Strategy:         strategy,
		AutoSPC:          c.Params.AutoSPC,
		AutoSPCTolerance: c.Params.AutoSPCTolerance,
	}, nil
}

func (c *Config) SolverOptions() solver.Options {
	return solver.Options{
		DiagnosisLimit: c.Params.DiagnosisLimit,
		Modes:          c.Modes.Count,
		FreqMin:        c.Modes.FreqMin,
		FreqMax:        c.Modes.FreqMax,
		Shift:          c.Modes.Shift,
	}
}

// AssemblySubcases returns the subcases in configured order
func (c *Config) AssemblySubcases() []assembly.Subcase {
	out := make([]assembly.Subcase, len(c.Subcases))
	for i, sc := range c.Subcases {
		out[i] = assembly.Subcase(sc)
	}
	return out
}
