// Package runner drives the solution pipeline: build the model from records,
// prune, cross-reference, number the DOFs, assemble, then reduce and solve
// each subcase.
package runner

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/notargets/bdfsolve/assembly"
	"github.com/notargets/bdfsolve/config"
	"github.com/notargets/bdfsolve/dof"
	"github.com/notargets/bdfsolve/model"
	"github.com/notargets/bdfsolve/prune"
	"github.com/notargets/bdfsolve/solver"
	"github.com/notargets/bdfsolve/xref"
)

// Runner runs one configuration against record decks
type Runner struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewRunner returns a runner; a nil config means the defaults and a nil
// logger discards everything
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Config: cfg, Logger: logger}
}

// Result is the outcome of a run. Vectors are indexed like DOFs.
type Result struct {
	RunID    string           `yaml:"run_id"`
	Sol      int              `yaml:"sol"`
	DOFs     []model.DOF      `yaml:"dofs"`
	Pruned   map[string][]int `yaml:"pruned,omitempty"`
	Subcases []*SubcaseResult `yaml:"subcases"`
}

type SubcaseResult struct {
	ID                int           `yaml:"id"`
	FreeDOFs          []model.DOF   `yaml:"free_dofs"`
	Displacements     []float64     `yaml:"displacements,omitempty"`
	FreeDisplacements []float64     `yaml:"free_displacements,omitempty"`
	AppliedLoads      []float64     `yaml:"applied_loads,omitempty"`
	SPCForces         []float64     `yaml:"spc_forces,omitempty"`
	MPCForces         []float64     `yaml:"mpc_forces,omitempty"`
	AutoSPC           []model.DOF   `yaml:"autospc,omitempty"`
	Modes             []solver.Mode `yaml:"modes,omitempty"`
	Warnings          []string      `yaml:"warnings,omitempty"`
}

// Write encodes the result as YAML
func (r *Result) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// Prepared is a cross-referenced model ready for assembly
type Prepared struct {
	Model  *model.Model
	DOFs   *dof.Map
	Pruned *prune.Report
}

// Prepare builds, optionally prunes, and cross-references a model
func (r *Runner) Prepare(recs []model.Record, logger *zap.Logger) (*Prepared, error) {
	m, err := model.FromRecords(recs)
	if err != nil {
		return nil, err
	}
	logger.Info("model built", zap.Int("records", len(recs)), zap.Any("counts", classCounts(m.Counts())))

	p := &Prepared{Model: m}
	if r.Config.Params.Prune {
		report, err := prune.Prune(m)
		if err != nil {
			return nil, err
		}
		p.Pruned = report
		logger.Info("model pruned", zap.Int("removed", report.Total()))
		for _, class := range sortedClasses(report.Removed) {
			if ids := report.Removed[class]; len(ids) > 0 {
				logger.Debug("removed unused entities", zap.Stringer("class", class), zap.Ints("ids", ids))
			}
		}
	}

	if err := xref.CrossReference(m); err != nil {
		return nil, err
	}
	dm, err := dof.NewMap(m)
	if err != nil {
		return nil, err
	}
	if err := dm.Verify(); err != nil {
		return nil, err
	}
	p.DOFs = dm
	logger.Info("model cross-referenced", zap.Int("dofs", dm.Len()))
	return p, nil
}

// Run solves every configured subcase
func (r *Runner) Run(ctx context.Context, recs []model.Record) (*Result, error) {
	runID := uuid.New().String()
	logger := r.Logger.With(zap.String("run_id", runID))
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := r.Prepare(recs, logger)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.AssemblyOptions()
	if err != nil {
		return nil, err
	}
	sys, err := assembly.Assemble(ctx, p.Model, p.DOFs, opts)
	if err != nil {
		return nil, err
	}
	stats := sys.Layout.PartitionStatistics()
	logger.Info("system assembled",
		zap.Int("k_nonzeros", sys.K.NNZ()),
		zap.Int("partitions", stats.NumPartitions),
		zap.Int("partition_max_elements", stats.MaxElements),
		zap.Int("partition_max_cost", stats.MaxCost),
		zap.Float64("partition_imbalance", stats.Imbalance),
		zap.Float64("partition_cost_imbalance", stats.CostImbalance),
		zap.Bool("mass", sys.HasMass),
	)
	if cfg.Sol == config.SolModes && !sys.HasMass {
		logger.Warn("modal solution requested but the model has no mass")
	}

	res := &Result{RunID: runID, Sol: cfg.Sol, DOFs: p.DOFs.DOFs()}
	if p.Pruned != nil {
		res.Pruned = make(map[string][]int)
		for class, ids := range p.Pruned.Removed {
			if len(ids) > 0 {
				res.Pruned[class.String()] = ids
			}
		}
	}

	for _, sc := range cfg.AssemblySubcases() {
		sr, err := r.subcase(p.Model, sys, sc, logger.With(zap.Int("subcase", sc.ID)))
		if err != nil {
			return nil, err
		}
		res.Subcases = append(res.Subcases, sr)
	}
	logger.Info("run complete", zap.Int("subcases", len(res.Subcases)))
	return res, nil
}

func (r *Runner) subcase(m *model.Model, sys *assembly.System, sc assembly.Subcase,
	logger *zap.Logger) (*SubcaseResult, error) {

	red, err := sys.Reduce(m, sc)
	if err != nil {
		return nil, err
	}
	counts := red.Part.Counts()
	logger.Info("system reduced",
		zap.Int("free", counts[dof.Free]),
		zap.Int("constrained", counts[dof.ConstrainedZero]+counts[dof.ConstrainedValue]),
		zap.Int("dependent", counts[dof.Dependent]),
	)
	if len(red.AutoSPC) > 0 {
		logger.Info("auto-spc constrained dofs without stiffness",
			zap.Int("count", len(red.AutoSPC)), zap.Stringers("dofs", red.AutoSPC))
	}
	for _, w := range red.Warnings {
		logger.Warn(w)
	}

	sr := &SubcaseResult{
		ID:       sc.ID,
		AutoSPC:  red.AutoSPC,
		Warnings: red.Warnings,
	}
	for _, i := range red.Free {
		sr.FreeDOFs = append(sr.FreeDOFs, sys.Map.DOF(i))
	}

	sopts := r.Config.SolverOptions()
	switch r.Config.Sol {
	case config.SolStatic:
		st, err := solver.Static(red, sopts)
		if err != nil {
			return nil, fmt.Errorf("subcase %d: %w", sc.ID, err)
		}
		sr.Displacements = st.U
		sr.FreeDisplacements = st.Uf
		sr.AppliedLoads = st.Applied
		sr.SPCForces = st.SPCForces
		sr.MPCForces = st.MPCForces
		logger.Info("static solution complete")
	case config.SolModes:
		modes, err := solver.Modal(red, sopts)
		if err != nil {
			return nil, fmt.Errorf("subcase %d: %w", sc.ID, err)
		}
		sr.Modes = modes
		freqs := make([]float64, len(modes))
		for i, md := range modes {
			freqs[i] = md.Frequency
		}
		logger.Info("modes extracted", zap.Int("modes", len(modes)), zap.Float64s("hz", freqs))
	default:
		return nil, fmt.Errorf("sol %d: %w", r.Config.Sol, model.ErrUnsupportedSolution)
	}
	return sr, nil
}

func classCounts(counts map[model.Class]int) map[string]int {
	out := make(map[string]int, len(counts))
	for c, n := range counts {
		out[c.String()] = n
	}
	return out
}

func sortedClasses(m map[model.Class][]int) []model.Class {
	classes := make([]model.Class, 0, len(m))
	for c := range m {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	return classes
}
