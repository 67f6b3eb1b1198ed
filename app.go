package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/chazu/papercut/pkg/config"
	"github.com/chazu/papercut/pkg/cutplan"
	"github.com/chazu/papercut/pkg/engine"
	"github.com/chazu/papercut/pkg/export"
	"github.com/chazu/papercut/pkg/graph"
	"github.com/chazu/papercut/pkg/kernel"
	"github.com/chazu/papercut/pkg/kernel/manifold"
	"github.com/chazu/papercut/pkg/kernel/sdfx"
	"github.com/chazu/papercut/pkg/tessellate"
	"github.com/chazu/papercut/pkg/vecmath"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App ties the engine, kernel and sampler together for the CLI.
type App struct {
	ctx     context.Context
	cfg     config.Config
	logger  *slog.Logger
	engine  *engine.Engine
	kernel  kernel.Kernel
	sampler *cutplan.Sampler
}

// MeshData is the JSON-serializable mesh format.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
	Node    string `json:"node,omitempty"`
}

// CutData is one planned cut and whether the kernel accepted it.
type CutData struct {
	Part       string             `json:"part"`
	Index      int                `json:"index"`
	Descriptor cutplan.Descriptor `json:"descriptor"`
	Error      string             `json:"error,omitempty"`
}

// EvalResult is the full result of evaluating a script.
type EvalResult struct {
	RunID    string          `json:"runId"`
	Meshes   []MeshData      `json:"meshes"`
	Cuts     []CutData       `json:"cuts"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates an App with the default configuration, logging to stderr.
func NewApp() *App {
	cfg := config.Default()
	return NewAppWithConfig(cfg, cfg.NewLogger(os.Stderr))
}

// NewAppWithConfig creates an App from cfg. A nil logger is replaced by
// one built from cfg.
func NewAppWithConfig(cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = cfg.NewLogger(os.Stderr)
	}
	eng := engine.NewEngine()
	eng.Defaults = graph.WrinkleData{
		Iterations: cfg.Wrinkle.Iterations,
		Seed:       cfg.Wrinkle.Seed,
		Kerf:       cfg.Wrinkle.Kerf,
	}
	return &App{
		ctx:     context.Background(),
		cfg:     cfg,
		logger:  logger,
		engine:  eng,
		kernel:  newKernel(cfg, logger),
		sampler: cfg.Sampler(),
	}
}

// newKernel picks the configured geometry kernel. A manifold request in a
// build without the cgo kernel falls back to sdfx.
func newKernel(cfg config.Config, logger *slog.Logger) kernel.Kernel {
	if cfg.Mesh.Kernel == "manifold" {
		k, err := manifold.New()
		if err == nil {
			return k
		}
		logger.Warn("using sdfx kernel", "err", err)
	}
	return sdfx.NewWithCells(cfg.Mesh.Cells)
}

// startup binds the App to ctx; Plan stops early once it is canceled.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// Evaluate takes Lisp source and returns mesh data, cut reports and
// errors.
func (a *App) Evaluate(source string) EvalResult {
	result, _ := a.render(source)
	return result
}

// Export evaluates source and writes every mesh to an STL file at path.
// Script problems are reported in the result; err is only set when the
// script produced nothing to write or the file could not be written.
func (a *App) Export(source, path string) (EvalResult, error) {
	result, tr := a.render(source)
	if tr == nil {
		return result, fmt.Errorf("nothing to export: %d errors", len(result.Errors))
	}
	n, err := export.WriteSTL(path, tr.Meshes)
	if err != nil {
		return result, err
	}
	a.logger.Info(a.cfg.String("wrote_mesh", strconv.Itoa(n), path), "run", result.RunID)
	return result, nil
}

// render runs the full pipeline. The tessellation result is nil when
// evaluation or tessellation failed.
func (a *App) render(source string) (EvalResult, *tessellate.Result) {
	result := EvalResult{
		RunID:    uuid.NewString(),
		Meshes:   []MeshData{},
		Cuts:     []CutData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
	log := a.logger.With("run", result.RunID)

	// Step 1: Evaluate the Lisp source into a design graph.
	er, err := a.engine.EvaluateResult(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result, nil
	}

	for _, w := range er.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Line:    w.Line,
			Col:     w.Col,
			Message: w.Message,
			Node:    w.NodeID.Short(),
		})
	}

	// Step 2: Convert eval errors to the output format.
	if len(er.Errors) > 0 {
		for _, e := range er.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		log.Debug("evaluate produced errors", "count", len(er.Errors))
		return result, nil
	}

	// Step 3: Tessellate the design graph, cutting wrinkled parts.
	tr, err := tessellate.Tessellate(er.Graph, a.kernel, tessellate.Options{
		Sampler: a.sampler,
		Logger:  log,
	})
	if err != nil {
		log.Error("tessellate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result, nil
	}

	// Step 4: Convert kernel meshes and cut reports to the output format.
	for i, m := range tr.Meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}

	result.Cuts = lo.Map(tr.Cuts, func(c tessellate.CutReport, _ int) CutData {
		cd := CutData{Part: c.Part, Index: c.Index, Descriptor: c.Descriptor}
		if c.Err != nil {
			cd.Error = c.Err.Error()
		}
		return cd
	})

	a.logCutSummary(log, tr.Cuts)

	// Failed cuts leave the part partly wrinkled; surface each one.
	for _, c := range tr.FailedCuts() {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Message: a.cfg.String("cut_failed", strconv.Itoa(c.Index), c.Part, c.Err.Error()),
			Node:    c.Wrinkle.Short(),
		})
	}

	log.Info("evaluated",
		"meshes", len(result.Meshes),
		"cuts", len(result.Cuts),
		"failed_cuts", len(tr.FailedCuts()),
		"warnings", len(result.Warnings))

	return result, tr
}

// logCutSummary logs how many planned cuts landed on each wrinkled part,
// in the order the parts were walked.
func (a *App) logCutSummary(log *slog.Logger, cuts []tessellate.CutReport) {
	byPart := lo.GroupBy(cuts, func(c tessellate.CutReport) string { return c.Part })
	parts := lo.Uniq(lo.Map(cuts, func(c tessellate.CutReport, _ int) string { return c.Part }))
	for _, part := range parts {
		applied := lo.CountBy(byPart[part], func(c tessellate.CutReport) bool { return c.Err == nil })
		log.Info(a.cfg.String("cut_summary",
			strconv.Itoa(applied), strconv.Itoa(len(byPart[part])), part))
	}
}

// PlanRequest asks for Count cut plans over one extent, with seeds Seed,
// Seed+1, ... The world matrix is the identity.
type PlanRequest struct {
	Center     [3]float64 `json:"center"`
	Radius     [3]float64 `json:"radius"`
	Iterations int        `json:"iterations"`
	Seed       int64      `json:"seed"`
	Count      int        `json:"count"`
	Workers    int        `json:"workers"` // 0 means unbounded
}

// PlanData is the plan sampled for one seed.
type PlanData struct {
	Seed int64                `json:"seed"`
	Cuts []cutplan.Descriptor `json:"cuts"`
}

// Plan samples cut plans without touching the geometry kernel.
func (a *App) Plan(req PlanRequest) ([]PlanData, error) {
	if req.Count < 0 {
		return nil, fmt.Errorf("plan: count must not be negative, got %d", req.Count)
	}
	extent := cutplan.Extent{
		Center: vecmath.FromArray(req.Center),
		Radius: vecmath.FromArray(req.Radius),
	}

	reqs := lo.Times(req.Count, func(i int) cutplan.Request {
		return cutplan.Request{
			Extent:     extent,
			World:      vecmath.Identity(),
			Iterations: req.Iterations,
			Seed:       req.Seed + int64(i),
		}
	})

	plans, err := a.sampler.SampleAll(a.ctx, reqs, req.Workers)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	a.logger.Debug(a.cfg.String("plan_summary", strconv.Itoa(req.Count), strconv.Itoa(req.Iterations)))

	return lo.Map(plans, func(cuts []cutplan.Descriptor, i int) PlanData {
		return PlanData{Seed: reqs[i].Seed, Cuts: cuts}
	}), nil
}
