package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/papercut/pkg/config"
	"github.com/chazu/papercut/pkg/kernel/manifold"
	"github.com/chazu/papercut/pkg/kernel/sdfx"
)

// newTestApp returns an App with a coarse mesh and a silent logger.
func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Mesh.Cells = 40
	return NewAppWithConfig(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// requireNoErrors fails the test if the result carries eval errors.
func requireNoErrors(t *testing.T, result EvalResult) {
	t.Helper()
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
}

// TestE2EWrinkledCubeExample exercises the full pipeline: Lisp source →
// engine → graph → sampler → kernel cuts → meshes.
func TestE2EWrinkledCubeExample(t *testing.T) {
	app := newTestApp(t)

	source, err := os.ReadFile("examples/wrinkled_cube.papercut")
	if err != nil {
		t.Fatalf("failed to read wrinkled_cube.papercut: %v", err)
	}

	result := app.Evaluate(string(source))
	requireNoErrors(t, result)

	// Wrinkled cube, reference cube, wrinkled ball.
	if len(result.Meshes) != 3 {
		t.Fatalf("expected 3 meshes, got %d", len(result.Meshes))
	}
	names := map[string]int{}
	for _, m := range result.Meshes {
		names[m.PartName]++
		if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
			t.Errorf("part %q: empty geometry", m.PartName)
		}
		if m.Color == "" {
			t.Errorf("part %q: no color assigned", m.PartName)
		}
	}
	if names["cube"] != 2 || names["ball"] != 1 {
		t.Errorf("unexpected parts: %v", names)
	}

	if len(result.Cuts) != 8+3 {
		t.Fatalf("expected 11 cut reports, got %d", len(result.Cuts))
	}
	perPart := map[string]int{}
	for _, c := range result.Cuts {
		if c.Index != perPart[c.Part] {
			t.Errorf("%s: cut index %d out of order", c.Part, c.Index)
		}
		perPart[c.Part]++
	}
	if perPart["cube"] != 8 || perPart["ball"] != 3 {
		t.Errorf("cuts per part = %v", perPart)
	}

	if result.RunID == "" {
		t.Error("expected a run id")
	}
}

// TestE2EDeterministic checks that the same script yields the same plan
// and the same geometry on every run.
func TestE2EDeterministic(t *testing.T) {
	app := newTestApp(t)
	source := `
(defpart "cube" (box :size (vec3 40 40 40)))
(assembly "main" (wrinkle (part "cube") :iterations 5 :seed 42 :kerf 0.5))
`
	a := app.Evaluate(source)
	b := app.Evaluate(source)
	requireNoErrors(t, a)
	requireNoErrors(t, b)

	if a.RunID == b.RunID {
		t.Error("run ids should differ between runs")
	}
	if len(a.Cuts) != 5 || len(b.Cuts) != 5 {
		t.Fatalf("expected 5 cuts each, got %d and %d", len(a.Cuts), len(b.Cuts))
	}
	for i := range a.Cuts {
		if a.Cuts[i] != b.Cuts[i] {
			t.Errorf("cut %d differs: %+v vs %+v", i, a.Cuts[i], b.Cuts[i])
		}
	}
	if len(a.Meshes[0].Vertices) != len(b.Meshes[0].Vertices) {
		t.Errorf("vertex counts differ: %d vs %d", len(a.Meshes[0].Vertices), len(b.Meshes[0].Vertices))
	}
}

// TestE2ECutSummaryLogged checks that one cut_summary line is logged per
// wrinkled part.
func TestE2ECutSummaryLogged(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh.Cells = 40
	cfg.Strings["cut_summary"] = "summary: # of # on #"
	var logs bytes.Buffer
	app := NewAppWithConfig(cfg, slog.New(slog.NewTextHandler(&logs, nil)))

	result := app.Evaluate(`
(defpart "cube" (box :size (vec3 40 40 40)))
(defpart "ball" (sphere :radius 10))
(assembly "main"
  (wrinkle (part "cube") :iterations 4 :seed 3)
  (place (wrinkle (part "ball") :iterations 2 :seed 9) :at (vec3 60 0 0)))
`)
	requireNoErrors(t, result)

	out := logs.String()
	if n := strings.Count(out, "summary: "); n != 2 {
		t.Fatalf("expected 2 summary lines, got %d:\n%s", n, out)
	}
	for _, want := range []string{"of 4 on cube", "of 2 on ball"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

// TestE2EConfigDefaults checks that wrinkle defaults flow from config
// into scripts that omit them.
func TestE2EConfigDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh.Cells = 40
	cfg.Wrinkle.Iterations = 2
	app := NewAppWithConfig(cfg, nil)

	result := app.Evaluate(`
(defpart "cube" (box :size (vec3 10 10 10)))
(assembly "main" (wrinkle (part "cube")))
`)
	requireNoErrors(t, result)
	if len(result.Cuts) != 2 {
		t.Errorf("expected 2 cuts from config default, got %d", len(result.Cuts))
	}
}

func TestKernelSelection(t *testing.T) {
	cfg := config.Default()
	cfg.Mesh.Cells = 40
	cfg.Mesh.Kernel = "manifold"
	app := NewAppWithConfig(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, ok := app.kernel.(*sdfx.SdfxKernel); ok == manifold.Available {
		t.Errorf("kernel %T does not match manifold.Available=%v", app.kernel, manifold.Available)
	}

	result := app.Evaluate(`
(defpart "cube" (box :size (vec3 10 10 10)))
(assembly "main" (wrinkle (part "cube") :iterations 2 :seed 5))
`)
	requireNoErrors(t, result)
	if len(result.Meshes) != 1 || len(result.Cuts) != 2 {
		t.Errorf("got %d meshes and %d cuts", len(result.Meshes), len(result.Cuts))
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	result := newTestApp(t).Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	result := newTestApp(t).Evaluate("(defpart \"test\"")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2ESinglePart ensures a lone defpart renders one mesh.
func TestE2ESinglePart(t *testing.T) {
	result := newTestApp(t).Evaluate(`(defpart "slab" (box :size (vec3 60 30 18)))`)
	requireNoErrors(t, result)

	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if result.Meshes[0].PartName != "slab" {
		t.Errorf("expected part name 'slab', got %q", result.Meshes[0].PartName)
	}
}

func TestExportSTL(t *testing.T) {
	app := newTestApp(t)
	path := filepath.Join(t.TempDir(), "out.stl")

	result, err := app.Export(`
(defpart "cube" (box :size (vec3 20 20 20)))
(assembly "main" (wrinkle (part "cube") :iterations 3 :seed 1))
`, path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	requireNoErrors(t, result)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() <= 84 {
		t.Errorf("STL file holds no triangles (%d bytes)", info.Size())
	}
}

func TestExportScriptError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.stl")
	result, err := newTestApp(t).Export(`(part "ghost")`, path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(result.Errors) == 0 {
		t.Error("expected eval errors in result")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("no file should be written, stat err = %v", err)
	}
}

func TestPlan(t *testing.T) {
	app := newTestApp(t)
	req := PlanRequest{
		Radius:     [3]float64{1, 1, 1},
		Iterations: 5,
		Seed:       42,
		Count:      4,
		Workers:    2,
	}

	plans, err := app.Plan(req)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plans) != 4 {
		t.Fatalf("expected 4 plans, got %d", len(plans))
	}
	for i, p := range plans {
		if p.Seed != 42+int64(i) {
			t.Errorf("plan %d: seed %d", i, p.Seed)
		}
		if len(p.Cuts) != 5 {
			t.Errorf("plan %d: %d cuts", i, len(p.Cuts))
		}
	}

	// Running a single seed reproduces the matching plan.
	again, err := app.Plan(PlanRequest{Radius: req.Radius, Iterations: 5, Seed: 44, Count: 1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for i := range again[0].Cuts {
		if again[0].Cuts[i] != plans[2].Cuts[i] {
			t.Errorf("cut %d differs from batched run", i)
		}
	}
}

func TestPlanErrors(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.Plan(PlanRequest{Count: -1}); err == nil {
		t.Error("expected error for negative count")
	}
	if _, err := app.Plan(PlanRequest{Count: 1, Iterations: -2, Radius: [3]float64{1, 1, 1}}); err == nil {
		t.Error("expected error for negative iterations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	app.startup(ctx)
	if _, err := app.Plan(PlanRequest{Count: 3, Iterations: 1, Radius: [3]float64{1, 1, 1}}); err == nil {
		t.Error("expected error after the app context is canceled")
	}
}

func TestCLIPlan(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"plan", "-iterations", "3", "-seed", "42", "-count", "2", "-radius", "1,2,3", "-center", "0,0,1",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr.String())
	}

	var plans []PlanData
	if err := json.Unmarshal(stdout.Bytes(), &plans); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
	}
	if len(plans) != 2 || len(plans[0].Cuts) != 3 || plans[1].Seed != 43 {
		t.Errorf("unexpected plans: %+v", plans)
	}
}

func TestCLIPlanIterationsFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "papercut.toml")
	if err := os.WriteFile(cfgPath, []byte("[wrinkle]\niterations = 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unset uses config", []string{"plan", "-config", cfgPath}, 7},
		{"explicit zero", []string{"plan", "-config", cfgPath, "-iterations", "0"}, 0},
		{"explicit value", []string{"plan", "-config", cfgPath, "-iterations", "2"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), tt.args, &stdout, &stderr); err != nil {
				t.Fatalf("run: %v (stderr %s)", err, stderr.String())
			}
			var plans []PlanData
			if err := json.Unmarshal(stdout.Bytes(), &plans); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
			}
			if len(plans) != 1 || len(plans[0].Cuts) != tt.want {
				t.Errorf("got %+v, want one plan of %d cuts", plans, tt.want)
			}
		})
	}
}

func TestCLIRender(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "papercut.toml")
	if err := os.WriteFile(cfgPath, []byte("[mesh]\ncells = 32\n[log]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "cube.stl")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"render", "-config", cfgPath, "-o", out, "examples/wrinkled_cube.papercut",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("expected STL output: %v", err)
	}
}

func TestCLIRenderRelativeOutput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "papercut.toml")
	cfg := "project_path = \"out\"\n[mesh]\ncells = 32\n[log]\nlevel = \"error\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"render", "-config", cfgPath, "-o", "cube.stl", "examples/wrinkled_cube.papercut",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (stderr %s)", err, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "cube.stl")); err != nil {
		t.Errorf("expected STL under the project path: %v", err)
	}
}

func TestCLIErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "missing command"},
		{"unknown command", []string{"explode"}, "unknown command"},
		{"render without script", []string{"render"}, "expected one script"},
		{"bad vector", []string{"plan", "-radius", "1,2"}, "x,y,z"},
		{"negative iterations", []string{"plan", "-iterations", "-1"}, "invalid argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error()+stderr.String(), tt.want) {
				t.Errorf("error %q (stderr %q) should mention %q", err, stderr.String(), tt.want)
			}
		})
	}
}
