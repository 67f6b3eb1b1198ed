// Package tessellate walks a design graph and produces triangle meshes
// using a geometry kernel. One mesh is produced per part; wrinkled parts
// are cut with a sampled plan first and every cut is reported.
package tessellate

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/chazu/papercut/pkg/cutplan"
	"github.com/chazu/papercut/pkg/graph"
	"github.com/chazu/papercut/pkg/kernel"
	"github.com/chazu/papercut/pkg/vecmath"
)

// DefaultSegments is the circular resolution for cylinders.
const DefaultSegments = 32

// Options configures a tessellation run. The zero value is usable.
type Options struct {
	Sampler  *cutplan.Sampler // nil means cutplan.NewSampler()
	Logger   *slog.Logger     // nil discards
	Segments int              // cylinder segments, 0 means DefaultSegments
}

func (o Options) withDefaults() Options {
	if o.Sampler == nil {
		o.Sampler = cutplan.NewSampler()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Segments <= 0 {
		o.Segments = DefaultSegments
	}
	return o
}

// CutReport records one planned cut of a wrinkled part.
type CutReport struct {
	Part       string             `json:"part"`
	Wrinkle    graph.NodeID       `json:"wrinkle"`
	Index      int                `json:"index"`
	Descriptor cutplan.Descriptor `json:"descriptor"`
	Err        error              `json:"-"`
}

// Result is the output of Tessellate.
type Result struct {
	Meshes []*kernel.Mesh
	Cuts   []CutReport
}

// FailedCuts returns the reports whose cut was rejected by the kernel.
func (r *Result) FailedCuts() []CutReport {
	var out []CutReport
	for _, c := range r.Cuts {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// transformStack accumulates spatial transforms during graph traversal.
type transformStack struct {
	translations []graph.Vec3
	rotations    []graph.Vec3
}

func newTransformStack() *transformStack {
	return &transformStack{}
}

func (ts *transformStack) push(translation, rotation graph.Vec3) {
	ts.translations = append(ts.translations, translation)
	ts.rotations = append(ts.rotations, rotation)
}

func (ts *transformStack) pop() {
	if len(ts.translations) > 0 {
		ts.translations = ts.translations[:len(ts.translations)-1]
	}
	if len(ts.rotations) > 0 {
		ts.rotations = ts.rotations[:len(ts.rotations)-1]
	}
}

// accumulatedTranslation returns the sum of all translations on the stack.
func (ts *transformStack) accumulatedTranslation() graph.Vec3 {
	var sum graph.Vec3
	for _, t := range ts.translations {
		sum = sum.Add(t)
	}
	return sum
}

// accumulatedRotation returns the sum of all rotations on the stack.
func (ts *transformStack) accumulatedRotation() graph.Vec3 {
	var sum graph.Vec3
	for _, r := range ts.rotations {
		sum = sum.Add(r)
	}
	return sum
}

// matrix returns the world matrix place applies: rotation first, then
// translation.
func (ts *transformStack) matrix() vecmath.Matrix4 {
	t := ts.accumulatedTranslation()
	r := ts.accumulatedRotation()
	return vecmath.Translation(vecmath.Vec(t.X, t.Y, t.Z)).
		Mul(vecmath.RotationEuler(r.X, r.Y, r.Z))
}

// place moves a local-space solid into world space.
func (ts *transformStack) place(k kernel.Kernel, s kernel.Solid) kernel.Solid {
	rot := ts.accumulatedRotation()
	if rot.X != 0 || rot.Y != 0 || rot.Z != 0 {
		s = k.Rotate(s, rot.X, rot.Y, rot.Z)
	}
	trans := ts.accumulatedTranslation()
	if trans.X != 0 || trans.Y != 0 || trans.Z != 0 {
		s = k.Translate(s, trans.X, trans.Y, trans.Z)
	}
	return s
}

// walker carries the per-run state through the traversal.
type walker struct {
	g    *graph.DesignGraph
	k    kernel.Kernel
	opts Options
	ts   *transformStack
	res  *Result
}

// Tessellate walks the design graph and produces one triangle mesh per
// primitive part using the provided geometry kernel. The tessellator is
// read-only and never mutates the graph.
//
// A graph without roots renders each primitive once, in name order, so a
// script that only defines parts still shows something.
//
// Rejected cuts do not fail the run; they are listed in Result.Cuts with
// a non-nil Err. Sampling errors do fail it.
func Tessellate(g *graph.DesignGraph, k kernel.Kernel, opts Options) (*Result, error) {
	res := &Result{}
	if g == nil {
		return res, nil
	}

	w := &walker{g: g, k: k, opts: opts.withDefaults(), ts: newTransformStack(), res: res}
	for _, root := range entryNodes(g) {
		if err := w.walk(root); err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %s: %w", root.ID.Short(), err)
		}
	}

	return res, nil
}

func entryNodes(g *graph.DesignGraph) []*graph.Node {
	if len(g.Roots) == 0 {
		parts := g.Parts()
		sort.Slice(parts, func(i, j int) bool { return partName(parts[i]) < partName(parts[j]) })
		return parts
	}
	var out []*graph.Node
	for _, id := range g.Roots {
		if n := g.Get(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// walk recursively traverses a node and its children, collecting meshes.
func (w *walker) walk(n *graph.Node) error {
	switch n.Kind {
	case graph.NodePrimitive:
		return w.handlePrimitive(n)
	case graph.NodeTransform:
		return w.handleTransform(n)
	case graph.NodeGroup:
		return w.handleGroup(n)
	case graph.NodeWrinkle:
		return w.handleWrinkle(n)
	default:
		return fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

// solidFor creates the local-space solid for a primitive node.
func (w *walker) solidFor(n *graph.Node) (kernel.Solid, error) {
	switch data := n.Data.(type) {
	case graph.BoxData:
		return w.k.Box(data.Size.X, data.Size.Y, data.Size.Z), nil
	case graph.SphereData:
		return w.k.Sphere(data.Radius), nil
	case graph.CylinderData:
		return w.k.Cylinder(data.Height, data.Radius, w.opts.Segments), nil
	default:
		return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
	}
}

func partName(n *graph.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID.Short()
}

func (w *walker) emit(n *graph.Node, s kernel.Solid) error {
	mesh, err := w.k.ToMesh(s)
	if err != nil {
		return fmt.Errorf("tessellate: ToMesh failed for node %s: %w", n.ID.Short(), err)
	}
	mesh.PartName = partName(n)
	w.res.Meshes = append(w.res.Meshes, mesh)
	return nil
}

// handlePrimitive creates geometry for a primitive node.
func (w *walker) handlePrimitive(n *graph.Node) error {
	solid, err := w.solidFor(n)
	if err != nil {
		return err
	}
	return w.emit(n, w.ts.place(w.k, solid))
}

// handleWrinkle samples a cut plan for the wrapped primitive in its world
// pose, places the primitive and applies every cut through the kernel.
func (w *walker) handleWrinkle(n *graph.Node) error {
	wd, ok := n.Data.(graph.WrinkleData)
	if !ok {
		return fmt.Errorf("wrinkle node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}
	children := w.g.Children(n)
	if len(children) != 1 || children[0].Kind != graph.NodePrimitive {
		return fmt.Errorf("wrinkle node %s must wrap exactly one primitive", n.ID.Short())
	}
	part := children[0]

	local, err := w.solidFor(part)
	if err != nil {
		return err
	}

	extent := cutplan.ExtentFromBounds(local.BoundingBox())
	descs, err := w.opts.Sampler.Sample(extent, w.ts.matrix(), wd.Iterations, wd.Seed)
	if err != nil {
		return fmt.Errorf("wrinkle %s: %w", partName(part), err)
	}

	kc := &kernelCutter{k: w.k, solid: w.ts.place(w.k, local), kerf: wd.Kerf}
	outcomes := cutplan.Apply(descs, kc)

	for _, o := range outcomes {
		w.res.Cuts = append(w.res.Cuts, CutReport{
			Part:       partName(part),
			Wrinkle:    n.ID,
			Index:      o.Index,
			Descriptor: o.Descriptor,
			Err:        o.Err,
		})
		if o.Err != nil {
			w.opts.Logger.Warn("cut rejected",
				"part", partName(part),
				"index", o.Index,
				"err", o.Err,
			)
		}
	}
	w.opts.Logger.Debug("wrinkled part",
		"part", partName(part),
		"seed", wd.Seed,
		"planned", len(descs),
		"failed", cutplan.Failed(outcomes),
	)

	return w.emit(part, kc.solid)
}

// handleTransform pushes the transform, recurses into children, then pops.
func (w *walker) handleTransform(n *graph.Node) error {
	td, ok := n.Data.(graph.TransformData)
	if !ok {
		return fmt.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}

	translation := graph.Vec3{}
	rotation := graph.Vec3{}
	if td.Translation != nil {
		translation = *td.Translation
	}
	if td.Rotation != nil {
		rotation = *td.Rotation
	}
	w.ts.push(translation, rotation)
	defer w.ts.pop()

	for _, child := range w.g.Children(n) {
		if err := w.walk(child); err != nil {
			return err
		}
	}
	return nil
}

// handleGroup recurses into children transparently.
func (w *walker) handleGroup(n *graph.Node) error {
	for _, child := range w.g.Children(n) {
		if err := w.walk(child); err != nil {
			return err
		}
	}
	return nil
}
