package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/papercut/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms papercut Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: wrinkle-seed -> wrinkle_seed
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpPrimitive wraps a primitive payload so it can be returned from
// box/sphere/cylinder and consumed by defpart.
type sexpPrimitive struct {
	data graph.NodeData
}

func (p *sexpPrimitive) SexpString(ps *zygo.PrintState) string {
	switch d := p.data.(type) {
	case graph.BoxData:
		return fmt.Sprintf("(box %gx%gx%g)", d.Size.X, d.Size.Y, d.Size.Z)
	case graph.SphereData:
		return fmt.Sprintf("(sphere r=%g)", d.Radius)
	case graph.CylinderData:
		return fmt.Sprintf("(cylinder h=%g r=%g)", d.Height, d.Radius)
	}
	return "(primitive)"
}
func (p *sexpPrimitive) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// float reads keyword key into *dst if present.
func (a kwArgs) float(fn, key string, dst *float64) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	*dst = f
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt64 extracts an integer. Floats are accepted when they are whole.
func toInt64(s zygo.Sexp) (int64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return v.Val, nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) && math.Abs(v.Val) < 1<<53 {
			return int64(v.Val), nil
		}
		return 0, fmt.Errorf("expected integer, got %g", v.Val)
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder holds the graph under construction and a per-evaluation
// counter for anonymous node ids, so the same source always yields the
// same ids.
type builder struct {
	g        *graph.DesignGraph
	defaults graph.WrinkleData
	anon     int
}

func (b *builder) nextID(kind string) graph.NodeID {
	b.anon++
	return graph.NewNodeID(fmt.Sprintf("%s/%d", kind, b.anon))
}

// registerBuiltins installs all papercut DSL builtins into a zygomys
// environment. The builtins populate g during evaluation; wrinkle forms
// that omit a key take it from defaults.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, g *graph.DesignGraph, defaults graph.WrinkleData) {
	b := &builder{g: g, defaults: defaults}

	env.AddFunction("vec3", b.vec3)
	env.AddFunction("box", b.box)
	env.AddFunction("sphere", b.sphere)
	env.AddFunction("cylinder", b.cylinder)
	env.AddFunction("defpart", b.defpart)
	env.AddFunction("part", b.part)
	env.AddFunction("place", b.place)
	env.AddFunction("wrinkle", b.wrinkle)
	env.AddFunction("assembly", b.assembly)
}

// (vec3 1 2 3)
func (b *builder) vec3(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 3 {
		return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
	}

	x, err := toFloat64(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
	}
	y, err := toFloat64(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
	}
	z, err := toFloat64(args[2])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
	}

	return &sexpVec3{vec: graph.Vec(x, y, z)}, nil
}

// (box :size (vec3 40 40 40)) or (box (vec3 40 40 40))
func (b *builder) box(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	v, ok := pa.kw["size"]
	if !ok {
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("box requires :size (vec3 x y z)")
		}
		v = pa.positional[0]
	}
	size, err := toVec3(v)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
	}
	return &sexpPrimitive{data: graph.BoxData{Size: size}}, nil
}

// (sphere :radius 20)
func (b *builder) sphere(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	var sd graph.SphereData
	if _, ok := pa.kw["radius"]; !ok {
		return zygo.SexpNull, fmt.Errorf("sphere requires :radius")
	}
	if err := pa.float("sphere", "radius", &sd.Radius); err != nil {
		return zygo.SexpNull, err
	}
	return &sexpPrimitive{data: sd}, nil
}

// (cylinder :height 40 :radius 10)
func (b *builder) cylinder(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	var cd graph.CylinderData
	for _, key := range []string{"height", "radius"} {
		if _, ok := pa.kw[key]; !ok {
			return zygo.SexpNull, fmt.Errorf("cylinder requires :%s", key)
		}
	}
	if err := pa.float("cylinder", "height", &cd.Height); err != nil {
		return zygo.SexpNull, err
	}
	if err := pa.float("cylinder", "radius", &cd.Radius); err != nil {
		return zygo.SexpNull, err
	}
	return &sexpPrimitive{data: cd}, nil
}

// (defpart "name" (box ...))
func (b *builder) defpart(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) < 2 {
		return zygo.SexpNull, fmt.Errorf("defpart requires a name and a body expression")
	}

	partName, err := toString(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
	}

	prim, ok := args[1].(*sexpPrimitive)
	if !ok {
		return zygo.SexpNull, fmt.Errorf("defpart: expected box, sphere or cylinder expression, got %T", args[1])
	}

	id := graph.NewNodeID("defpart/" + partName)
	b.g.AddNode(&graph.Node{
		ID:   id,
		Kind: graph.NodePrimitive,
		Name: partName,
		Data: prim.data,
	})

	return &sexpNodeRef{id: id, name: partName}, nil
}

// (part "name")
func (b *builder) part(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) < 1 {
		return zygo.SexpNull, fmt.Errorf("part requires a name argument")
	}

	partName, err := toString(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
	}

	n := b.g.Lookup(partName)
	if n == nil {
		return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
	}

	return &sexpNodeRef{id: n.ID, name: partName}, nil
}

// (place (part "cube") :at (vec3 0 0 20) :rotate (vec3 0 0 45))
func (b *builder) place(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)

	if len(pa.positional) < 1 {
		return zygo.SexpNull, fmt.Errorf("place requires a part reference as first argument")
	}

	childID, err := toNodeRef(pa.positional[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("place: part: %w", err)
	}

	td := graph.TransformData{}
	if v, ok := pa.kw["at"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
		}
		td.Translation = &vec
	}
	if v, ok := pa.kw["rotate"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
		}
		td.Rotation = &vec
	}

	id := b.nextID("place")
	b.g.AddNode(&graph.Node{
		ID:       id,
		Kind:     graph.NodeTransform,
		Children: []graph.NodeID{childID},
		Data:     td,
	})

	return &sexpNodeRef{id: id}, nil
}

// (wrinkle (part "cube") :iterations 8 :seed 42 :kerf 0.5)
func (b *builder) wrinkle(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)

	if len(pa.positional) < 1 {
		return zygo.SexpNull, fmt.Errorf("wrinkle requires a part reference as first argument")
	}
	childID, err := toNodeRef(pa.positional[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("wrinkle: part: %w", err)
	}

	wd := b.defaults
	if v, ok := pa.kw["iterations"]; ok {
		n, err := toInt64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("wrinkle: iterations: %w", err)
		}
		if n < 0 {
			return zygo.SexpNull, fmt.Errorf("wrinkle: iterations must not be negative, got %d", n)
		}
		wd.Iterations = int(n)
	}
	if v, ok := pa.kw["seed"]; ok {
		s, err := toInt64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("wrinkle: seed: %w", err)
		}
		wd.Seed = s
	}
	if err := pa.float("wrinkle", "kerf", &wd.Kerf); err != nil {
		return zygo.SexpNull, err
	}
	if wd.Kerf < 0 {
		return zygo.SexpNull, fmt.Errorf("wrinkle: kerf must not be negative, got %g", wd.Kerf)
	}

	id := b.nextID("wrinkle")
	b.g.AddNode(&graph.Node{
		ID:       id,
		Kind:     graph.NodeWrinkle,
		Children: []graph.NodeID{childID},
		Data:     wd,
	})

	return &sexpNodeRef{id: id}, nil
}

// (assembly "name" (place ...) (wrinkle ...) ...)
func (b *builder) assembly(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) < 1 {
		return zygo.SexpNull, fmt.Errorf("assembly requires a name argument")
	}

	asmName, err := toString(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("assembly: name: %w", err)
	}

	var children []graph.NodeID
	for i := 1; i < len(args); i++ {
		ref, ok := args[i].(*sexpNodeRef)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("assembly: child %d: expected node reference, got %T (%s)",
				i, args[i], args[i].SexpString(nil))
		}
		children = append(children, ref.id)
	}

	id := graph.NewNodeID("assembly/" + asmName)
	b.g.AddNode(&graph.Node{
		ID:       id,
		Kind:     graph.NodeGroup,
		Name:     asmName,
		Children: children,
		Data:     graph.GroupData{},
	})
	b.g.AddRoot(id)

	return &sexpNodeRef{id: id, name: asmName}, nil
}
