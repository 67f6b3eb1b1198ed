package graph

import (
	"encoding/json"
	"testing"
)

func TestNewDesignGraph(t *testing.T) {
	g := New()
	if g.Nodes == nil {
		t.Fatal("Nodes map should be initialized")
	}
	if g.NameIndex == nil {
		t.Fatal("NameIndex map should be initialized")
	}
	if g.NodeCount() != 0 {
		t.Errorf("empty graph should have 0 nodes, got %d", g.NodeCount())
	}
}

func TestNodeID(t *testing.T) {
	a := NewNodeID("defpart/cube")
	b := NewNodeID("defpart/cube")
	c := NewNodeID("defpart/ball")

	if a != b {
		t.Error("same path should give the same id")
	}
	if a == c {
		t.Error("different paths should give different ids")
	}
	if a.IsZero() {
		t.Error("derived id should not be zero")
	}
	if !ZeroID.IsZero() {
		t.Error("ZeroID should be zero")
	}
	if len(a.Short()) != 8 {
		t.Errorf("Short() = %q, want 8 characters", a.Short())
	}
	if len(a.String()) != 64 {
		t.Errorf("String() has %d characters, want 64", len(a.String()))
	}

	text, err := a.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var back NodeID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back != a {
		t.Error("text round trip changed the id")
	}
	if err := back.UnmarshalText([]byte("abc")); err == nil {
		t.Error("short id should not decode")
	}
}

func TestAddNodeAndLookup(t *testing.T) {
	g := New()

	id := NewNodeID("defpart/cube")
	node := &Node{
		ID:   id,
		Kind: NodePrimitive,
		Name: "cube",
		Data: BoxData{Size: Vec(10, 10, 10)},
	}
	g.AddNode(node)
	g.AddRoot(id)

	if g.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1", g.NodeCount())
	}

	found := g.Lookup("cube")
	if found == nil {
		t.Fatal("Lookup('cube') returned nil")
	}
	if found.ID != id {
		t.Errorf("lookup returned wrong node")
	}
	if g.MustLookup("cube").ID != id {
		t.Errorf("MustLookup returned wrong node")
	}
	if g.Lookup("nonexistent") != nil {
		t.Error("Lookup should return nil for missing name")
	}
	if got := g.Get(id); got == nil || got.Name != "cube" {
		t.Errorf("Get by ID failed")
	}
	if len(g.Roots) != 1 || g.Roots[0] != id {
		t.Errorf("roots = %v, want [%s]", g.Roots, id.Short())
	}
	if node.ContentHash == (ContentHash{}) {
		t.Error("AddNode should fill in the content hash")
	}
}

func TestMustLookupPanics(t *testing.T) {
	g := New()
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustLookup should panic for missing name")
		}
	}()
	g.MustLookup("missing")
}

func TestContentHash(t *testing.T) {
	at := Vec(1, 2, 3)
	same := Vec(1, 2, 3)
	h1 := HashData(TransformData{Translation: &at})
	h2 := HashData(TransformData{Translation: &same})
	if h1 != h2 {
		t.Error("equal payloads behind different pointers should hash equally")
	}
	if HashData(BoxData{Size: Vec(1, 1, 1)}) == HashData(BoxData{Size: Vec(1, 1, 2)}) {
		t.Error("different payloads should hash differently")
	}
	if HashData(SphereData{Radius: 1}) == HashData(CylinderData{Radius: 1}) {
		t.Error("payload type should be part of the hash")
	}
}

func TestPartsAndWrinkles(t *testing.T) {
	g := New()
	cube := NewNodeID("defpart/cube")
	ball := NewNodeID("defpart/ball")
	wr := NewNodeID("wrinkle/cube/1")

	g.AddNode(&Node{ID: cube, Kind: NodePrimitive, Name: "cube", Data: BoxData{Size: Vec(1, 1, 1)}})
	g.AddNode(&Node{ID: ball, Kind: NodePrimitive, Name: "ball", Data: SphereData{Radius: 1}})
	g.AddNode(&Node{ID: wr, Kind: NodeWrinkle, Children: []NodeID{cube}, Data: WrinkleData{Iterations: 3}})

	if n := len(g.Parts()); n != 2 {
		t.Errorf("Parts() = %d nodes, want 2", n)
	}
	ws := g.Wrinkles()
	if len(ws) != 1 || ws[0].ID != wr {
		t.Errorf("Wrinkles() = %v, want the wrinkle node", ws)
	}
	children := g.Children(ws[0])
	if len(children) != 1 || children[0].Name != "cube" {
		t.Errorf("Children(wrinkle) = %v, want [cube]", children)
	}
}

func TestChildrenSkipsDangling(t *testing.T) {
	g := New()
	grp := &Node{
		ID:       NewNodeID("assembly/a"),
		Kind:     NodeGroup,
		Children: []NodeID{NewNodeID("ghost")},
		Data:     GroupData{},
	}
	g.AddNode(grp)
	if n := len(g.Children(grp)); n != 0 {
		t.Errorf("Children() = %d, want 0 for a dangling child", n)
	}
}

func TestNodeKindString(t *testing.T) {
	tests := []struct {
		kind NodeKind
		want string
	}{
		{NodePrimitive, "primitive"},
		{NodeTransform, "transform"},
		{NodeGroup, "group"},
		{NodeWrinkle, "wrinkle"},
		{NodeKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("NodeKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPrimitiveOf(t *testing.T) {
	tests := []struct {
		data NodeData
		want PrimitiveKind
		ok   bool
	}{
		{BoxData{}, PrimBox, true},
		{SphereData{}, PrimSphere, true},
		{CylinderData{}, PrimCylinder, true},
		{WrinkleData{}, 0, false},
		{GroupData{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := PrimitiveOf(tt.data)
		if ok != tt.ok || got != tt.want {
			t.Errorf("PrimitiveOf(%T) = %v, %v; want %v, %v", tt.data, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGraphJSON(t *testing.T) {
	g := New()
	id := NewNodeID("defpart/cube")
	g.AddNode(&Node{ID: id, Kind: NodePrimitive, Name: "cube", Data: BoxData{Size: Vec(1, 2, 3)}})
	g.AddRoot(id)

	b, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw struct {
		NameIndex map[string]string `json:"name_index"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw.NameIndex["cube"] != id.String() {
		t.Errorf("name_index[cube] = %q, want %q", raw.NameIndex["cube"], id.String())
	}
}
