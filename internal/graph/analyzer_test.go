package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popoloni/codescope/internal/parser"
	"github.com/popoloni/codescope/pkg/types"
)

const testRepoID = "repo-1"

func parsedFixture(t *testing.T, path, source string) *types.ParsedFile {
	t.Helper()
	f, err := parser.New().Parse(path, []byte(source))
	require.NoError(t, err)
	for i := range f.Elements {
		f.Elements[i].RepositoryID = testRepoID
		f.Elements[i].FilePath = path
		f.Elements[i].SetFullName()
	}
	return f
}

func edgesBetween(g *types.DependencyGraph, from, to string, kind types.DependencyKind) []types.DependencyEdge {
	var out []types.DependencyEdge
	for _, e := range g.Edges {
		if e.FromElement == from && e.ToElement == to && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestBuildGraphInheritance(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "base.py", "class Base:\n    pass\n"),
		parsedFixture(t, "child.py", "class Child(Base):\n    pass\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	child := types.QualifiedName(testRepoID, "child.py", "Child")
	base := types.QualifiedName(testRepoID, "base.py", "Base")
	edges := edgesBetween(g, child, base, types.DepInheritance)
	require.NotEmpty(t, edges)
	assert.Equal(t, types.DependencyStrength[types.DepInheritance], edges[0].Strength)
	assert.Equal(t, "child.py", edges[0].FromFile)
	assert.Contains(t, g.Nodes, child)
	assert.Contains(t, g.Nodes, base)
}

func TestBuildGraphComposition(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "engine.py", "class Engine:\n    pass\n"),
		parsedFixture(t, "car.py", "class Car:\n    def __init__(self):\n        self.engine = Engine()\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	car := types.QualifiedName(testRepoID, "car.py", "Car")
	engine := types.QualifiedName(testRepoID, "engine.py", "Engine")
	assert.NotEmpty(t, edgesBetween(g, car, engine, types.DepComposition))
}

func TestBuildGraphMethodCall(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "store.py", "def save_record(record):\n    pass\n"),
		parsedFixture(t, "handler.py", "def handle(db, record):\n    return db.save_record(record)\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	handle := types.QualifiedName(testRepoID, "handler.py", "handle")
	save := types.QualifiedName(testRepoID, "store.py", "save_record")
	assert.NotEmpty(t, edgesBetween(g, handle, save, types.DepMethodCall))
}

func TestBuildGraphMethodCallResolvesClassMethod(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "db.py", "class Db:\n    def save_record(self, record):\n        pass\n"),
		parsedFixture(t, "handler.py", "def handle(db, record):\n    return db.save_record(record)\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	handle := types.QualifiedName(testRepoID, "handler.py", "handle")
	save := types.QualifiedName(testRepoID, "db.py", "Db.save_record")
	assert.NotEmpty(t, edgesBetween(g, handle, save, types.DepMethodCall))
}

func TestBuildGraphImportUsage(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "cart.js", "export class Cart {\n}\n"),
		parsedFixture(t, "main.js", "const Cart = require('./cart')\n\nfunction buildCart() {\n  return new Cart()\n}\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	build := types.QualifiedName(testRepoID, "main.js", "buildCart")
	cart := types.QualifiedName(testRepoID, "cart.js", "Cart")
	assert.NotEmpty(t, edgesBetween(g, build, cart, types.DepImportUsage))
}

func TestBuildGraphFileImports(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "helpers.py", "def format_price(cents):\n    return cents / 100\n"),
		parsedFixture(t, "main.py", "from .helpers import format_price\n\ndef run():\n    return format_price(100)\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	edges := edgesBetween(g, "main.py", "helpers.py", types.DepFileImport)
	require.NotEmpty(t, edges)
	assert.Equal(t, types.DependencyStrength[types.DepFileImport], edges[0].Strength)
}

func TestBuildGraphIgnoresExternalImports(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "api.py", "import requests\n\ndef fetch(url):\n    return requests.get(url)\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	for _, e := range g.Edges {
		assert.NotEqual(t, types.DepFileImport, e.Kind, "external imports produce no file edges")
	}
}

func TestBuildGraphNoSelfEdges(t *testing.T) {
	files := []*types.ParsedFile{
		parsedFixture(t, "node.py", "class Node:\n    def clone(self):\n        return Node()\n"),
	}
	g := New().BuildGraph(&types.Repository{ID: testRepoID}, files)

	node := types.QualifiedName(testRepoID, "node.py", "Node")
	assert.Empty(t, edgesBetween(g, node, node, types.DepComposition))
	assert.Empty(t, edgesBetween(g, node, node, types.DepInheritance))
}

func TestContainsIdentifier(t *testing.T) {
	assert.True(t, containsIdentifier("return Cart()", "Cart"))
	assert.True(t, containsIdentifier("Cart", "Cart"))
	assert.False(t, containsIdentifier("ShoppingCart()", "Cart"))
	assert.False(t, containsIdentifier("CartItem", "Cart"))
	assert.False(t, containsIdentifier("", "Cart"))
}
