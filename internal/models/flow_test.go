package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdesk/internal/database"
	"flowdesk/internal/flow"
)

func newTestRepo(t *testing.T) *FlowRepository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "flowdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFlowRepository(db)
}

func seedFlow(id, name string) *Flow {
	g := flow.NewSeedGraph()
	return &Flow{ID: id, Name: name, Nodes: g.Nodes(), Edges: g.Edges()}
}

func TestFlowRepositoryCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)

	f := seedFlow("f1", "Soporte")
	require.NoError(t, repo.Create(f))
	assert.False(t, f.CreatedAt.IsZero())

	got, err := repo.GetByID("f1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Soporte", got.Name)
	assert.Equal(t, f.Nodes, got.Nodes)
	assert.Equal(t, f.Edges, got.Edges)
}

func TestFlowRepositoryGetMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFlowRepositorySaveKeepsOrderAndDanglingEdges(t *testing.T) {
	repo := newTestRepo(t)
	f := seedFlow("f1", "Soporte")
	require.NoError(t, repo.Create(f))

	f.Nodes = append(f.Nodes, flow.Node{ID: "10", Type: flow.NodeTypeDelay, Position: flow.Point{X: 1.5, Y: -2}, Label: "New delay"})
	f.Edges = append(f.Edges, flow.Edge{From: "3", To: "99"})
	f.Name = "Ventas"

	found, err := repo.Save(f)
	require.NoError(t, err)
	assert.True(t, found)

	got, err := repo.GetByID("f1")
	require.NoError(t, err)
	assert.Equal(t, "Ventas", got.Name)
	require.Len(t, got.Nodes, 4)
	assert.Equal(t, "10", got.Nodes[3].ID)
	assert.Equal(t, flow.Point{X: 1.5, Y: -2}, got.Nodes[3].Position)
	assert.Equal(t, flow.Edge{From: "3", To: "99"}, got.Edges[2])
}

func TestFlowRepositorySaveMissing(t *testing.T) {
	repo := newTestRepo(t)

	found, err := repo.Save(seedFlow("ghost", "x"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFlowRepositoryListRenameDelete(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Create(seedFlow("a", "Uno")))
	require.NoError(t, repo.Create(seedFlow("b", "Dos")))

	list, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, 3, s.NodeCount)
		assert.Equal(t, 2, s.EdgeCount)
	}

	found, err := repo.Rename("a", "Primero")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Delete("b")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Delete("b")
	require.NoError(t, err)
	assert.False(t, found)

	list, err = repo.GetAll()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Primero", list[0].Name)
}
