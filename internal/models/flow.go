package models

import (
	"database/sql"
	"fmt"
	"time"

	"flowdesk/internal/database"
	"flowdesk/internal/flow"
)

// Flow is a stored flow graph.
type Flow struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Nodes     []flow.Node `json:"nodes"`
	Edges     []flow.Edge `json:"edges"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FlowSummary is a Flow without its graph, for listings.
type FlowSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FlowRepository struct {
	db *database.DB
}

func NewFlowRepository(db *database.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

func (r *FlowRepository) Create(f *Flow) error {
	err := r.db.Tx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO flows (id, name, created_at, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		`, f.ID, f.Name)
		if err != nil {
			return fmt.Errorf("failed to create flow: %w", err)
		}
		return writeGraph(tx, f)
	})
	if err != nil {
		return err
	}

	r.loadTimestamps(f)
	return nil
}

func (r *FlowRepository) GetByID(id string) (*Flow, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var f Flow
	err := r.db.Conn().QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM flows
		WHERE id = ?
	`, id).Scan(&f.ID, &f.Name, &f.CreatedAt, &f.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	if f.Nodes, err = r.nodes(id); err != nil {
		return nil, err
	}
	if f.Edges, err = r.edges(id); err != nil {
		return nil, err
	}

	return &f, nil
}

func (r *FlowRepository) nodes(flowID string) ([]flow.Node, error) {
	rows, err := r.db.Conn().Query(`
		SELECT node_id, node_type, x, y, label
		FROM flow_nodes
		WHERE flow_id = ?
		ORDER BY position
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []flow.Node{}
	for rows.Next() {
		var n flow.Node
		var nodeType string
		if err := rows.Scan(&n.ID, &nodeType, &n.Position.X, &n.Position.Y, &n.Label); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Type = flow.NodeType(nodeType)
		nodes = append(nodes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

func (r *FlowRepository) edges(flowID string) ([]flow.Edge, error) {
	rows, err := r.db.Conn().Query(`
		SELECT from_node, to_node
		FROM flow_edges
		WHERE flow_id = ?
		ORDER BY position
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := []flow.Edge{}
	for rows.Next() {
		var e flow.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

func (r *FlowRepository) GetAll() ([]FlowSummary, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT f.id, f.name, f.created_at, f.updated_at,
			(SELECT COUNT(*) FROM flow_nodes n WHERE n.flow_id = f.id),
			(SELECT COUNT(*) FROM flow_edges e WHERE e.flow_id = f.id)
		FROM flows f
		ORDER BY f.updated_at DESC, f.name
	`

	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	flows := []FlowSummary{}

	for rows.Next() {
		var s FlowSummary
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.NodeCount,
			&s.EdgeCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// Save replaces the stored name and graph of f. It reports false when the
// flow does not exist.
func (r *FlowRepository) Save(f *Flow) (bool, error) {
	found := false
	err := r.db.Tx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE flows
			SET name = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, f.Name, f.ID)
		if err != nil {
			return fmt.Errorf("failed to update flow: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil
		}
		found = true

		if _, err := tx.Exec("DELETE FROM flow_nodes WHERE flow_id = ?", f.ID); err != nil {
			return fmt.Errorf("failed to clear nodes: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM flow_edges WHERE flow_id = ?", f.ID); err != nil {
			return fmt.Errorf("failed to clear edges: %w", err)
		}
		return writeGraph(tx, f)
	})
	if err != nil || !found {
		return false, err
	}

	r.loadTimestamps(f)
	return true, nil
}

func (r *FlowRepository) Rename(id, name string) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(
		"UPDATE flows SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		name, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to rename flow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *FlowRepository) Delete(id string) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec("DELETE FROM flows WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete flow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *FlowRepository) loadTimestamps(f *Flow) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(
		"SELECT created_at, updated_at FROM flows WHERE id = ?",
		f.ID,
	)
	if err := row.Scan(&f.CreatedAt, &f.UpdatedAt); err != nil {
		f.CreatedAt = time.Now()
		f.UpdatedAt = f.CreatedAt
	}
}

func writeGraph(tx *sql.Tx, f *Flow) error {
	nodeStmt, err := tx.Prepare(`
		INSERT INTO flow_nodes (flow_id, node_id, position, node_type, x, y, label)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for i, n := range f.Nodes {
		if _, err := nodeStmt.Exec(f.ID, n.ID, i, string(n.Type), n.Position.X, n.Position.Y, n.Label); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(`
		INSERT INTO flow_edges (flow_id, position, from_node, to_node)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for i, e := range f.Edges {
		if _, err := edgeStmt.Exec(f.ID, i, e.From, e.To); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", e.From, e.To, err)
		}
	}

	return nil
}
