package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"flowdesk/internal/editor"
	"flowdesk/internal/flow"
	"flowdesk/internal/models"
)

type FlowHandler struct {
	manager *editor.Manager
	worker  *editor.Worker
	logger  *zap.Logger
}

func NewFlowHandler(manager *editor.Manager, worker *editor.Worker, logger *zap.Logger) *FlowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowHandler{
		manager: manager,
		worker:  worker,
		logger:  logger,
	}
}

// Request/Response types

type FlowNameRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type DragStartRequest struct {
	NodeType string `json:"node_type" validate:"required"`
}

// DropRequest carries the drop pointer and canvas bounds in page pixels.
// An empty node_type falls back to the last drag-start of the session.
type DropRequest struct {
	NodeType string      `json:"node_type"`
	Pointer  *flow.Point `json:"pointer" validate:"required"`
	Canvas   flow.Rect   `json:"canvas"`
}

type SelectRequest struct {
	NodeID string `json:"node_id" validate:"required"`
}

type FlowResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Flow    *editor.View `json:"flow,omitempty"`
}

type FlowListResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Flows   []models.FlowSummary `json:"flows"`
	Count   int                  `json:"count"`
}

type DragStartResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Payload    flow.DragPayload `json:"payload"`
	DropEffect flow.DropEffect  `json:"drop_effect"`
}

type NodeResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Node    *flow.Node `json:"node,omitempty"`
	Version int64      `json:"version"`
}

type SelectionResponse struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message"`
	SelectedID   string     `json:"selected_id,omitempty"`
	HasSelection bool       `json:"has_selection"`
	Node         *flow.Node `json:"node,omitempty"`
}

type EdgesResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Edges   []flow.ResolvedEdge `json:"edges"`
	Count   int                 `json:"count"`
}

// HandleFlows handles GET /api/flows (list) and POST /api/flows (create)
func (h *FlowHandler) HandleFlows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listFlows(w, r)
	case http.MethodPost:
		h.createFlow(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleFlow handles /api/flows/{id} and its sub-resources.
func (h *FlowHandler) HandleFlow(w http.ResponseWriter, r *http.Request) {
	// /api/flows/abc/drop -> "abc", "drop"
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/flows/"), "/")
	if path == "" {
		jsonError(w, "Invalid flow ID", http.StatusBadRequest)
		return
	}

	if path == "import" {
		h.importFlow(w, r)
		return
	}

	id, action, _ := strings.Cut(path, "/")

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.getFlow(w, r, id)
		case http.MethodPut:
			h.renameFlow(w, r, id)
		case http.MethodDelete:
			h.deleteFlow(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "drag-start":
		h.requireMethod(w, r, http.MethodPost, func() { h.dragStart(w, r, id) })
	case "drop":
		h.requireMethod(w, r, http.MethodPost, func() { h.drop(w, r, id) })
	case "selection":
		switch r.Method {
		case http.MethodGet:
			h.getSelection(w, r, id)
		case http.MethodPost:
			h.selectNode(w, r, id)
		case http.MethodDelete:
			h.clearSelection(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "edges":
		h.requireMethod(w, r, http.MethodGet, func() { h.listEdges(w, r, id) })
	case "save":
		h.requireMethod(w, r, http.MethodPost, func() { h.saveFlow(w, r, id) })
	case "export":
		h.requireMethod(w, r, http.MethodGet, func() { h.exportFlow(w, r, id) })
	case "stream":
		h.requireMethod(w, r, http.MethodGet, func() { h.streamFlow(w, r, id) })
	default:
		http.NotFound(w, r)
	}
}

func (h *FlowHandler) requireMethod(w http.ResponseWriter, r *http.Request, method string, next func()) {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	next()
}

// session opens the flow and writes the error response itself when that
// fails.
func (h *FlowHandler) session(w http.ResponseWriter, id string) (*editor.Session, bool) {
	s, err := h.manager.Open(id)
	if errors.Is(err, editor.ErrFlowNotFound) {
		jsonError(w, "Flow not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to open flow", zap.String("flow_id", id), zap.Error(err))
		jsonError(w, fmt.Sprintf("Failed to open flow: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	return s, true
}

func (h *FlowHandler) listFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.manager.List()
	if err != nil {
		jsonError(w, fmt.Sprintf("Failed to retrieve flows: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, FlowListResponse{
		Success: true,
		Message: "Flows retrieved successfully",
		Flows:   flows,
		Count:   len(flows),
	})
}

func (h *FlowHandler) createFlow(w http.ResponseWriter, r *http.Request) {
	var req FlowNameRequest
	if err := decodeRequest(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.manager.Create(req.Name)
	if err != nil {
		jsonError(w, fmt.Sprintf("Failed to create flow: %v", err), http.StatusInternalServerError)
		return
	}

	view := s.View()
	writeJSON(w, http.StatusCreated, FlowResponse{
		Success: true,
		Message: "Flow created successfully",
		Flow:    &view,
	})
}

func (h *FlowHandler) importFlow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, err := documentFormat(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := flow.DecodeDocument(r.Body, format)
	if err != nil {
		jsonError(w, fmt.Sprintf("Invalid flow document: %v", err), http.StatusBadRequest)
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		doc.Name = name
	}

	s, err := h.manager.Import(doc)
	if err != nil {
		jsonError(w, fmt.Sprintf("Failed to import flow: %v", err), http.StatusBadRequest)
		return
	}

	view := s.View()
	writeJSON(w, http.StatusCreated, FlowResponse{
		Success: true,
		Message: "Flow imported successfully",
		Flow:    &view,
	})
}

func (h *FlowHandler) getFlow(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}

	view := s.View()
	writeJSON(w, http.StatusOK, FlowResponse{
		Success: true,
		Message: "Flow retrieved successfully",
		Flow:    &view,
	})
}

func (h *FlowHandler) renameFlow(w http.ResponseWriter, r *http.Request, id string) {
	var req FlowNameRequest
	if err := decodeRequest(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.manager.Rename(id, req.Name)
	if errors.Is(err, editor.ErrFlowNotFound) {
		jsonError(w, "Flow not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, fmt.Sprintf("Failed to rename flow: %v", err), http.StatusInternalServerError)
		return
	}

	h.getFlowWithMessage(w, id, "Flow renamed successfully")
}

func (h *FlowHandler) deleteFlow(w http.ResponseWriter, r *http.Request, id string) {
	err := h.manager.Delete(id)
	if errors.Is(err, editor.ErrFlowNotFound) {
		jsonError(w, "Flow not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, fmt.Sprintf("Failed to delete flow: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Flow deleted successfully",
	})
}

func (h *FlowHandler) dragStart(w http.ResponseWriter, r *http.Request, id string) {
	var req DragStartRequest
	if err := decodeRequest(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.session(w, id)
	if !ok {
		return
	}

	payload, ok := s.DragStart(req.NodeType)
	if !ok {
		jsonError(w, fmt.Sprintf("Unknown palette entry: %s", req.NodeType), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, DragStartResponse{
		Success:    true,
		Message:    "Drag started",
		Payload:    payload,
		DropEffect: s.DragOver(),
	})
}

func (h *FlowHandler) drop(w http.ResponseWriter, r *http.Request, id string) {
	var req DropRequest
	if err := decodeRequest(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.session(w, id)
	if !ok {
		return
	}

	node, version := s.Drop(flow.DragPayload{NodeType: req.NodeType}, *req.Pointer, req.Canvas)
	writeJSON(w, http.StatusCreated, NodeResponse{
		Success: true,
		Message: "Node added",
		Node:    &node,
		Version: version,
	})
}

func (h *FlowHandler) getSelection(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse(s, "Selection retrieved"))
}

func (h *FlowHandler) selectNode(w http.ResponseWriter, r *http.Request, id string) {
	var req SelectRequest
	if err := decodeRequest(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.session(w, id)
	if !ok {
		return
	}

	s.Click(req.NodeID)
	writeJSON(w, http.StatusOK, selectionResponse(s, "Node selected"))
}

func (h *FlowHandler) clearSelection(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}

	s.ClearSelection()
	writeJSON(w, http.StatusOK, selectionResponse(s, "Selection cleared"))
}

func selectionResponse(s *editor.Session, message string) SelectionResponse {
	resp := SelectionResponse{Success: true, Message: message}
	resp.SelectedID, resp.HasSelection = s.Selection()
	if n, ok := s.SelectedNode(); ok {
		resp.Node = &n
	}
	return resp
}

func (h *FlowHandler) listEdges(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}

	edges := s.ResolvedEdges()
	writeJSON(w, http.StatusOK, EdgesResponse{
		Success: true,
		Message: "Edges retrieved successfully",
		Edges:   edges,
		Count:   len(edges),
	})
}

func (h *FlowHandler) saveFlow(w http.ResponseWriter, r *http.Request, id string) {
	err := h.manager.Save(id)
	if errors.Is(err, editor.ErrFlowNotFound) {
		jsonError(w, "Flow not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to save flow", zap.String("flow_id", id), zap.Error(err))
		jsonError(w, fmt.Sprintf("Failed to save flow: %v", err), http.StatusInternalServerError)
		return
	}

	h.getFlowWithMessage(w, id, "Flow saved successfully")
}

func (h *FlowHandler) getFlowWithMessage(w http.ResponseWriter, id, message string) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}
	view := s.View()
	writeJSON(w, http.StatusOK, FlowResponse{Success: true, Message: message, Flow: &view})
}

func (h *FlowHandler) exportFlow(w http.ResponseWriter, r *http.Request, id string) {
	format, err := documentFormat(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.session(w, id)
	if !ok {
		return
	}

	contentType, ext := "application/yaml", "yaml"
	if format == flow.FormatJSON {
		contentType, ext = "application/json", "json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="flow-%s.%s"`, id, ext))

	if err := flow.EncodeDocument(w, s.Document(), format); err != nil {
		h.logger.Error("failed to export flow", zap.String("flow_id", id), zap.Error(err))
	}
}

// streamFlow sends the flow's editing events as server-sent events.
func (h *FlowHandler) streamFlow(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Streams outlive the server write timeout.
	http.NewResponseController(w).SetWriteDeadline(time.Time{})

	eventCh := h.worker.Subscribe(id)
	defer h.worker.Unsubscribe(id, eventCh)

	// Initial snapshot so the client starts from the current view.
	view := s.View()
	writeEvent(w, &editor.Event{Type: editor.EventSnapshot, FlowID: id, Version: view.Version, Flow: &view})
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			writeEvent(w, event)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event *editor.Event) {
	data, _ := json.Marshal(event)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
}
