package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"flowdesk/internal/database"
	"flowdesk/internal/editor"
	"flowdesk/internal/flow"
	"flowdesk/internal/models"
	"flowdesk/internal/whatsapp"
)

type fakeLink struct {
	status     whatsapp.Status
	connectErr error
	connects   int
	cleared    int
}

func (f *fakeLink) Status() whatsapp.Status { return f.status }

func (f *fakeLink) Connect() error {
	f.connects++
	return f.connectErr
}

func (f *fakeLink) ClearSession() error {
	f.cleared++
	return nil
}

type testServer struct {
	mux     *http.ServeMux
	manager *editor.Manager
	worker  *editor.Worker
	qr      *QRHandler
	link    *fakeLink
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "flowdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	palette := flow.DefaultPalette()
	manager := editor.NewManager(models.NewFlowRepository(db), palette, nil)
	worker := editor.NewWorker(manager, time.Hour, nil)
	manager.SetChangeHandler(worker.HandleChange)

	link := &fakeLink{status: whatsapp.Status{State: whatsapp.StateDisconnected}}
	qr := NewQRHandler()

	set := Set{
		Flows:    NewFlowHandler(manager, worker, nil),
		Palette:  NewPaletteHandler(palette),
		WhatsApp: NewWhatsAppHandler(link),
		QR:       qr,
		Web:      NewWebHandler(manager, "Flujo de Atención al Cliente", nil),
	}

	return &testServer{mux: set.Routes(), manager: manager, worker: worker, qr: qr, link: link}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func (ts *testServer) createFlow(t *testing.T, name string) editor.View {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/flows", FlowNameRequest{Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp FlowResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Flow)
	return *resp.Flow
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestPalette(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/palette", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PaletteResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 13, resp.Count)
	require.Len(t, resp.Categories, 3)
	assert.Equal(t, flow.CategoryMessages, resp.Categories[0].Title)

	rec = ts.do(t, http.MethodPost, "/api/palette", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCreateAndListFlows(t *testing.T) {
	ts := newTestServer(t)

	view := ts.createFlow(t, "Soporte")
	assert.Equal(t, "Soporte", view.Name)
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Resolved, 2)

	rec := ts.do(t, http.MethodGet, "/api/flows", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list FlowListResponse
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, view.FlowID, list.Flows[0].ID)
	assert.Equal(t, 3, list.Flows[0].NodeCount)
}

func TestCreateFlowValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/flows", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")

	req := httptest.NewRequest(http.MethodPost, "/api/flows", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON")
}

func TestFlowNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/flows/nope", "/api/flows/nope/edges", "/api/flows/nope/export"} {
		rec := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := ts.do(t, http.MethodDelete, "/api/flows/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/flows/nope/save", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDragAndDropConditionNode(t *testing.T) {
	ts := newTestServer(t)
	view := ts.createFlow(t, "Soporte")
	base := "/api/flows/" + view.FlowID

	rec := ts.do(t, http.MethodPost, base+"/drag-start", DragStartRequest{NodeType: "condition"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var started DragStartResponse
	decode(t, rec, &started)
	assert.Equal(t, "condition", started.Payload.NodeType)
	assert.Equal(t, flow.DropEffectCopy, started.DropEffect)

	// Payload type left empty: the drop uses the pending drag-start.
	rec = ts.do(t, http.MethodPost, base+"/drop", DropRequest{
		Pointer: &flow.Point{X: 520, Y: 214},
		Canvas:  flow.Rect{Left: 320, Top: 64, Width: 800, Height: 600},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dropped NodeResponse
	decode(t, rec, &dropped)
	require.NotNil(t, dropped.Node)
	assert.Equal(t, "4", dropped.Node.ID)
	assert.Equal(t, flow.NodeTypeCondition, dropped.Node.Type)
	assert.Equal(t, flow.Point{X: 200, Y: 150}, dropped.Node.Position)
	assert.Equal(t, "New condition", dropped.Node.Label)
	assert.Equal(t, int64(1), dropped.Version)

	rec = ts.do(t, http.MethodGet, base+"/edges", nil)
	var edges EdgesResponse
	decode(t, rec, &edges)
	assert.Equal(t, 2, edges.Count)
}

func TestDropUnknownType(t *testing.T) {
	ts := newTestServer(t)
	view := ts.createFlow(t, "Soporte")
	base := "/api/flows/" + view.FlowID

	rec := ts.do(t, http.MethodPost, base+"/drag-start", DragStartRequest{NodeType: "carousel"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/drop", DropRequest{NodeType: "carousel", Pointer: &flow.Point{X: 10, Y: 10}})
	require.Equal(t, http.StatusCreated, rec.Code)

	var dropped NodeResponse
	decode(t, rec, &dropped)
	assert.Equal(t, flow.NodeTypeUnknown, dropped.Node.Type)

	rec = ts.do(t, http.MethodPost, base+"/drop", map[string]string{"node_type": "text"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pointer is required")
}

func TestSelection(t *testing.T) {
	ts := newTestServer(t)
	view := ts.createFlow(t, "Soporte")
	base := "/api/flows/" + view.FlowID

	rec := ts.do(t, http.MethodPost, base+"/selection", SelectRequest{NodeID: "2"})
	require.Equal(t, http.StatusOK, rec.Code)

	var sel SelectionResponse
	decode(t, rec, &sel)
	assert.True(t, sel.HasSelection)
	assert.Equal(t, "2", sel.SelectedID)
	require.NotNil(t, sel.Node)
	assert.Equal(t, "Mensaje de Bienvenida", sel.Node.Label)

	// Ids outside the graph can be selected but resolve to nothing.
	rec = ts.do(t, http.MethodPost, base+"/selection", SelectRequest{NodeID: "99"})
	sel = SelectionResponse{}
	decode(t, rec, &sel)
	assert.True(t, sel.HasSelection)
	assert.Nil(t, sel.Node)

	rec = ts.do(t, http.MethodDelete, base+"/selection", nil)
	sel = SelectionResponse{}
	decode(t, rec, &sel)
	assert.False(t, sel.HasSelection)

	rec = ts.do(t, http.MethodGet, base+"/selection", nil)
	sel = SelectionResponse{}
	decode(t, rec, &sel)
	assert.False(t, sel.HasSelection)
}

func TestRenameSaveDelete(t *testing.T) {
	ts := newTestServer(t)
	view := ts.createFlow(t, "Soporte")
	base := "/api/flows/" + view.FlowID

	rec := ts.do(t, http.MethodPut, base, FlowNameRequest{Name: "Ventas"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp FlowResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Ventas", resp.Flow.Name)

	ts.do(t, http.MethodPost, base+"/drop", DropRequest{NodeType: "delay", Pointer: &flow.Point{}})

	rec = ts.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = FlowResponse{}
	decode(t, rec, &resp)
	assert.False(t, resp.Flow.Dirty)
	assert.Len(t, resp.Flow.Nodes, 4)

	rec = ts.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportImport(t *testing.T) {
	ts := newTestServer(t)
	view := ts.createFlow(t, "Soporte")
	base := "/api/flows/" + view.FlowID

	rec := ts.do(t, http.MethodGet, base+"/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))

	var doc flow.Document
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Soporte", doc.Name)
	assert.Len(t, doc.Nodes, 3)

	rec = ts.do(t, http.MethodGet, base+"/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, base+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	jsonDoc := rec.Body.String()

	req := httptest.NewRequest(http.MethodPost, "/api/flows/import?format=json&name=Copia", strings.NewReader(jsonDoc))
	rec = httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var imported FlowResponse
	decode(t, rec, &imported)
	assert.Equal(t, "Copia", imported.Flow.Name)
	assert.NotEqual(t, view.FlowID, imported.Flow.FlowID)
	assert.Len(t, imported.Flow.Resolved, 2)

	req = httptest.NewRequest(http.MethodPost, "/api/flows/import", strings.NewReader("name: dup\nnodes:\n  - id: \"1\"\n  - id: \"1\"\n"))
	rec = httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportRejectsNonFinitePosition(t *testing.T) {
	ts := newTestServer(t)

	for _, x := range []string{".inf", "-.inf", ".nan"} {
		src := "name: Inf\nnodes:\n  - id: \"1\"\n    type: start\n    position: {x: " + x + ", y: 0}\n"
		req := httptest.NewRequest(http.MethodPost, "/api/flows/import?format=yaml", strings.NewReader(src))
		rec := httptest.NewRecorder()
		ts.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, x)
		assert.Contains(t, rec.Body.String(), "non-finite", x)
	}

	rec := ts.do(t, http.MethodGet, "/api/flows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list FlowListResponse
	decode(t, rec, &list)
	assert.Zero(t, list.Count)
}

func TestWriteJSONUnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, NodeResponse{Success: true, Node: &flow.Node{Position: flow.Point{X: math.Inf(1)}}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "Failed to encode response")
}

func TestStream(t *testing.T) {
	ts := newTestServer(t)
	view := ts.createFlow(t, "Soporte")

	srv := httptest.NewServer(ts.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/flows/"+view.FlowID+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() editor.Event {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var ev editor.Event
				require.NoError(t, json.Unmarshal([]byte(data), &ev))
				return ev
			}
		}
	}

	snap := next()
	assert.Equal(t, editor.EventSnapshot, snap.Type)
	require.NotNil(t, snap.Flow)
	assert.Equal(t, "Soporte", snap.Flow.Name)
	assert.Len(t, snap.Flow.Nodes, 3)
	assert.Len(t, snap.Flow.Resolved, 2)

	s, err := ts.manager.Open(view.FlowID)
	require.NoError(t, err)
	n, _ := s.Drop(flow.DragPayload{NodeType: "image"}, flow.Point{X: 3, Y: 4}, flow.Rect{})

	ev := next()
	assert.Equal(t, string(editor.ChangeNodeAdded), ev.Type)
	require.NotNil(t, ev.Node)
	assert.Equal(t, n.ID, ev.Node.ID)
}

func TestWhatsAppStatusAndConnect(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/whatsapp/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st StatusResponse
	decode(t, rec, &st)
	assert.Equal(t, whatsapp.StateDisconnected, st.State)
	assert.Equal(t, "No session - QR code scan required", st.Message)

	rec = ts.do(t, http.MethodPost, "/api/whatsapp/connect", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.link.connects)

	ts.link.connectErr = errors.New("boom")
	rec = ts.do(t, http.MethodPost, "/api/whatsapp/connect", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")

	ts.link.status = whatsapp.Status{State: whatsapp.StateConnected, Connected: true, HasSession: true}
	rec = ts.do(t, http.MethodPost, "/api/whatsapp/connect", nil)
	assert.Contains(t, rec.Body.String(), "Already connected")
	assert.Equal(t, 2, ts.link.connects)

	rec = ts.do(t, http.MethodPost, "/api/whatsapp/disconnect", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.link.cleared)
}

func TestOfflineLink(t *testing.T) {
	h := NewWhatsAppHandler(OfflineLink())

	rec := httptest.NewRecorder()
	h.HandleConnect(rec, httptest.NewRequest(http.MethodPost, "/api/whatsapp/connect", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQR(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/whatsapp/qr.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/whatsapp/qr", nil)
	var qr QRResponse
	decode(t, rec, &qr)
	assert.False(t, qr.Available)

	ts.qr.SetQR("2@abc,def,ghi")

	rec = ts.do(t, http.MethodGet, "/api/whatsapp/qr", nil)
	qr = QRResponse{}
	decode(t, rec, &qr)
	assert.True(t, qr.Available)
	assert.Equal(t, "2@abc,def,ghi", qr.QRCode)

	rec = ts.do(t, http.MethodGet, "/api/whatsapp/qr.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	ts.qr.ClearQR()
	rec = ts.do(t, http.MethodGet, "/api/whatsapp/qr.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPages(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/flows/"))

	flows, err := ts.manager.List()
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "Flujo de Atención al Cliente", flows[0].Name)

	rec = ts.do(t, http.MethodGet, location, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Constructor de Flujos")
	assert.Contains(t, body, "Mensaje de Bienvenida")
	assert.Contains(t, body, "bg-green-600")
	assert.Contains(t, body, "Configuración WhatsApp")
	assert.Equal(t, 2, strings.Count(body, "<line "))

	rec = ts.do(t, http.MethodGet, "/flows/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildPageMarksSelection(t *testing.T) {
	seed := flow.NewSeedGraph()
	g, err := flow.Restore(seed.Nodes(), append(seed.Edges(), flow.Edge{From: "3", To: "42"}))
	require.NoError(t, err)
	view := editor.View{
		FlowID:       "f1",
		Nodes:        g.Nodes(),
		Resolved:     g.ListEdgesResolved(),
		SelectedID:   "3",
		HasSelection: true,
	}

	page := buildPage(view, flow.DefaultPalette())
	require.Len(t, page.Nodes, 3)
	assert.True(t, page.Nodes[2].Selected)
	assert.False(t, page.Nodes[0].Selected)
	assert.Equal(t, "bg-purple-600", page.Nodes[2].ColorClass)

	require.Len(t, page.Lines, 2)
	assert.Equal(t, canvasLine{X1: 160, Y1: 130, X2: 360, Y2: 230}, page.Lines[0])
	assert.Equal(t, "bg-gray-600", page.ColorMap["delay"])
}

func TestMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	Wrap(panicky, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec = httptest.NewRecorder()
	Wrap(ok, nil, []string{"http://dashboard.local"}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))
}
