package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"flowdesk/internal/editor"
	"flowdesk/internal/flow"
	"flowdesk/internal/models"
)

// WebHandler renders the flow builder page.
type WebHandler struct {
	manager     *editor.Manager
	defaultName string
	logger      *zap.Logger
}

func NewWebHandler(manager *editor.Manager, defaultName string, logger *zap.Logger) *WebHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebHandler{
		manager:     manager,
		defaultName: defaultName,
		logger:      logger,
	}
}

const sharedHead = `
<script src="https://cdn.tailwindcss.com"></script>
<script>
tailwind.config = {
    theme: {
        extend: {
            colors: {
                whatsapp: {
                    50: '#e8f8ef',
                    500: '#25D366',
                    600: '#1ebe5d',
                    700: '#128C7E'
                }
            }
        }
    }
}
</script>
<style>
    @keyframes slideIn { from { transform: translateX(100%); opacity: 0; } to { transform: translateX(0); opacity: 1; } }
    .toast-enter { animation: slideIn 0.3s ease-out; }
    .canvas-node { width: 128px; height: 64px; }
</style>
`

const toastScript = `
const Toast = {
    container: null,
    show(message, type) {
        if (!this.container) {
            this.container = document.createElement('div');
            this.container.className = 'fixed top-4 right-4 z-50 flex flex-col gap-3 max-w-sm';
            document.body.appendChild(this.container);
        }
        const colors = { success: 'border-green-500', error: 'border-red-500', info: 'border-blue-500' };
        const toast = document.createElement('div');
        toast.className = 'p-4 bg-gray-800 text-gray-100 text-sm rounded-lg shadow-lg border-l-4 toast-enter ' + (colors[type] || colors.info);
        toast.textContent = message;
        this.container.appendChild(toast);
        setTimeout(() => toast.remove(), 3000);
    },
    success(msg) { this.show(msg, 'success'); },
    error(msg) { this.show(msg, 'error'); },
    info(msg) { this.show(msg, 'info'); }
};
`

type paletteItem struct {
	Type       string
	Label      string
	ColorClass string
}

type paletteGroup struct {
	Title string
	Items []paletteItem
}

type canvasNode struct {
	ID         string
	Label      string
	X, Y       float64
	ColorClass string
	Selected   bool
}

type canvasLine struct {
	X1, Y1, X2, Y2 float64
}

type builderPage struct {
	FlowID     string
	Name       string
	Flows      []models.FlowSummary
	Palette    []paletteGroup
	Nodes      []canvasNode
	Lines      []canvasLine
	ColorMap   map[string]string
	Unassigned string
	Anchor     flow.Point
}

// HandleIndex redirects to the most recently edited flow, creating the
// default flow on first run.
func (h *WebHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := h.manager.EnsureDefault(h.defaultName)
	if err != nil {
		h.logger.Error("failed to resolve default flow", zap.Error(err))
		http.Error(w, "Failed to load flows", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/flows/"+id, http.StatusFound)
}

// HandleBuilder renders /flows/{id}.
func (h *WebHandler) HandleBuilder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/flows/"), "/")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	s, err := h.manager.Open(id)
	if errors.Is(err, editor.ErrFlowNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("failed to open flow", zap.String("flow_id", id), zap.Error(err))
		http.Error(w, "Failed to open flow", http.StatusInternalServerError)
		return
	}

	flows, err := h.manager.List()
	if err != nil {
		h.logger.Warn("failed to list flows", zap.Error(err))
	}

	page := buildPage(s.View(), h.manager.Palette())
	page.Flows = flows

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := builderTemplate.Execute(w, page); err != nil {
		h.logger.Error("failed to render builder", zap.String("flow_id", id), zap.Error(err))
	}
}

func buildPage(view editor.View, palette *flow.Palette) builderPage {
	page := builderPage{
		FlowID:     view.FlowID,
		Name:       view.Name,
		ColorMap:   make(map[string]string),
		Unassigned: flow.CanvasColor(flow.NodeTypeUnknown).Class(600),
		Anchor:     flow.ConnectionAnchor,
	}

	for _, cat := range palette.Categories() {
		group := paletteGroup{Title: string(cat.Title)}
		for _, e := range cat.Entries {
			group.Items = append(group.Items, paletteItem{
				Type:       string(e.Type),
				Label:      e.Label,
				ColorClass: e.Color.Class(500),
			})
		}
		page.Palette = append(page.Palette, group)
	}

	for _, t := range flow.NodeTypes() {
		page.ColorMap[string(t)] = flow.CanvasColor(t).Class(600)
	}

	for _, n := range view.Nodes {
		page.Nodes = append(page.Nodes, canvasNode{
			ID:         n.ID,
			Label:      n.Label,
			X:          n.Position.X,
			Y:          n.Position.Y,
			ColorClass: flow.CanvasColor(n.Type).Class(600),
			Selected:   view.HasSelection && view.SelectedID == n.ID,
		})
	}

	for _, e := range view.Resolved {
		from := e.From.Position.Add(flow.ConnectionAnchor)
		to := e.To.Position.Add(flow.ConnectionAnchor)
		page.Lines = append(page.Lines, canvasLine{X1: from.X, Y1: from.Y, X2: to.X, Y2: to.Y})
	}

	return page
}

var builderTemplate = template.Must(template.New("builder").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Constructor de Flujos</title>
    ` + sharedHead + `
</head>
<body class="h-screen bg-gray-900 flex flex-col">
    <script>` + toastScript + `</script>

    <!-- Header -->
    <div class="bg-gray-800 border-b border-gray-700 p-4">
        <div class="flex items-center justify-between">
            <div>
                <h1 class="text-xl font-bold text-white">Constructor de Flujos</h1>
                <p class="text-gray-400 text-sm"><span id="flow-name">{{.Name}}</span> - WhatsApp</p>
            </div>
            <div class="flex items-center space-x-3">
                <select id="flow-select" onchange="window.location = '/flows/' + this.value"
                    class="bg-gray-700 text-gray-200 text-sm rounded-lg px-3 py-2 border border-gray-600">
                    {{range .Flows}}<option value="{{.ID}}"{{if eq .ID $.FlowID}} selected{{end}}>{{.Name}} ({{.NodeCount}})</option>{{end}}
                </select>
                <button onclick="createFlow()" class="px-4 py-2 bg-gray-700 text-gray-200 rounded-lg hover:bg-gray-600 transition-colors">Nuevo</button>
                <a href="/api/flows/{{.FlowID}}/export?format=yaml" class="px-4 py-2 bg-gray-700 text-gray-200 rounded-lg hover:bg-gray-600 transition-colors">Exportar</a>
                <button onclick="saveFlow()" id="save-btn" class="px-4 py-2 bg-green-600 text-white rounded-lg hover:bg-green-700 transition-colors">Guardar</button>
            </div>
        </div>
    </div>

    <div class="flex flex-1 min-h-0">
        <!-- Node Palette -->
        <div class="w-80 bg-gray-800 border-r border-gray-700 overflow-y-auto">
            <div class="p-6">
                <h3 class="text-lg font-semibold text-white mb-6">Componentes</h3>
                {{range .Palette}}
                <div class="mb-8">
                    <h4 class="text-sm font-medium text-gray-400 mb-4 uppercase tracking-wider">{{.Title}}</h4>
                    <div class="space-y-2">
                        {{range .Items}}
                        <div draggable="true" data-node-type="{{.Type}}" ondragstart="onPaletteDragStart(event)"
                            class="flex items-center p-3 bg-gray-700 rounded-lg cursor-move hover:bg-gray-600 transition-colors">
                            <div class="w-8 h-8 rounded-md {{.ColorClass}} mr-3"></div>
                            <span class="text-gray-200 text-sm">{{.Label}}</span>
                        </div>
                        {{end}}
                    </div>
                </div>
                {{end}}

                <div class="mt-8 p-4 bg-gray-700 rounded-lg">
                    <h4 class="text-white font-medium mb-2">Configuración WhatsApp</h4>
                    <div class="space-y-2 text-sm text-gray-300">
                        <div class="flex justify-between">
                            <span>Estado:</span>
                            <span id="wa-state" class="text-gray-400">...</span>
                        </div>
                        <div class="flex justify-between">
                            <span>Sesión:</span>
                            <span id="wa-session" class="text-gray-400">...</span>
                        </div>
                        <img id="wa-qr" class="hidden w-full rounded bg-white p-2" alt="QR">
                        <div class="flex gap-2 pt-2">
                            <button onclick="connectWhatsApp()" class="flex-1 px-2 py-1 bg-whatsapp-600 text-white rounded">Conectar</button>
                            <button onclick="disconnectWhatsApp()" class="flex-1 px-2 py-1 bg-gray-600 text-gray-200 rounded">Desconectar</button>
                        </div>
                    </div>
                </div>
            </div>
        </div>

        <!-- Canvas -->
        <div class="flex-1 relative">
            <div id="canvas" class="w-full h-full bg-gray-900 relative overflow-hidden"
                ondrop="onCanvasDrop(event)" ondragover="onCanvasDragOver(event)" onclick="onCanvasClick(event)">
                <div class="absolute inset-0 opacity-20 pointer-events-none">
                    <svg width="100%" height="100%">
                        <defs>
                            <pattern id="grid" width="20" height="20" patternUnits="userSpaceOnUse">
                                <path d="M 20 0 L 0 0 0 20" fill="none" stroke="#374151" stroke-width="1"/>
                            </pattern>
                        </defs>
                        <rect width="100%" height="100%" fill="url(#grid)" />
                    </svg>
                </div>

                <svg id="edges" class="absolute inset-0 w-full h-full pointer-events-none">
                    <defs>
                        <marker id="arrowhead" markerWidth="10" markerHeight="7" refX="10" refY="3.5" orient="auto">
                            <polygon points="0 0, 10 3.5, 0 7" fill="#6B7280" />
                        </marker>
                    </defs>
                    <g id="edge-lines">
                        {{range .Lines}}<line x1="{{.X1}}" y1="{{.Y1}}" x2="{{.X2}}" y2="{{.Y2}}" stroke="#6B7280" stroke-width="2" marker-end="url(#arrowhead)"/>{{end}}
                    </g>
                </svg>

                <div id="nodes">
                    {{range .Nodes}}
                    <div data-node-id="{{.ID}}" onclick="onNodeClick(event, this.dataset.nodeId)"
                        class="canvas-node absolute {{.ColorClass}} rounded-lg shadow-lg cursor-pointer transform hover:scale-105 transition-transform flex items-center justify-center text-white text-sm font-medium{{if .Selected}} ring-2 ring-blue-400{{end}}"
                        style="left: {{.X}}px; top: {{.Y}}px">
                        {{.Label}}
                        <div class="absolute -right-2 top-1/2 w-4 h-4 bg-gray-400 rounded-full transform -translate-y-1/2"></div>
                        <div class="absolute -left-2 top-1/2 w-4 h-4 bg-gray-400 rounded-full transform -translate-y-1/2"></div>
                    </div>
                    {{end}}
                </div>

                <div id="empty-state" class="absolute inset-0 flex items-center justify-center pointer-events-none{{if .Nodes}} hidden{{end}}">
                    <div class="text-center">
                        <h3 class="text-xl font-medium text-gray-400 mb-2">Comienza tu flujo</h3>
                        <p class="text-gray-500">Arrastra componentes desde el panel lateral para crear tu chatbot</p>
                    </div>
                </div>
            </div>
        </div>
    </div>

<script>
const flowID = {{.FlowID}};
const colorMap = {{.ColorMap}};
const unassignedColor = {{.Unassigned}};
const anchor = {{.Anchor}};

async function api(method, path, body) {
    const opts = { method: method, headers: { 'Content-Type': 'application/json' } };
    if (body !== undefined) opts.body = JSON.stringify(body);
    const res = await fetch(path, opts);
    const data = await res.json().catch(() => ({}));
    if (!res.ok || data.success === false) throw new Error(data.message || res.statusText);
    return data;
}

function onPaletteDragStart(e) {
    const nodeType = e.currentTarget.dataset.nodeType;
    e.dataTransfer.setData('nodeType', nodeType);
    e.dataTransfer.effectAllowed = 'copy';
    api('POST', '/api/flows/' + flowID + '/drag-start', { node_type: nodeType }).catch(err => Toast.error(err.message));
}

function onCanvasDragOver(e) {
    e.preventDefault();
    e.dataTransfer.dropEffect = 'copy';
}

function onCanvasDrop(e) {
    e.preventDefault();
    const rect = e.currentTarget.getBoundingClientRect();
    api('POST', '/api/flows/' + flowID + '/drop', {
        node_type: e.dataTransfer.getData('nodeType'),
        pointer: { x: e.clientX, y: e.clientY },
        canvas: { left: rect.left, top: rect.top, width: rect.width, height: rect.height }
    }).catch(err => Toast.error(err.message));
}

function onNodeClick(e, nodeID) {
    e.stopPropagation();
    api('POST', '/api/flows/' + flowID + '/selection', { node_id: nodeID }).catch(err => Toast.error(err.message));
}

function onCanvasClick(e) {
    if (e.target.closest('[data-node-id]')) return;
    api('DELETE', '/api/flows/' + flowID + '/selection').catch(err => Toast.error(err.message));
}

function render(view) {
    const nodes = document.getElementById('nodes');
    nodes.innerHTML = '';
    (view.nodes || []).forEach(n => {
        const el = document.createElement('div');
        el.dataset.nodeId = n.id;
        el.className = 'canvas-node absolute ' + (colorMap[n.type] || unassignedColor) +
            ' rounded-lg shadow-lg cursor-pointer transform hover:scale-105 transition-transform flex items-center justify-center text-white text-sm font-medium' +
            (view.has_selection && view.selected_id === n.id ? ' ring-2 ring-blue-400' : '');
        el.style.left = n.position.x + 'px';
        el.style.top = n.position.y + 'px';
        el.textContent = n.label;
        el.onclick = ev => onNodeClick(ev, n.id);
        nodes.appendChild(el);
    });

    const lines = document.getElementById('edge-lines');
    lines.innerHTML = '';
    (view.resolved_edges || []).forEach(e => {
        const line = document.createElementNS('http://www.w3.org/2000/svg', 'line');
        line.setAttribute('x1', e.from.position.x + anchor.x);
        line.setAttribute('y1', e.from.position.y + anchor.y);
        line.setAttribute('x2', e.to.position.x + anchor.x);
        line.setAttribute('y2', e.to.position.y + anchor.y);
        line.setAttribute('stroke', '#6B7280');
        line.setAttribute('stroke-width', '2');
        line.setAttribute('marker-end', 'url(#arrowhead)');
        lines.appendChild(line);
    });

    document.getElementById('empty-state').classList.toggle('hidden', (view.nodes || []).length > 0);
    document.getElementById('flow-name').textContent = view.name;
}

async function refresh() {
    const data = await api('GET', '/api/flows/' + flowID);
    render(data.flow);
}

async function saveFlow() {
    try {
        await api('POST', '/api/flows/' + flowID + '/save');
        Toast.success('Flujo guardado');
    } catch (err) {
        Toast.error(err.message);
    }
}

async function createFlow() {
    const name = prompt('Nombre del flujo');
    if (!name) return;
    try {
        const data = await api('POST', '/api/flows', { name: name });
        window.location = '/flows/' + data.flow.flow_id;
    } catch (err) {
        Toast.error(err.message);
    }
}

async function refreshStatus() {
    try {
        const st = await fetch('/api/whatsapp/status').then(r => r.json());
        const state = document.getElementById('wa-state');
        const labels = { connected: 'Conectado', connecting: 'Conectando', waiting_for_scan: 'Escanear QR', disconnected: 'Desconectado' };
        state.textContent = labels[st.state] || st.state;
        state.className = st.connected ? 'text-green-400' : 'text-gray-400';
        document.getElementById('wa-session').textContent = st.has_session ? '✓' : '-';
        const qr = document.getElementById('wa-qr');
        if (st.state === 'waiting_for_scan') {
            qr.src = '/api/whatsapp/qr.png?t=' + Date.now();
            qr.classList.remove('hidden');
        } else {
            qr.classList.add('hidden');
        }
    } catch (err) {
        document.getElementById('wa-state').textContent = 'Error';
    }
}

async function connectWhatsApp() {
    try {
        const data = await api('POST', '/api/whatsapp/connect');
        Toast.info(data.message);
    } catch (err) {
        Toast.error(err.message);
    }
    setTimeout(refreshStatus, 1500);
}

async function disconnectWhatsApp() {
    try {
        const data = await api('POST', '/api/whatsapp/disconnect');
        Toast.info(data.message);
    } catch (err) {
        Toast.error(err.message);
    }
    refreshStatus();
}

const stream = new EventSource('/api/flows/' + flowID + '/stream');
['node_added', 'selection_changed', 'selection_cleared'].forEach(t => stream.addEventListener(t, refresh));
stream.addEventListener('save_failed', e => Toast.error('Error al guardar: ' + JSON.parse(e.data).error_message));

refreshStatus();
setInterval(refreshStatus, 5000);
</script>
</body>
</html>
`))
