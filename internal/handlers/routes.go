package handlers

import "net/http"

// Set groups the handlers the server mounts.
type Set struct {
	Flows    *FlowHandler
	Palette  *PaletteHandler
	WhatsApp *WhatsAppHandler
	QR       *QRHandler
	Web      *WebHandler
}

// Routes registers every endpoint on a new ServeMux.
func (s Set) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", HandleHealth)

	// Pages
	mux.HandleFunc("/", s.Web.HandleIndex)
	mux.HandleFunc("/flows/", s.Web.HandleBuilder)

	// Palette API
	mux.HandleFunc("/api/palette", s.Palette.HandlePalette)

	// Flow API
	mux.HandleFunc("/api/flows", s.Flows.HandleFlows) // GET (list), POST (create)
	mux.HandleFunc("/api/flows/", s.Flows.HandleFlow) // import, {id}, {id}/drag-start|drop|selection|edges|save|export|stream

	// WhatsApp API
	mux.HandleFunc("/api/whatsapp/status", s.WhatsApp.HandleStatus)
	mux.HandleFunc("/api/whatsapp/connect", s.WhatsApp.HandleConnect)
	mux.HandleFunc("/api/whatsapp/disconnect", s.WhatsApp.HandleDisconnect)
	mux.HandleFunc("/api/whatsapp/qr", s.QR.HandleGetQR)
	mux.HandleFunc("/api/whatsapp/qr.png", s.QR.HandleQRImage)

	return mux
}
