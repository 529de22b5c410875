package handlers

import (
	"fmt"
	"net/http"

	"flowdesk/internal/whatsapp"
)

// DeviceLink is the part of the WhatsApp client the handlers use.
type DeviceLink interface {
	Status() whatsapp.Status
	Connect() error
	ClearSession() error
}

type WhatsAppHandler struct {
	client DeviceLink
}

func NewWhatsAppHandler(client DeviceLink) *WhatsAppHandler {
	return &WhatsAppHandler{client: client}
}

type StatusResponse struct {
	whatsapp.Status
	Message string `json:"message"`
}

func statusMessage(st whatsapp.Status) string {
	switch st.State {
	case whatsapp.StateConnected:
		return "WhatsApp client connected"
	case whatsapp.StateConnecting:
		return "WhatsApp session restoring..."
	case whatsapp.StateWaitingScan:
		return "Scan the QR code with WhatsApp to link this device"
	}
	if st.HasSession {
		return "Session exists, attempting to connect..."
	}
	return "No session - QR code scan required"
}

func (h *WhatsAppHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := h.client.Status()
	writeJSON(w, http.StatusOK, StatusResponse{Status: st, Message: statusMessage(st)})
}

func (h *WhatsAppHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.client.Status().Connected {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Already connected to WhatsApp",
		})
		return
	}

	if err := h.client.Connect(); err != nil {
		jsonError(w, fmt.Sprintf("Failed to connect: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Connection initiated - scan the QR code if one appears",
	})
}

// HandleDisconnect clears the WhatsApp session so the next connect needs a
// fresh QR scan.
func (h *WhatsAppHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.client.ClearSession(); err != nil {
		jsonError(w, fmt.Sprintf("Failed to disconnect: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "WhatsApp disconnected and session cleared",
	})
}

// offlineLink stands in when the WhatsApp link is disabled in config.
type offlineLink struct{}

// OfflineLink returns a DeviceLink that is always disconnected.
func OfflineLink() DeviceLink { return offlineLink{} }

func (offlineLink) Status() whatsapp.Status {
	return whatsapp.Status{State: whatsapp.StateDisconnected}
}

func (offlineLink) Connect() error {
	return fmt.Errorf("whatsapp link is disabled in config")
}

func (offlineLink) ClearSession() error { return nil }
