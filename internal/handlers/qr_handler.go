package handlers

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/skip2/go-qrcode"
)

// QRHandler holds the latest pairing code pushed by the WhatsApp client.
type QRHandler struct {
	mu        sync.RWMutex
	currentQR string
}

func NewQRHandler() *QRHandler {
	return &QRHandler{}
}

type QRResponse struct {
	QRCode    string `json:"qr_code"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

func (h *QRHandler) SetQR(qrCode string) {
	h.mu.Lock()
	h.currentQR = qrCode
	h.mu.Unlock()
}

func (h *QRHandler) ClearQR() {
	h.SetQR("")
}

func (h *QRHandler) current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentQR
}

func (h *QRHandler) HandleGetQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	qr := h.current()
	if qr == "" {
		writeJSON(w, http.StatusOK, QRResponse{
			Available: false,
			Message:   "No QR code available. Try connecting to WhatsApp first.",
		})
		return
	}

	writeJSON(w, http.StatusOK, QRResponse{
		QRCode:    qr,
		Available: true,
		Message:   "QR code ready for scanning",
	})
}

func (h *QRHandler) HandleQRImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	qr := h.current()
	if qr == "" {
		http.Error(w, "No QR code available. Try connecting to WhatsApp first.", http.StatusNotFound)
		return
	}

	qrBytes, err := qrcode.Encode(qr, qrcode.Medium, 512)
	if err != nil {
		http.Error(w, "Failed to generate QR code image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(qrBytes)))
	w.Write(qrBytes)
}
