package whatsapp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// State is the link state shown in the sidebar.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateWaitingScan  State = "waiting_for_scan"
	StateConnected    State = "connected"
)

// Status is a snapshot of the device link.
type Status struct {
	State      State  `json:"state"`
	Connected  bool   `json:"connected"`
	HasSession bool   `json:"has_session"`
	Device     string `json:"device,omitempty"`
}

// Client links the dashboard to a WhatsApp account so published flows have
// a device to run on.
type Client struct {
	whatsappClient *whatsmeow.Client
	container      *sqlstore.Container
	qrHandler      func(string)
	qrClearHandler func()
	dbPath         string
	logger         *zap.Logger

	mu              sync.RWMutex // protects state fields below
	clearMu         sync.Mutex   // serializes clear+delete+reinitialize sequences
	clearInProgress atomic.Bool
	eventHandlerID  uint32 // 0 = not registered

	qrReceived    bool
	connectedOnce bool
}

func NewClient(sessionPath string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		dbPath: sessionPath,
		logger: logger.Named("whatsapp"),
	}

	container, client, err := c.open()
	if err != nil {
		return nil, err
	}
	c.container = container
	c.whatsappClient = client
	return c, nil
}

func (c *Client) open() (*sqlstore.Container, *whatsmeow.Client, error) {
	ctx := context.Background()
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+c.dbPath+"?_foreign_keys=on", NewLogger(c.logger.Named("store")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database container: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to get device store: %w", err)
	}

	return container, whatsmeow.NewClient(deviceStore, NewLogger(c.logger.Named("client"))), nil
}

func (c *Client) Connect() error {
	c.mu.Lock()
	client := c.whatsappClient
	if client == nil {
		c.mu.Unlock()
		return fmt.Errorf("whatsapp client not initialized")
	}
	c.qrReceived = false
	if c.eventHandlerID != 0 {
		client.RemoveEventHandler(c.eventHandlerID)
	}
	c.eventHandlerID = client.AddEventHandler(c.handleEvent)
	c.mu.Unlock()

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	go c.logConnectionStatus()
	return nil
}

func (c *Client) logConnectionStatus() {
	time.Sleep(5 * time.Second)

	switch st := c.Status(); {
	case st.State == StateConnected:
		c.logger.Info("logged in", zap.String("device", st.Device))
	case st.State == StateWaitingScan:
		c.logger.Info("QR code displayed, waiting for scan")
	case st.HasSession:
		c.logger.Info("session exists but not logged in yet, waiting for restoration")
	default:
		c.logger.Warn("no session found and no QR code received")
	}
}

func (c *Client) reinitialize() error {
	container, client, err := c.open()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.whatsappClient = client
	c.container = container
	c.eventHandlerID = 0
	c.mu.Unlock()
	return nil
}

func (c *Client) reset() error {
	c.Disconnect()

	c.mu.Lock()
	c.connectedOnce = false
	c.qrReceived = false
	c.mu.Unlock()

	err := os.Remove(c.dbPath)
	if err != nil && !os.IsNotExist(err) {
		err = fmt.Errorf("failed to delete session file: %w", err)
	} else {
		err = c.reinitialize()
	}

	if err != nil {
		c.mu.Lock()
		c.whatsappClient = nil
		c.container = nil
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Client) clearAndReinitialize() {
	c.clearMu.Lock()
	defer c.clearMu.Unlock()
	defer c.clearInProgress.Store(false)

	if err := c.reset(); err != nil {
		c.logger.Error("failed to clear stale session", zap.Error(err))
		return
	}
	c.logger.Info("stale session cleared, ready for a fresh QR scan")
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.QR:
		if len(v.Codes) > 0 {
			c.mu.Lock()
			c.qrReceived = true
			c.mu.Unlock()
			if c.qrHandler != nil {
				c.qrHandler(v.Codes[0])
			}
		}

	case *events.Connected:
		c.logger.Info("connected")
		c.mu.Lock()
		c.connectedOnce = true
		c.mu.Unlock()
		if c.qrClearHandler != nil {
			c.qrClearHandler()
		}

	case *events.LoggedOut:
		c.logger.Warn("logged out", zap.Bool("on_connect", v.OnConnect), zap.Int("reason", int(v.Reason)))
		c.mu.Lock()
		c.connectedOnce = false
		c.mu.Unlock()
		// OnConnect means the phone invalidated the session.
		if v.OnConnect && c.clearInProgress.CompareAndSwap(false, true) {
			go c.clearAndReinitialize()
		}

	case *events.ClientOutdated:
		c.logger.Error("client outdated, update go.mau.fi/whatsmeow")
	}
}

func (c *Client) SetQRHandler(handler func(string)) {
	c.qrHandler = handler
}

func (c *Client) SetQRClearHandler(handler func()) {
	c.qrClearHandler = handler
}

// Disconnect closes the websocket and releases the session database file lock.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.whatsappClient != nil {
		c.whatsappClient.Disconnect()
	}
	if c.container != nil {
		c.container.Close()
		c.container = nil
	}
}

// ClearSession removes the stored session and reinitializes the client for a fresh QR scan.
func (c *Client) ClearSession() error {
	c.clearMu.Lock()
	defer c.clearMu.Unlock()

	c.logger.Info("clearing session")
	if err := c.reset(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	client := c.whatsappClient
	c.mu.RUnlock()
	if client == nil {
		return false
	}
	return client.IsConnected() && client.IsLoggedIn()
}

func (c *Client) HasSession() bool {
	c.mu.RLock()
	client := c.whatsappClient
	c.mu.RUnlock()
	if client == nil || client.Store == nil {
		return false
	}
	return client.Store.ID != nil
}

// IsConnecting reports a live websocket that has not authenticated yet.
func (c *Client) IsConnecting() bool {
	c.mu.RLock()
	client := c.whatsappClient
	c.mu.RUnlock()
	if client == nil {
		return false
	}
	return client.IsConnected() && !client.IsLoggedIn()
}

func (c *Client) Status() Status {
	c.mu.RLock()
	client := c.whatsappClient
	qrReceived := c.qrReceived
	c.mu.RUnlock()

	st := Status{State: StateDisconnected}
	if client == nil {
		return st
	}
	if client.Store != nil && client.Store.ID != nil {
		st.HasSession = true
		st.Device = client.Store.ID.String()
	}

	switch {
	case client.IsConnected() && client.IsLoggedIn():
		st.State = StateConnected
		st.Connected = true
	case qrReceived && !st.HasSession:
		st.State = StateWaitingScan
	case client.IsConnected():
		st.State = StateConnecting
	}
	return st
}
