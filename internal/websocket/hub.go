// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "rewardjar-service/internal/domain/websocket"
	walletsvc "rewardjar-service/internal/service/wallet"

	"go.uber.org/zap"
)

// TokenVerifier checks the per-pass authentication token.
type TokenVerifier interface {
	Verify(serial, token string) bool
}

type Hub struct {
	// Registered clients by pass serial
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	register   chan *Client
	unregister chan *Client

	// done is closed once Run has returned
	done     chan struct{}
	doneOnce sync.Once

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	tokens TokenVerifier
	logger *zap.Logger
}

type BroadcastMessage struct {
	Serials []string
	Message *wstypes.WSMessage
}

func NewHub(tokens TokenVerifier, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		tokens:          tokens,
		logger:          logger,
	}
}

// AuthenticateClient validates the pass token for serial.
func (h *Hub) AuthenticateClient(serial, token string) (*ClientAuth, error) {
	if serial == "" || token == "" {
		return nil, ErrUnauthorized
	}
	if h.tokens == nil || !h.tokens.Verify(serial, token) {
		return nil, ErrInvalidToken
	}
	return &ClientAuth{Serial: serial}, nil
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage processes a message from a client using registered
// handlers. handled is false when no handler claims the event type.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Join hands client to the running hub. It returns false once the hub has
// shut down.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave removes client. After shutdown every client is already closed, so
// there is nothing to wait for.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Done is closed when the hub stops.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.serial] == nil {
		h.clients[client.serial] = make(map[*Client]bool)
	}
	h.clients[client.serial][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("pass client connected",
		zap.String("serial", client.serial),
		zap.Int("total", total))

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"serial": client.serial,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.serial]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.serial)
			}

			h.logger.Info("pass client disconnected",
				zap.String("serial", client.serial),
				zap.Int("total", h.totalClients()))
		}
	}
}

// BroadcastMessage sends msg to every client of the listed serials. A nil
// list means every connected client.
func (h *Hub) BroadcastMessage(msg *BroadcastMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	if msg.Serials == nil {
		for _, clients := range h.clients {
			for client := range clients {
				client.SendMessage(msg.Message)
				sent++
			}
		}
		return sent
	}

	for _, serial := range msg.Serials {
		for client := range h.clients[serial] {
			client.SendMessage(msg.Message)
			sent++
		}
	}
	return sent
}

// BroadcastPassUpdate pushes the new pass state to every client watching
// serial and returns how many were reached.
func (h *Hub) BroadcastPassUpdate(serial string, state *walletsvc.PassState) int {
	return h.BroadcastMessage(&BroadcastMessage{
		Serials: []string{serial},
		Message: wstypes.NewMessage(wstypes.EventTypePassUpdated, state),
	})
}

// PublishPassUpdate delivers to this process's clients only. Processes that
// share clients with others publish through a Relay instead.
func (h *Hub) PublishPassUpdate(ctx context.Context, serial string, state *walletsvc.PassState) error {
	n := h.BroadcastPassUpdate(serial, state)
	h.logger.Debug("pass update broadcast", zap.String("serial", serial), zap.Int("clients", n))
	return nil
}

func (h *Hub) GetConnectedClients(serial string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[serial])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.doneOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
}
