// internal/websocket/handler/pass_state.go
package handler

import (
	"context"
	"fmt"

	wstypes "rewardjar-service/internal/domain/websocket"
	walletsvc "rewardjar-service/internal/service/wallet"
	ws "rewardjar-service/internal/websocket"
)

// PassStateReader loads the live state of a pass.
type PassStateReader interface {
	PassState(ctx context.Context, serial string) (*walletsvc.PassState, error)
}

type PassStateHandler struct {
	passes PassStateReader
}

func NewPassStateHandler(passes PassStateReader) *PassStateHandler {
	return &PassStateHandler{passes: passes}
}

// SupportedEvents returns events this handler supports
func (h *PassStateHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypePassState}
}

// HandleMessage answers a pass:state request with the current state of the
// pass the client is bound to.
func (h *PassStateHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	if msg.Type != wstypes.EventTypePassState {
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}

	state, err := h.passes.PassState(ctx, client.Serial())
	if err != nil {
		return err
	}

	reply := wstypes.NewMessage(wstypes.EventTypePassState, state)
	if msg.ID != "" {
		reply.Metadata = map[string]interface{}{"request_id": msg.ID}
	}
	client.SendMessage(reply)
	return nil
}
