package rpcclient

import "context"

// Methods served by the hardware bridge daemon.
const (
	MethodSignTransaction = "hw_signTransaction"
	MethodPollEvents      = "hw_pollEvents"
	MethodCancel          = "hw_cancel"
)

// SignRequest asks the daemon to sign Payload on Device.
type SignRequest struct {
	OperationID string `json:"operation_id"`
	Device      string `json:"device"`
	Signer      string `json:"signer"`
	Payload     []byte `json:"payload"`
}

// OperationRequest names a running operation.
type OperationRequest struct {
	OperationID string `json:"operation_id"`
}

// BridgeEvent is one event as reported by the daemon.
type BridgeEvent struct {
	Type    string `json:"type"`
	Label   string `json:"label,omitempty"`
	Payload []byte `json:"payload,omitempty"`
	Fee     uint64 `json:"fee,omitempty"`
	Message string `json:"message,omitempty"`
}

// SignTransaction starts a signing operation. Progress is read with
// PollEvents.
func (c *Client) SignTransaction(ctx context.Context, req SignRequest) error {
	return c.CallContext(ctx, MethodSignTransaction, req, nil)
}

// PollEvents returns the events queued for op since the previous poll.
func (c *Client) PollEvents(ctx context.Context, op string) ([]BridgeEvent, error) {
	var events []BridgeEvent
	if err := c.CallContext(ctx, MethodPollEvents, OperationRequest{OperationID: op}, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CancelOperation aborts op on the device.
func (c *Client) CancelOperation(ctx context.Context, op string) error {
	return c.CallContext(ctx, MethodCancel, OperationRequest{OperationID: op}, nil)
}
