package hardware

import "context"

// Request asks the bridge to sign one payload on a device.
type Request struct {
	OperationID string
	Index       int
	Device      string // Bluetooth address.
	Label       string
	Signer      string // Address whose key lives on the device.
	Payload     []byte
}

// NewRequest creates a request for payload with its derived operation id.
func NewRequest(index int, device, label, signer string, payload []byte) Request {
	return Request{
		OperationID: OperationID(payload),
		Index:       index,
		Device:      device,
		Label:       label,
		Signer:      signer,
		Payload:     payload,
	}
}

// Bridge drives a hardware signing device. It serves one operation at a
// time and reports progress on a single event channel.
type Bridge interface {
	// Start begins scanning, connecting and signing for req. Results are
	// delivered on Events.
	Start(ctx context.Context, req Request) error
	// Events returns the channel all operation events are delivered on.
	Events() <-chan Event
	// Stop aborts the current operation, if any.
	Stop()
}
