package signing

import (
	"fmt"
	"strings"
)

// State is the queue's position in its state machine.
type State uint32

const (
	StateIdle State = iota
	StateDequeuing
	StateAwaitingSignature
	StateSigned
	StateAwaitingHardware
	StateFailed
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDequeuing:
		return "dequeuing"
	case StateAwaitingSignature:
		return "awaiting_signature"
	case StateSigned:
		return "signed"
	case StateAwaitingHardware:
		return "awaiting_hardware"
	case StateFailed:
		return "failed"
	case StateDrained:
		return "drained"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// RequeuePolicy selects which intent kinds get the single fee-mismatch retry.
type RequeuePolicy uint8

const (
	// RequeueSendOnly retries only Send intents. Other kinds keep the
	// device-signed bytes even when the fee differs.
	RequeueSendOnly RequeuePolicy = iota
	// RequeueAllKinds retries every kind.
	RequeueAllKinds
)

func (p RequeuePolicy) String() string {
	if p == RequeueAllKinds {
		return "all"
	}
	return "send"
}

// ParseRequeuePolicy parses "send" or "all".
func ParseRequeuePolicy(s string) (RequeuePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "send":
		return RequeueSendOnly, nil
	case "all":
		return RequeueAllKinds, nil
	default:
		return 0, fmt.Errorf("unknown fee retry policy %q (want send or all)", s)
	}
}
