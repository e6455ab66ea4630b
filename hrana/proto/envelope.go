package proto

import (
	"fmt"

	"github.com/segmentio/encoding/json"
)

// ClientMessageKind discriminates the top-level client→server envelope
// (§6): the first message is always "hello"; everything after is
// "request".
type ClientMessageKind string

const (
	ClientHello   ClientMessageKind = "hello"
	ClientRequest ClientMessageKind = "request"
)

// ClientMessage is a decoded client→server frame.
type ClientMessage struct {
	Kind    ClientMessageKind
	Hello   HelloMsg
	Request RequestMsg
}

// DecodeClientMessage parses one WebSocket text frame into a ClientMessage.
// An error here is always a protocol violation (§7): malformed JSON or an
// unrecognized top-level "type".
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var peek struct {
		Type ClientMessageKind `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return ClientMessage{}, fmt.Errorf("proto: malformed client message: %w", err)
	}

	switch peek.Type {
	case ClientHello:
		var hello HelloMsg
		if err := json.Unmarshal(data, &hello); err != nil {
			return ClientMessage{}, fmt.Errorf("proto: malformed hello message: %w", err)
		}
		return ClientMessage{Kind: ClientHello, Hello: hello}, nil
	case ClientRequest:
		var req RequestMsg
		if err := json.Unmarshal(data, &req); err != nil {
			return ClientMessage{}, fmt.Errorf("proto: malformed request message: %w", err)
		}
		return ClientMessage{Kind: ClientRequest, Request: req}, nil
	default:
		return ClientMessage{}, fmt.Errorf("proto: unknown client message type %q", peek.Type)
	}
}
