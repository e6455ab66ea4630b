package proto

import (
	"fmt"

	"github.com/segmentio/encoding/json"
)

// ErrorPayload is the operational-error payload carried inside a
// response_error message or embedded in a Prog result (§7): a single
// human-readable message, no structured code.
type ErrorPayload struct {
	Message string `json:"message"`
}

// HelloMsg is the mandatory first client message (§6). Jwt is nil when
// auth is disabled.
type HelloMsg struct {
	Type string  `json:"type"`
	Jwt  *string `json:"jwt"`
}

// HelloOkMsg acknowledges a successful hello.
type HelloOkMsg struct {
	Type string `json:"type"`
}

// NewHelloOkMsg constructs a hello_ok message.
func NewHelloOkMsg() HelloOkMsg { return HelloOkMsg{Type: "hello_ok"} }

// HelloErrorMsg rejects a hello due to an invalid credential (§7).
type HelloErrorMsg struct {
	Type  string       `json:"type"`
	Error ErrorPayload `json:"error"`
}

// NewHelloErrorMsg constructs a hello_error message.
func NewHelloErrorMsg(message string) HelloErrorMsg {
	return HelloErrorMsg{Type: "hello_error", Error: ErrorPayload{Message: message}}
}

// RequestKind discriminates the request union sent inside a RequestMsg.
type RequestKind string

const (
	ReqOpenStream  RequestKind = "open_stream"
	ReqCloseStream RequestKind = "close_stream"
	ReqExecute     RequestKind = "execute"
	ReqCompute     RequestKind = "compute"
	ReqProg        RequestKind = "prog"
)

// Request is the inner payload of a RequestMsg, tagged by Kind (§4.5, §4.6).
type Request struct {
	Kind RequestKind

	// ReqOpenStream / ReqCloseStream.
	StreamID int32

	// ReqExecute.
	Stmt      Stmt
	Condition *Expr
	OnOk      []Op
	OnError   []Op

	// ReqCompute.
	Ops []Op

	// ReqProg.
	Prog Prog
}

type requestWire struct {
	Type      RequestKind     `json:"type"`
	StreamID  *int32          `json:"stream_id,omitempty"`
	Stmt      json.RawMessage `json:"stmt,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
	OnOk      []Op            `json:"on_ok,omitempty"`
	OnError   []Op            `json:"on_error,omitempty"`
	Ops       []Op            `json:"ops,omitempty"`
	Prog      json.RawMessage `json:"prog,omitempty"`
}

// UnmarshalJSON parses a request per its "type" discriminator. Unknown
// types are a protocol violation (§7); the caller is expected to treat any
// error from this method that way.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw requestWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("proto: malformed request: %w", err)
	}

	switch raw.Type {
	case ReqOpenStream, ReqCloseStream:
		if raw.StreamID == nil {
			return fmt.Errorf("proto: %s request is missing \"stream_id\"", raw.Type)
		}
		*r = Request{Kind: raw.Type, StreamID: *raw.StreamID}
		return nil
	case ReqExecute:
		if raw.StreamID == nil {
			return fmt.Errorf("proto: execute request is missing \"stream_id\"")
		}
		var stmt Stmt
		if err := json.Unmarshal(raw.Stmt, &stmt); err != nil {
			return fmt.Errorf("proto: malformed execute request stmt: %w", err)
		}
		req := Request{Kind: ReqExecute, StreamID: *raw.StreamID, Stmt: stmt, OnOk: raw.OnOk, OnError: raw.OnError}
		if len(raw.Condition) > 0 {
			var cond Expr
			if err := json.Unmarshal(raw.Condition, &cond); err != nil {
				return fmt.Errorf("proto: malformed execute request condition: %w", err)
			}
			req.Condition = &cond
		}
		*r = req
		return nil
	case ReqCompute:
		*r = Request{Kind: ReqCompute, Ops: raw.Ops}
		return nil
	case ReqProg:
		if raw.StreamID == nil {
			return fmt.Errorf("proto: prog request is missing \"stream_id\"")
		}
		var prog Prog
		if err := json.Unmarshal(raw.Prog, &prog); err != nil {
			return fmt.Errorf("proto: malformed prog request: %w", err)
		}
		*r = Request{Kind: ReqProg, StreamID: *raw.StreamID, Prog: prog}
		return nil
	default:
		return fmt.Errorf("proto: unknown request type %q", raw.Type)
	}
}

// MarshalJSON renders the request using its "type" discriminator. Used
// primarily by tests that construct client-side request fixtures.
func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ReqOpenStream, ReqCloseStream:
		return json.Marshal(struct {
			Type     RequestKind `json:"type"`
			StreamID int32       `json:"stream_id"`
		}{r.Kind, r.StreamID})
	case ReqExecute:
		stmt, err := json.Marshal(r.Stmt)
		if err != nil {
			return nil, err
		}
		w := requestWire{Type: ReqExecute, StreamID: &r.StreamID, Stmt: stmt, OnOk: r.OnOk, OnError: r.OnError}
		if r.Condition != nil {
			cond, err := json.Marshal(r.Condition)
			if err != nil {
				return nil, err
			}
			w.Condition = cond
		}
		return json.Marshal(w)
	case ReqCompute:
		return json.Marshal(struct {
			Type RequestKind `json:"type"`
			Ops  []Op        `json:"ops"`
		}{ReqCompute, r.Ops})
	case ReqProg:
		prog, err := json.Marshal(r.Prog)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Type     RequestKind     `json:"type"`
			StreamID int32           `json:"stream_id"`
			Prog     json.RawMessage `json:"prog"`
		}{ReqProg, r.StreamID, prog})
	default:
		return nil, fmt.Errorf("proto: unknown request kind %q", r.Kind)
	}
}

// RequestMsg is the client-to-server envelope carrying one Request (§3,
// §4.5). RequestID must be unique among outstanding requests on the
// connection.
type RequestMsg struct {
	Type      string  `json:"type"`
	RequestID int32   `json:"request_id"`
	Request   Request `json:"request"`
}

// Response is the inner payload of a ResponseOkMsg, tagged by the same
// RequestKind as the request it answers.
type Response struct {
	Kind RequestKind

	// ReqExecute.
	Result StmtResult

	// ReqCompute.
	Results []Value

	// ReqProg.
	ProgResult ProgResult
}

// MarshalJSON renders the response using its "type" discriminator,
// matching the request type it answers (§6).
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ReqOpenStream, ReqCloseStream:
		return json.Marshal(struct {
			Type RequestKind `json:"type"`
		}{r.Kind})
	case ReqExecute:
		return json.Marshal(struct {
			Type   RequestKind `json:"type"`
			Result StmtResult  `json:"result"`
		}{ReqExecute, r.Result})
	case ReqCompute:
		if r.Results == nil {
			r.Results = []Value{}
		}
		return json.Marshal(struct {
			Type    RequestKind `json:"type"`
			Results []Value     `json:"results"`
		}{ReqCompute, r.Results})
	case ReqProg:
		return json.Marshal(struct {
			Type   RequestKind `json:"type"`
			Result ProgResult  `json:"result"`
		}{ReqProg, r.ProgResult})
	default:
		return nil, fmt.Errorf("proto: unknown response kind %q", r.Kind)
	}
}

// ResponseOkMsg is the server-to-client envelope carrying a successful
// response (§4.5, §8 invariant 1). Exactly one of ResponseOkMsg /
// ResponseErrorMsg is emitted per outstanding RequestMsg.
type ResponseOkMsg struct {
	Type      string   `json:"type"`
	RequestID int32    `json:"request_id"`
	Response  Response `json:"response"`
}

// NewResponseOkMsg constructs a response_ok envelope.
func NewResponseOkMsg(requestID int32, response Response) ResponseOkMsg {
	return ResponseOkMsg{Type: "response_ok", RequestID: requestID, Response: response}
}

// ResponseErrorMsg is the server-to-client envelope carrying an
// operational error (§7). The connection stays open.
type ResponseErrorMsg struct {
	Type      string       `json:"type"`
	RequestID int32        `json:"request_id"`
	Error     ErrorPayload `json:"error"`
}

// NewResponseErrorMsg constructs a response_error envelope.
func NewResponseErrorMsg(requestID int32, message string) ResponseErrorMsg {
	return ResponseErrorMsg{Type: "response_error", RequestID: requestID, Error: ErrorPayload{Message: message}}
}
