package hrana

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/libsql/libsql-extended/hrana/exec/sqliteexec"
	"github.com/libsql/libsql-extended/hrana/proto"
)

func TestNewServerRequiresExecutor(t *testing.T) {
	t.Parallel()

	_, err := NewServer()
	require.Error(t, err)
}

func dialTestServer(t *testing.T) (*websocket.Conn, func()) {
	t.Helper()

	executor, err := sqliteexec.Open(":memory:")
	require.NoError(t, err)

	srv, err := NewServer(WithExecutor(executor))
	require.NoError(t, err)

	httpSrv := httptest.NewServer(srv)
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")

	dialer := websocket.Dialer{Subprotocols: []string{string(Version2)}}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		httpSrv.Close()
		executor.Close()
	}
}

func TestEndToEndHelloOpenExecute(t *testing.T) {
	t.Parallel()

	conn, cleanup := dialTestServer(t)
	defer cleanup()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(proto.HelloMsg{Type: "hello"}))

	var helloOk proto.HelloOkMsg
	require.NoError(t, conn.ReadJSON(&helloOk))
	require.Equal(t, "hello_ok", helloOk.Type)

	require.NoError(t, conn.WriteJSON(proto.RequestMsg{
		Type:      "request",
		RequestID: 1,
		Request:   proto.Request{Kind: proto.ReqOpenStream, StreamID: 10},
	}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"response_ok"`)
	require.Contains(t, string(data), `"open_stream"`)

	require.NoError(t, conn.WriteJSON(proto.RequestMsg{
		Type:      "request",
		RequestID: 2,
		Request: proto.Request{
			Kind:     proto.ReqExecute,
			StreamID: 10,
			Stmt:     proto.Stmt{SQL: "SELECT 1", WantRows: true},
		},
	}))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"value":"1"`)
}

func TestEndToEndProtocolViolationClosesWithoutResponse(t *testing.T) {
	t.Parallel()

	conn, cleanup := dialTestServer(t)
	defer cleanup()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(proto.RequestMsg{
		Type:      "request",
		RequestID: 1,
		Request:   proto.Request{Kind: proto.ReqOpenStream, StreamID: 10},
	}))

	_, _, err := conn.ReadMessage()
	require.Error(t, err, "server must close the socket instead of responding to a pre-hello request")
}
