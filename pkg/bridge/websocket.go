package bridge

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/softuart/pkg/framework"
)

// WebSocketHandler serves a Bridge per websocket connection. Every
// received frame is sent to the client as a binary message.
func WebSocketHandler(b Board) websocket.Handler {
	return func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		addr := conn.Request().RemoteAddr
		glog.Infof("websocket %s connected", addr)
		err := New(conn, b).Run(conn.Request().Context())
		glog.Infof("websocket %s disconnected: %v", addr, err)
	}
}

// Server listens for websocket clients.
type Server struct {
	Addr  string
	Board Board
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "websocket"
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", WebSocketHandler(s.Board))
	server := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("websocket listening on %s", s.Addr)
	return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
}
