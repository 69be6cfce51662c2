package testhelper

import (
	"io"
	"net"
	"testing"
)

// TCPServer accepts a single connection and reports everything read from it
// on the response channel once the peer closes.
type TCPServer struct {
	addr     string
	server   net.Listener
	response chan []byte
}

func NewTCPServer() (*TCPServer, error) {
	result := &TCPServer{
		addr:     "localhost:0",
		response: make(chan []byte, 1),
	}
	err := result.Run()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (server *TCPServer) Run() (err error) {
	server.server, err = net.Listen("tcp", server.addr)
	if err != nil {
		return
	}
	server.addr = server.server.Addr().String()
	return
}

func (server *TCPServer) handleConnection() (err error) {
	conn, err := server.server.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	val, err := io.ReadAll(conn)
	if err != nil {
		return
	}

	server.response <- val
	return
}

func (server *TCPServer) Close() (err error) {
	return server.server.Close()
}

func WithTCPServer(t *testing.T, block func(string, chan []byte)) {
	server, err := NewTCPServer()
	if err != nil {
		t.Fatal("Failed to create TCP server", err)
	}
	go func(t *testing.T, server *TCPServer) {
		err := server.handleConnection()
		if err != nil {
			t.Error("Failed to handle connection", err)
		}
	}(t, server)
	block(server.addr, server.response)
}
