package muxer

import (
	"net"
	"testing"
)

// testConnPair 创建测试用的 TCP 连接对
func testConnPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	var serverConn net.Conn
	done := make(chan struct{})
	go func() {
		serverConn, _ = ln.Accept()
		close(done)
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	<-done

	t.Cleanup(func() {
		_ = clientConn.Close()
		if serverConn != nil {
			_ = serverConn.Close()
		}
	})
	return clientConn, serverConn
}
