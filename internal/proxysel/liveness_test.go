package proxysel

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

// serveSOCKS5 runs a minimal no-auth SOCKS5 server that accepts every
// CONNECT without dialing the target.
func serveSOCKS5(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				// Greeting: VER NMETHODS METHODS...
				head := make([]byte, 2)
				if _, err := io.ReadFull(conn, head); err != nil {
					return
				}
				if _, err := io.ReadFull(conn, make([]byte, int(head[1]))); err != nil {
					return
				}
				if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
					return
				}
				// Request: VER CMD RSV ATYP ...
				req := make([]byte, 4)
				if _, err := io.ReadFull(conn, req); err != nil {
					return
				}
				var addrLen int
				switch req[3] {
				case 0x01:
					addrLen = 4
				case 0x03:
					one := make([]byte, 1)
					if _, err := io.ReadFull(conn, one); err != nil {
						return
					}
					addrLen = int(one[0])
				case 0x04:
					addrLen = 16
				default:
					return
				}
				if _, err := io.ReadFull(conn, make([]byte, addrLen+2)); err != nil {
					return
				}
				// Reply: succeeded, bound to 0.0.0.0:0.
				_, _ = conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestProbeSOCKS_Alive(t *testing.T) {
	addr := serveSOCKS5(t)
	b := &Binding{Name: "test", SOCKSProxy: "socks5://" + addr}
	if err := ProbeSOCKS(context.Background(), b, time.Second); err != nil {
		t.Fatalf("probe against live listener: %v", err)
	}
}

func TestProbeSOCKS_Dead(t *testing.T) {
	b := &Binding{Name: "dead", SOCKSProxy: "socks5://127.0.0.1:1"}
	if err := ProbeSOCKS(context.Background(), b, 200*time.Millisecond); err == nil {
		t.Fatal("probe against dead listener should fail")
	}
}

func TestProbeSOCKS_NothingToProbe(t *testing.T) {
	if err := ProbeSOCKS(context.Background(), nil, time.Second); err != nil {
		t.Fatalf("nil binding: %v", err)
	}
	if err := ProbeSOCKS(context.Background(), &Binding{HTTPProxy: "http://10.0.0.1:8080"}, time.Second); err != nil {
		t.Fatalf("http-only binding: %v", err)
	}
}
