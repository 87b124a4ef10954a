package tcp

import (
	"net"
	"time"
)

const keepAlivePeriod = 30 * time.Second

// optimizeConn disables Nagle and turns on keep-alive. Voice frames are small
// and latency bound.
func optimizeConn(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return err
	}
	if err := tc.SetKeepAlive(true); err != nil {
		return err
	}
	return tc.SetKeepAlivePeriod(keepAlivePeriod)
}
