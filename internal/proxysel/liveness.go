package proxysel

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// probeTarget is the address dialed through the SOCKS listener to prove the
// tunnel forwards traffic. Any always-up TCP endpoint works; the connection
// is closed immediately after establishment.
const probeTarget = "one.one.one.one:443"

// ProbeSOCKS verifies that a binding's SOCKS listener is alive by
// establishing one connection through it. A binding without a SOCKS URL
// passes trivially (nothing to probe). Errors are advisory: callers log and
// fall back to a direct connection.
func ProbeSOCKS(ctx context.Context, b *Binding, timeout time.Duration) error {
	if b == nil || b.SOCKSProxy == "" {
		return nil
	}

	u, err := url.Parse(b.SOCKSProxy)
	if err != nil {
		return fmt.Errorf("proxysel: parse socks url %q: %w", b.SOCKSProxy, err)
	}

	var auth *xproxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &xproxy.Auth{User: u.User.Username(), Password: password}
	}

	dialer, err := xproxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("proxysel: socks dialer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	contextDialer, ok := dialer.(xproxy.ContextDialer)
	if !ok {
		// x/net's SOCKS5 dialer implements ContextDialer; guard anyway.
		conn, err := dialer.Dial("tcp", probeTarget)
		if err != nil {
			return fmt.Errorf("proxysel: probe via %s: %w", b.Name, err)
		}
		return conn.Close()
	}

	conn, err := contextDialer.DialContext(ctx, "tcp", probeTarget)
	if err != nil {
		return fmt.Errorf("proxysel: probe via %s: %w", b.Name, err)
	}
	return conn.Close()
}
