/*
The tcp package establishes and ferries raw bytes across the underlying TCP
connection, optionally wrapped in TLS. In terms of the overall connection
layer architecture, this package is at the lowest layer, providing the raw
bytes to the framer for it to split into protocol lines.
*/
package tcp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/proxy"
	"gopkg.in/tomb.v2"

	"github.com/eshack94/Textual/connection"
	"github.com/eshack94/Textual/connection/transporter"
	"github.com/eshack94/Textual/connection/trust"
	"github.com/eshack94/Textual/logger"
)

const readChunkSize = 4096

type Tcp struct {
	tmb    tomb.Tomb
	logger *logger.Logger

	config   *connection.Config
	verifier *trust.Verifier

	conn net.Conn

	// Received chunks
	inbound chan *[]byte
}

func New(logger *logger.Logger, config *connection.Config, verifier *trust.Verifier) transporter.Transporter {
	return &Tcp{
		logger:   logger,
		config:   config,
		verifier: verifier,
		inbound:  make(chan *[]byte, 200),
	}
}

func (t *Tcp) Close(reason error) {
	if t.tmb.Alive() {
		t.logger.Infof("TCP connection closing because: %s", reasonString(reason))

		if t.conn != nil {
			// unblocks the receive goroutine
			t.conn.Close()
		}

		t.tmb.Kill(reason)
		t.tmb.Wait()
	} else {
		t.logger.Infof("Close was called while in a dying state")
	}
}

func (t *Tcp) Done() <-chan struct{} {
	return t.tmb.Dead()
}

func (t *Tcp) Err() error {
	return t.tmb.Err()
}

func (t *Tcp) Inbound() <-chan *[]byte {
	return t.inbound
}

func (t *Tcp) RemoteAddr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

func (t *Tcp) TLSMetadata() *trust.Metadata {
	if _, ok := t.conn.(*tls.Conn); !ok {
		return nil
	}
	return t.verifier.Metadata()
}

func (t *Tcp) Send(data []byte) error {
	if t.conn == nil {
		return fmt.Errorf("cannot send because the connection is closed")
	}
	_, err := t.conn.Write(data)
	return err
}

func (t *Tcp) Dial(ctx context.Context, host string, port uint16) (err error) {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	rawConn, err := t.dialRaw(ctx, address)
	if err != nil {
		return fmt.Errorf("error dialing %s: %w", address, err)
	}

	if t.config.UseTLS {
		tlsConn := tls.Client(rawConn, t.config.TLSConfig(t.verifier.VerifyPeerCertificate))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			rawConn.Close()
			return fmt.Errorf("tls handshake with %s failed: %w", address, err)
		}

		t.verifier.RecordConnectionState(tlsConn.ConnectionState())
		t.conn = tlsConn
	} else {
		t.conn = rawConn
	}

	// Reinitialize our variables in case this is post death
	t.tmb = tomb.Tomb{}
	t.inbound = make(chan *[]byte, 200)

	t.tmb.Go(t.receive)

	return nil
}

func (t *Tcp) dialRaw(ctx context.Context, address string) (net.Conn, error) {
	if t.config.Proxy == connection.ProxyEnvironment {
		dialer := proxy.FromEnvironment()
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			return contextDialer.DialContext(ctx, "tcp", address)
		}
		return dialer.Dial("tcp", address)
	}

	return (&net.Dialer{}).DialContext(ctx, "tcp", address)
}

func (t *Tcp) receive() error {
	defer t.logger.Infof("TCP connection closed")
	t.logger.Infof("TCP connection started")

	buffer := make([]byte, readChunkSize)
	for {
		n, err := t.conn.Read(buffer)
		if !t.tmb.Alive() {
			return nil
		}

		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			select {
			case t.inbound <- &chunk:
			case <-t.tmb.Dying():
				// Nobody is draining inbound anymore; blocking here would
				// wedge Close in its Wait
				return nil
			}
		}

		if err != nil {
			return err
		} else if n == 0 {
			// A successful zero-byte read is not something a healthy
			// connection produces
			return fmt.Errorf("transport delivered an empty read")
		}
	}
}

func reasonString(reason error) string {
	if reason == nil {
		return "requested shutdown"
	}
	return reason.Error()
}
