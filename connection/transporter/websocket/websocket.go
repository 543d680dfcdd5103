/*
The websocket package ferries raw bytes across a websocket relay, for
networks that are only reachable through a web gateway rather than a direct
TCP listener. The relay is assumed to pass the IRC byte stream through
unmodified; framing into protocol lines still happens above this layer.
*/
package websocket

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	gorilla "github.com/gorilla/websocket"
	"gopkg.in/tomb.v2"

	"github.com/eshack94/Textual/connection"
	"github.com/eshack94/Textual/connection/transporter"
	"github.com/eshack94/Textual/connection/trust"
	"github.com/eshack94/Textual/logger"
)

const (
	SecureWebsocketScheme = "wss"
	PlainWebsocketScheme  = "ws"
)

type Websocket struct {
	tmb    tomb.Tomb
	logger *logger.Logger

	config   *connection.Config
	verifier *trust.Verifier

	client *gorilla.Conn

	// Received messages
	inbound chan *[]byte
}

func New(logger *logger.Logger, config *connection.Config, verifier *trust.Verifier) transporter.Transporter {
	return &Websocket{
		logger:   logger,
		config:   config,
		verifier: verifier,
		inbound:  make(chan *[]byte, 200),
	}
}

func (w *Websocket) Close(reason error) {
	if w.tmb.Alive() {
		if reason == nil {
			w.logger.Infof("Websocket connection closing on request")
		} else {
			w.logger.Infof("Websocket connection closing because: %s", reason)
		}

		if w.client != nil {
			w.client.Close()
		}

		w.tmb.Kill(reason)
		w.tmb.Wait()
	} else {
		w.logger.Infof("Close was called while in a dying state")
	}
}

func (w *Websocket) Done() <-chan struct{} {
	return w.tmb.Dead()
}

func (w *Websocket) Err() error {
	return w.tmb.Err()
}

func (w *Websocket) Inbound() <-chan *[]byte {
	return w.inbound
}

func (w *Websocket) RemoteAddr() net.Addr {
	if w.client == nil {
		return nil
	}
	return w.client.RemoteAddr()
}

func (w *Websocket) TLSMetadata() *trust.Metadata {
	if w.client == nil {
		return nil
	}
	if _, ok := w.client.UnderlyingConn().(*tls.Conn); !ok {
		return nil
	}
	return w.verifier.Metadata()
}

func (w *Websocket) Send(data []byte) error {
	if w.client != nil {
		return w.client.WriteMessage(gorilla.BinaryMessage, data)
	}
	return fmt.Errorf("cannot send message because websocket is closed")
}

func (w *Websocket) Dial(ctx context.Context, host string, port uint16) (err error) {
	scheme := PlainWebsocketScheme
	if w.config.UseTLS {
		scheme = SecureWebsocketScheme
	}

	connUrl := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(port))),
		Path:   "/",
	}

	dialer := gorilla.Dialer{
		TLSClientConfig: w.config.TLSConfig(w.verifier.VerifyPeerCertificate),
	}
	if w.config.Proxy == connection.ProxyEnvironment {
		dialer.Proxy = http.ProxyFromEnvironment
	}

	if w.client, _, err = dialer.DialContext(ctx, connUrl.String(), http.Header{}); err != nil {
		return fmt.Errorf("error dialing websocket: %w", err)
	}

	if tlsConn, ok := w.client.UnderlyingConn().(*tls.Conn); ok {
		w.verifier.RecordConnectionState(tlsConn.ConnectionState())
	}

	// Reinitialize our variables in case this is post death
	w.tmb = tomb.Tomb{}
	w.inbound = make(chan *[]byte, 200)

	w.tmb.Go(w.receive)

	return nil
}

func (w *Websocket) receive() error {
	defer w.logger.Infof("Websocket connection closed")
	w.logger.Infof("Websocket connection started")

	for {
		// Read incoming message
		if _, rawMessage, err := w.client.ReadMessage(); !w.tmb.Alive() {
			return nil
		} else if err != nil {
			// A remote goodbye the caller never asked for is still an
			// error, close frame or not
			w.logger.Error(err)
			return err
		} else {
			select {
			case w.inbound <- &rawMessage:
			case <-w.tmb.Dying():
				// Nobody is draining inbound anymore; blocking here would
				// wedge Close in its Wait
				return nil
			}
		}
	}
}
