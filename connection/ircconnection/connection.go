/*
The ircconnection package is the connection socket's state machine. It owns a
single event loop goroutine per connection attempt; every delegate
notification, every framed line, and every outbound send happens on that
loop, so the mutable pieces (framer buffer, close reason) need no locking of
their own. The loop is tracked by a tomb, and a deferred cleanup step runs on
every exit path so the delegate always hears about a disconnect exactly once.
*/
package ircconnection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gopkg.in/tomb.v2"

	"github.com/eshack94/Textual/connection"
	"github.com/eshack94/Textual/connection/framer"
	"github.com/eshack94/Textual/connection/transporter"
	"github.com/eshack94/Textual/connection/trust"
	"github.com/eshack94/Textual/logger"
)

var _ connection.Connection = (*IrcConnection)(nil)

type IrcConnection struct {
	// One tomb per attempt. The pointer is swapped on reopen rather than the
	// struct reused, because the previous attempt's goroutine is still doing
	// its final bookkeeping when a reopen from the disconnect callback lands
	tmbMu sync.Mutex
	tmb   *tomb.Tomb

	logger *logger.Logger

	config   *connection.Config
	delegate connection.Delegate

	// This is our underlying transport where we send and receive bytes
	transport transporter.Transporter

	// Retains trust material and negotiated security for the current attempt
	verifier *trust.Verifier

	// Splits the inbound byte stream into protocol lines; only ever touched
	// from the event loop
	framer *framer.Framer

	state atomic.Int32

	// True while exactly one send is outstanding; a second Send during that
	// window is dropped, not queued
	pendingSend atomic.Bool
	sendQueue   chan []byte

	reasonMu       sync.Mutex
	closeRequested bool
	closeReason    error
}

func New(
	log *logger.Logger,
	config *connection.Config,
	delegate connection.Delegate,
	transport transporter.Transporter,
	verifier *trust.Verifier,
) *IrcConnection {
	conn := &IrcConnection{
		tmb:       new(tomb.Tomb),
		logger:    log.GetComponentLogger("Connection").AddField("id", uuid.New().String()),
		config:    config,
		delegate:  delegate,
		transport: transport,
		verifier:  verifier,
		framer:    framer.New(),
		sendQueue: make(chan []byte, 1),
	}
	conn.state.Store(int32(connection.Disconnected))

	return conn
}

func (c *IrcConnection) State() connection.State {
	return connection.State(c.state.Load())
}

func (c *IrcConnection) setState(next connection.State) {
	previous := connection.State(c.state.Swap(int32(next)))
	if previous != next {
		c.logger.Debugf("state %s -> %s", previous, next)
	}
}

func (c *IrcConnection) Ready() bool {
	return c.State().Established()
}

func (c *IrcConnection) Done() <-chan struct{} {
	return c.currentTomb().Dead()
}

func (c *IrcConnection) Err() error {
	return c.currentTomb().Err()
}

// Open starts a connection attempt. It is a no-op unless the connection is
// fully disconnected; calling Open twice without an intervening close-and-
// reset cycle does nothing the second time. Open never blocks; progress is
// reported through the delegate.
func (c *IrcConnection) Open() {
	if !c.state.CompareAndSwap(int32(connection.Disconnected), int32(connection.Connecting)) {
		c.logger.Infof("Open called while %s; ignoring", c.State())
		return
	}

	// Fresh per-attempt resources in case this is a reopen
	attempt := new(tomb.Tomb)
	notify := &sync.Once{}

	c.tmbMu.Lock()
	c.tmb = attempt
	c.tmbMu.Unlock()

	c.pendingSend.Store(false)

	c.reasonMu.Lock()
	c.closeRequested = false
	c.closeReason = nil
	c.reasonMu.Unlock()

	attempt.Go(func() error {
		err := c.run(attempt)
		c.finish(err, notify)
		return err
	})
}

// Close requests a teardown with no error attached; the delegate will see a
// clean disconnect. No-op unless a connection attempt is in flight.
func (c *IrcConnection) Close() {
	c.CloseWithReason(nil)
}

// CloseWithReason is Close with an explicit error to report to the delegate
// instead of whatever the transport would have inferred. The terminal
// disconnected state is reached asynchronously, never inside this call.
func (c *IrcConnection) CloseWithReason(reason error) {
	state := c.State()
	if state != connection.Connecting && !state.Established() {
		c.logger.Infof("Close called while %s; ignoring", state)
		return
	}

	c.setState(connection.Disconnecting)

	c.reasonMu.Lock()
	c.closeRequested = true
	c.closeReason = reason
	c.reasonMu.Unlock()

	c.currentTomb().Kill(reason)
}

// Send queues data for transmission. It is a no-op unless the connection is
// established, and it is rejected (dropped, not queued) while another send is
// still outstanding.
func (c *IrcConnection) Send(data []byte) {
	if !c.State().Established() {
		c.logger.Infof("Send called while %s; dropping %d bytes", c.State(), len(data))
		return
	}

	if !c.pendingSend.CompareAndSwap(false, true) {
		c.logger.Errorf("dropping overlapping send of %d bytes; a send is already in flight", len(data))
		return
	}

	c.sendQueue <- data
}

// run is the event loop: it dials, reports the connection, evaluates
// security, and then ferries lines and sends until something dies. Its
// return value is the untranslated reason the attempt ended; nil means a
// clean shutdown.
func (c *IrcConnection) run(tmb *tomb.Tomb) error {
	c.delegate.WillConnect(c.config.Host, c.config.Port)

	// Tie the dial's context into our tomb so Close cancels it
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
		case <-tmb.Dying():
			cancel()
		}
	}()

	c.logger.Infof("Connecting to %s", c.config.Address())
	if err := c.transport.Dial(ctx, c.config.Host, c.config.Port); err != nil {
		return err
	}

	c.setState(connection.Connected)
	c.delegate.DidConnect(c.config.Host)

	if err := c.evaluateSecurity(); err != nil {
		c.transport.Close(err)
		return err
	}

	for {
		select {
		case <-tmb.Dying():
			// Requested teardown; the transport confirms by dying cleanly
			c.transport.Close(nil)
			return c.getCloseReason()

		case <-c.transport.Done():
			return c.transport.Err()

		case chunk := <-c.transport.Inbound():
			for _, line := range c.framer.Push(*chunk) {
				c.delegate.Received(line)
			}

		case data := <-c.sendQueue:
			c.delegate.WillSend(data)
			if err := c.transport.Send(data); err != nil {
				// A failed send always tears the connection down
				c.transport.Close(err)
				return err
			}
			c.pendingSend.Store(false)
			c.delegate.DidSend()
		}
	}
}

// evaluateSecurity promotes the connection to secured if TLS was requested
// and the transport can report what it negotiated. A TLS connection that
// cannot say what it negotiated is not allowed to carry traffic. Without TLS
// this is simply skipped.
func (c *IrcConnection) evaluateSecurity() error {
	if !c.config.UseTLS {
		return nil
	}

	c.setState(connection.Securing)

	metadata := c.transport.TLSMetadata()
	if metadata == nil {
		return fmt.Errorf("tls was requested but the transport reported no negotiated parameters")
	}

	c.setState(connection.Secured)
	c.logger.Infof("Connection secured with %s (%s)", metadata.ProtocolVersion, metadata.CipherSuite)
	c.delegate.SecuredWith(metadata.ProtocolVersion, metadata.CipherSuite)
	return nil
}

// finish runs exactly once per attempt, on every exit path of the event
// loop: reset first, then the single delegate notification. The once is per
// attempt so a reopen from inside the callback cannot bleed into it.
func (c *IrcConnection) finish(err error, notify *sync.Once) {
	c.reasonMu.Lock()
	requested, reason := c.closeRequested, c.closeReason
	c.reasonMu.Unlock()

	// A caller-requested close is reported as the caller framed it, even if
	// aborting the attempt surfaced a transport error underneath
	if requested {
		err = reason
	}
	translated := connection.Translate(err)

	c.resetState()

	notify.Do(func() {
		if translated == nil {
			c.logger.Infof("Disconnected cleanly")
			c.delegate.Disconnected()
		} else {
			c.logger.Errorf("Disconnected with error: %s", translated)
			c.delegate.DisconnectedWithError(translated)
		}
	})
}

// resetState returns the connection to a reopenable baseline: framer and
// trust material cleared, pending send dropped, terminal state entered.
func (c *IrcConnection) resetState() {
	c.framer.Reset()
	c.verifier.Reset()

	// Drop any send that never made it onto the wire
	select {
	case <-c.sendQueue:
	default:
	}
	c.pendingSend.Store(false)

	c.setState(connection.Disconnected)
}

func (c *IrcConnection) getCloseReason() error {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	return c.closeReason
}

func (c *IrcConnection) currentTomb() *tomb.Tomb {
	c.tmbMu.Lock()
	defer c.tmbMu.Unlock()
	return c.tmb
}
