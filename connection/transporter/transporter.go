package transporter

import (
	"context"
	"net"

	"github.com/eshack94/Textual/connection/trust"
)

// Transporter is the capability set the connection requires from its
// transport: dial, serialized send, a channel of received chunks, lifecycle
// observation, and queries about the established link. Implementations feed
// Inbound from a single goroutine so chunk ordering matches wire order, and
// close Done exactly once when the transport dies; Err then reports why (nil
// for a clean, requested shutdown).
type Transporter interface {
	Done() <-chan struct{}
	Err() error
	Inbound() <-chan *[]byte
	Dial(ctx context.Context, host string, port uint16) error
	Send(data []byte) error
	Close(reason error)

	// RemoteAddr reports the connected endpoint, nil before Dial succeeds
	RemoteAddr() net.Addr

	// TLSMetadata reports the negotiated security parameters, nil when the
	// link is not secured (or not yet established)
	TLSMetadata() *trust.Metadata
}
