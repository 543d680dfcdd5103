package transporter

import (
	"context"
	"net"

	"github.com/stretchr/testify/mock"

	"github.com/eshack94/Textual/connection/trust"
)

type MockTransporter struct {
	mock.Mock
}

func (m *MockTransporter) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(chan struct{})
}

func (m *MockTransporter) Err() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransporter) Inbound() <-chan *[]byte {
	args := m.Called()
	return args.Get(0).(chan *[]byte)
}

func (m *MockTransporter) Dial(ctx context.Context, host string, port uint16) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransporter) Send(data []byte) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransporter) Close(reason error) {
	m.Called()
}

func (m *MockTransporter) RemoteAddr() net.Addr {
	args := m.Called()
	if addr, ok := args.Get(0).(net.Addr); ok {
		return addr
	}
	return nil
}

func (m *MockTransporter) TLSMetadata() *trust.Metadata {
	args := m.Called()
	if metadata, ok := args.Get(0).(*trust.Metadata); ok {
		return metadata
	}
	return nil
}
