package connection

import (
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockDelegate struct {
	Delegate
	mock.Mock
}

func (m *MockDelegate) WillConnect(host string, port uint16) {
	m.Called()
}

func (m *MockDelegate) DidConnect(host string) {
	m.Called()
}

func (m *MockDelegate) SecuredWith(protocolVersion string, cipherSuite string) {
	m.Called()
}

func (m *MockDelegate) Received(line []byte) {
	m.Called()
}

func (m *MockDelegate) WillSend(data []byte) {
	m.Called()
}

func (m *MockDelegate) DidSend() {
	m.Called()
}

func (m *MockDelegate) Disconnected() {
	m.Called()
}

func (m *MockDelegate) DisconnectedWithError(err error) {
	m.Called()
}

// FakeDelegate records every notification in arrival order so scenario tests
// can assert on exact sequences. Safe for concurrent use.
type FakeDelegate struct {
	mu sync.Mutex

	events []string
	lines  [][]byte
	errors []error

	// Closed once the first disconnect notification of either kind has
	// fired; later cycles only bump the event record
	DisconnectedChan   chan struct{}
	disconnectSignaled bool
}

func NewFakeDelegate() *FakeDelegate {
	return &FakeDelegate{
		DisconnectedChan: make(chan struct{}),
	}
}

func (f *FakeDelegate) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *FakeDelegate) WillConnect(host string, port uint16) {
	f.record(fmt.Sprintf("willConnect(%s:%d)", host, port))
}

func (f *FakeDelegate) DidConnect(host string) {
	f.record(fmt.Sprintf("didConnect(%s)", host))
}

func (f *FakeDelegate) SecuredWith(protocolVersion string, cipherSuite string) {
	f.record(fmt.Sprintf("securedWith(%s,%s)", protocolVersion, cipherSuite))
}

func (f *FakeDelegate) Received(line []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lineCopy := make([]byte, len(line))
	copy(lineCopy, line)
	f.lines = append(f.lines, lineCopy)
	f.events = append(f.events, fmt.Sprintf("received(%s)", string(lineCopy)))
}

func (f *FakeDelegate) WillSend(data []byte) {
	f.record("willSend")
}

func (f *FakeDelegate) DidSend() {
	f.record("didSend")
}

func (f *FakeDelegate) Disconnected() {
	f.record("disconnected")
	f.signalDisconnect()
}

func (f *FakeDelegate) DisconnectedWithError(err error) {
	f.mu.Lock()
	f.errors = append(f.errors, err)
	f.events = append(f.events, fmt.Sprintf("disconnectedWithError(%s)", err))
	f.mu.Unlock()
	f.signalDisconnect()
}

func (f *FakeDelegate) signalDisconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.disconnectSignaled {
		f.disconnectSignaled = true
		close(f.DisconnectedChan)
	}
}

func (f *FakeDelegate) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.events...)
}

func (f *FakeDelegate) Lines() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte{}, f.lines...)
}

func (f *FakeDelegate) Errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error{}, f.errors...)
}

// DisconnectCount returns how many disconnect notifications of either kind
// have been delivered.
func (f *FakeDelegate) DisconnectCount() int {
	count := 0
	for _, event := range f.Events() {
		if event == "disconnected" || strings.HasPrefix(event, "disconnectedWithError") {
			count++
		}
	}
	return count
}
