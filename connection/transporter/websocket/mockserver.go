package websocket

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/eshack94/Textual/logger"
)

// MockWebsocketServer upgrades every request and echoes whatever it receives
// back down the same connection, while also replaying received payloads onto
// ReceivedBytes for assertions.
type MockWebsocketServer struct {
	logger *logger.Logger
	server *httptest.Server

	Host string
	Port uint16

	ReceivedBytes chan []byte

	mu     sync.Mutex
	client *gorilla.Conn
}

func NewMockWebsocketServer(log *logger.Logger) *MockWebsocketServer {
	mockServer := &MockWebsocketServer{
		logger:        log,
		ReceivedBytes: make(chan []byte, 200),
	}

	upgrader := gorilla.Upgrader{}
	mockServer.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf("failed to upgrade request: %s", err)
			return
		}

		mockServer.mu.Lock()
		mockServer.client = conn
		mockServer.mu.Unlock()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mockServer.ReceivedBytes <- message
			if err := conn.WriteMessage(messageType, message); err != nil {
				return
			}
		}
	}))

	serverUrl := mockServer.server.Listener.Addr().(*net.TCPAddr)
	mockServer.Host = "127.0.0.1"
	mockServer.Port = uint16(serverUrl.Port)

	return mockServer
}

func (s *MockWebsocketServer) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// CloseClient sends the client a normal close frame, simulating a relay
// saying goodbye on its own initiative.
func (s *MockWebsocketServer) CloseClient() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		goodbye := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "goodbye")
		s.client.WriteControl(gorilla.CloseMessage, goodbye, time.Now().Add(time.Second))
	}
}

func (s *MockWebsocketServer) Shutdown() {
	s.mu.Lock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.mu.Unlock()
	s.server.Close()
}
