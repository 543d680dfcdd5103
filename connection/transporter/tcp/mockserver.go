package tcp

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/eshack94/Textual/logger"
)

// MockIrcServer is a minimal line-oriented server for exercising the TCP
// transport in tests. It accepts a single client at a time, replays every
// received payload onto ReceivedBytes, and lets tests push data back down the
// wire or drop the client to simulate a remote failure.
type MockIrcServer struct {
	logger   *logger.Logger
	listener net.Listener

	Host string
	Port uint16

	// Leaf certificate of the TLS listener, nil for plaintext servers
	Certificate *x509.Certificate

	ReceivedBytes chan []byte

	mu     sync.Mutex
	client net.Conn
}

func NewMockIrcServer(logger *logger.Logger) (*MockIrcServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return newMockIrcServer(logger, listener, nil), nil
}

func NewMockTlsIrcServer(logger *logger.Logger) (*MockIrcServer, error) {
	cert, tlsCert, err := generateServerCertificate()
	if err != nil {
		return nil, err
	}

	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return nil, err
	}

	return newMockIrcServer(logger, listener, cert), nil
}

func newMockIrcServer(logger *logger.Logger, listener net.Listener, cert *x509.Certificate) *MockIrcServer {
	address := listener.Addr().(*net.TCPAddr)

	server := &MockIrcServer{
		logger:        logger,
		listener:      listener,
		Host:          "127.0.0.1",
		Port:          uint16(address.Port),
		Certificate:   cert,
		ReceivedBytes: make(chan []byte, 200),
	}

	go server.acceptLoop()

	return server
}

func (s *MockIrcServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.client != nil {
			s.client.Close()
		}
		s.client = conn
		s.mu.Unlock()

		go s.readLoop(conn)
	}
}

func (s *MockIrcServer) readLoop(conn net.Conn) {
	buffer := make([]byte, 4096)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			received := make([]byte, n)
			copy(received, buffer[:n])
			s.ReceivedBytes <- received
		}
		if err != nil {
			return
		}
	}
}

// Write pushes data to the connected client.
func (s *MockIrcServer) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return net.ErrClosed
	}
	_, err := s.client.Write(data)
	return err
}

// DropClient closes the client connection without shutting the server down,
// simulating a remote-side failure.
func (s *MockIrcServer) DropClient() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

func (s *MockIrcServer) Shutdown() {
	s.listener.Close()
	s.DropClient()
}

func generateServerCertificate() (*x509.Certificate, tls.Certificate, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, pubKey, privKey)
	if err != nil {
		return nil, tls.Certificate{}, err
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, tls.Certificate{}, err
	}

	return cert, tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  privKey,
		Leaf:        cert,
	}, nil
}
