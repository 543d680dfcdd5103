package trust

import (
	"crypto/x509"

	"github.com/stretchr/testify/mock"
)

type MockPolicy struct {
	Policy
	mock.Mock
}

func (m *MockPolicy) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPolicy) Evaluate(chain []*x509.Certificate) error {
	args := m.Called()
	return args.Error(0)
}
