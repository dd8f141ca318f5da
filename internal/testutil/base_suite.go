package testutil

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/codeldorado/rebill/internal/config"
	"github.com/codeldorado/rebill/internal/domain/subscription"
	"github.com/codeldorado/rebill/internal/domain/transaction"
	"github.com/codeldorado/rebill/internal/domain/vault"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/types"
)

// Stores bundles the in-memory repositories used by service suites
type Stores struct {
	SubscriptionRepo subscription.Repository
	VaultRepo        vault.Repository
	TransactionRepo  transaction.Repository
}

// BaseServiceTestSuite provides shared setup for service layer tests:
// a request scoped context, a nop logger, default config, fresh in-memory
// stores and a scripted fake gateway per test.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	logger  *logger.Logger
	config  *config.Configuration
	stores  Stores
	gateway *FakeGateway
	txns    *InMemoryTransactionStore
}

// SetupTest initializes fresh state before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = types.SetRequestID(context.Background(), types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST))
	s.logger = logger.NewNopLogger()
	s.config = config.GetDefaultConfig()

	s.txns = NewInMemoryTransactionStore()
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		VaultRepo:        NewInMemoryVaultStore(),
		TransactionRepo:  s.txns,
	}
	s.gateway = NewFakeGateway(s.txns)
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns the in-memory repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetGateway returns the scripted fake gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetTransactionStore returns the concrete transaction store for assertions
func (s *BaseServiceTestSuite) GetTransactionStore() *InMemoryTransactionStore {
	return s.txns
}
