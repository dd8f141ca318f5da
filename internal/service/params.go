package service

import (
	"github.com/codeldorado/rebill/internal/config"
	"github.com/codeldorado/rebill/internal/domain/subscription"
	"github.com/codeldorado/rebill/internal/domain/transaction"
	"github.com/codeldorado/rebill/internal/domain/vault"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/logger"
)

// ServiceParams bundles the common dependencies injected into every service
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	SubRepo         subscription.Repository
	VaultRepo       vault.Repository
	TransactionRepo transaction.Repository

	GatewayClient gateway.Client
}
