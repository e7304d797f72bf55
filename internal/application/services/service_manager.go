package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/ports"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/database"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/messaging"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/crypto"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/expression"
)

// Externals are the clients for systems outside the database. Nil gateways disable
// the features that need them.
type Externals struct {
	Gateway     ports.PaymentGateway
	Google      ports.GoogleProvider
	States      ports.OAuthStateStore
	Idempotency ports.IdempotencyStore
	Publisher   messaging.Publisher
	Sealer      *crypto.Sealer
	Tokens      *auth.TokenManager
}

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.Connection

	TxManager    *persistence.TransactionManager
	EventBus     *EventBus
	Outbox       *OutboxService
	Access       *AccessService
	Auth         *AuthService
	Companies    *CompanyService
	Users        *UserService
	Scoring      *ScoringService
	Leads        *LeadService
	Customers    *CustomerService
	Templates    *TemplateService
	Quotations   *QuotationService
	EventOrders  *EventOrderService
	Payments     *PaymentService
	Integrations *IntegrationService
	Reports      *ReportService
	Exports      *ExportService
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection, ext Externals, logger *zap.Logger) *ServiceManager {
	sm := &ServiceManager{db: db}
	sqlDB := db.DB()

	companies := persistence.NewCompanyRepository(sqlDB)
	roles := persistence.NewRoleRepository(sqlDB)
	users := persistence.NewUserRepository(sqlDB)
	sessions := persistence.NewSessionRepository(sqlDB)
	leads := persistence.NewLeadRepository(sqlDB)
	rules := persistence.NewScoringRuleRepository(sqlDB)
	customers := persistence.NewCustomerRepository(sqlDB)
	templates := persistence.NewTemplateRepository(sqlDB)
	quotations := persistence.NewQuotationRepository(sqlDB)
	eventOrders := persistence.NewEventOrderRepository(sqlDB)
	payments := persistence.NewPaymentRepository(sqlDB)
	counters := persistence.NewCounterRepository(sqlDB)
	integrations := persistence.NewIntegrationRepository(sqlDB)
	reports := persistence.NewReportRepository(sqlDB)

	// Initialize services in dependency order
	sm.TxManager = persistence.NewTransactionManager(sqlDB)
	sm.EventBus = NewEventBus(logger)
	sm.Outbox = NewOutboxService(persistence.NewOutboxRepository(sqlDB), sm.EventBus, ext.Publisher, sm.TxManager, logger)

	sm.Access = NewAccessService(roles, users, sm.TxManager, logger)
	sm.Auth = NewAuthService(users, sessions, companies, ext.Tokens, sm.Access, logger)
	sm.Companies = NewCompanyService(companies, roles, users, sm.Access, sm.TxManager, logger)
	sm.Users = NewUserService(users, roles, sessions, sm.Access, logger)

	engine := expression.NewEngine()
	sm.Scoring = NewScoringService(rules, engine, sm.Access, logger)
	sm.Leads = NewLeadService(leads, customers, sm.Users, sm.Scoring, sm.Access, sm.Outbox, sm.TxManager, logger)
	sm.Customers = NewCustomerService(customers, sm.Users, sm.Access, logger)
	sm.Templates = NewTemplateService(templates, companies, customers, quotations, eventOrders, engine, sm.Access, sm.TxManager, logger)

	sm.EventOrders = NewEventOrderService(eventOrders, customers, companies, payments, counters, sm.Access, sm.Outbox, sm.TxManager, logger)
	sm.Quotations = NewQuotationService(quotations, customers, leads, companies, templates, sm.EventOrders, counters,
		sm.Access, sm.Outbox, sm.TxManager, logger)
	sm.Payments = NewPaymentService(payments, eventOrders, customers, ext.Gateway, ext.Idempotency, sm.Access, sm.Outbox, sm.TxManager, logger)

	sm.Integrations = NewIntegrationService(integrations, eventOrders, companies, ext.Google, ext.States, ext.Sealer, sm.Access, logger)
	sm.Integrations.RegisterHandlers(sm.EventBus)

	sm.Reports = NewReportService(reports, eventOrders, NewQueryValidator(), sm.Access, logger)
	sm.Exports = NewExportService(leads, customers, payments, sm.Access, logger)

	return sm
}

// StartOutboxWorker starts the background outbox event processing worker.
func (sm *ServiceManager) StartOutboxWorker(interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	sm.Outbox.StartWorker(interval)
}

// StopOutboxWorker stops the background outbox event processing worker gracefully.
func (sm *ServiceManager) StopOutboxWorker() {
	sm.Outbox.StopWorker()
}

// Health pings the database.
func (sm *ServiceManager) Health(ctx context.Context) error {
	return sm.db.PingContext(ctx)
}
