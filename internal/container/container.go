package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "github.com/inference-gateway/adgate/config"
	audit "github.com/inference-gateway/adgate/internal/audit"
	domain "github.com/inference-gateway/adgate/internal/domain"
	adapters "github.com/inference-gateway/adgate/internal/infra/adapters"
	events "github.com/inference-gateway/adgate/internal/infra/events"
	storage "github.com/inference-gateway/adgate/internal/infra/storage"
	logger "github.com/inference-gateway/adgate/internal/logger"
	mcpserver "github.com/inference-gateway/adgate/internal/mcpserver"
	services "github.com/inference-gateway/adgate/internal/services"
	tools "github.com/inference-gateway/adgate/internal/services/tools"
	web "github.com/inference-gateway/adgate/internal/web"
	viper "github.com/spf13/viper"
)

// DefaultJanitorInterval is how often expired approvals and finished tasks are swept
const DefaultJanitorInterval = time.Minute

// ServiceContainer manages all application dependencies
type ServiceContainer struct {
	// Configuration
	viper  *viper.Viper
	config *config.Config

	// Infrastructure
	store     storage.Store
	publisher domain.EventPublisher
	audit     *audit.Logger
	accounts  *adapters.AccountsClient

	// Gate services
	networks    *services.NetworkTable
	classifier  *services.ToolClassifier
	policy      domain.ApprovalPolicy
	credentials *services.CredentialBroker
	visibility  *services.ProviderVisibilityFilter
	approvals   *services.ApprovalGateway
	tasks       *services.BackgroundTaskManager
	gate        *services.ToolGate

	// Tool dispatch
	catalog *tools.Catalog
	invoker *tools.HTTPInvoker
}

// Options overrides collaborators, mainly for tests
type Options struct {
	Store              storage.Store
	CredentialSource   domain.CredentialSource
	ConnectionRegistry domain.ConnectionRegistry
}

// NewServiceContainer creates a container with all dependencies wired. The
// caller owns it and must Close it.
func NewServiceContainer(cfg *config.Config, v *viper.Viper, opts ...Options) (*ServiceContainer, error) {
	c := &ServiceContainer{viper: v, config: cfg}

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	if err := c.initializeInfrastructure(o); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.initializeCatalog(); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.initializeServices(o); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// initializeInfrastructure opens the store, event publisher and audit trail
func (c *ServiceContainer) initializeInfrastructure(o Options) error {
	c.store = o.Store
	if c.store == nil {
		store, err := storage.NewStore(c.config.Approval.Storage)
		if err != nil {
			return fmt.Errorf("failed to open approval store: %w", err)
		}
		c.store = store
	}

	publisher, err := events.NewPublisher(c.config.Events)
	if err != nil {
		logger.Warn("Event publishing disabled", "error", err)
		publisher = events.NoopPublisher{}
	}
	c.publisher = publisher

	auditLog, err := audit.Open(c.config.Audit)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	c.audit = auditLog

	c.accounts = adapters.NewAccountsClient(c.config.Accounts)
	return nil
}

// initializeCatalog loads the tool catalog and its HTTP invoker
func (c *ServiceContainer) initializeCatalog() error {
	catalog, err := tools.LoadCatalog(c.config.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load tool catalog: %w", err)
	}
	c.catalog = catalog

	client := services.NewRetryableHTTPClient(c.config.Catalog.Timeout, c.config.Catalog.Retry)
	c.invoker = tools.NewHTTPInvoker(c.config.Catalog.BaseURL, catalog, client)
	return nil
}

// initializeServices wires the classifier, broker, visibility filter,
// approval gateway, task manager and the gate over them
func (c *ServiceContainer) initializeServices(o Options) error {
	c.networks = services.NewDefaultNetworkTable()

	var overrides map[string]domain.ToolAnnotation
	if path := c.config.Classifier.OverridesFile; path != "" {
		loaded, err := services.LoadOverridesFile(path, c.networks)
		if err != nil {
			return err
		}
		overrides = loaded
	}
	c.classifier = services.NewToolClassifier(c.networks, overrides)

	policy, err := services.NewApprovalPolicy(c.config.Approval.Policy)
	if err != nil {
		return err
	}
	c.policy = policy

	var source domain.CredentialSource = c.accounts
	if o.CredentialSource != nil {
		source = o.CredentialSource
	}
	var registry domain.ConnectionRegistry = c.accounts
	if o.ConnectionRegistry != nil {
		registry = o.ConnectionRegistry
	}

	c.credentials = services.NewCredentialBroker(source, c.networks, c.config.Credentials)
	c.visibility = services.NewProviderVisibilityFilter(registry, c.networks)
	c.approvals = services.NewApprovalGateway(c.store, c.config.Approval, services.ApprovalGatewayOptions{
		Catalog:   c.catalog,
		Publisher: c.publisher,
		Audit:     c.audit,
	})
	c.tasks = services.NewBackgroundTaskManager(c.config.Tasks, c.publisher)

	c.gate = services.NewToolGate(services.ToolGateDeps{
		Networks:    c.networks,
		Classifier:  c.classifier,
		Policy:      c.policy,
		Visibility:  c.visibility,
		Approvals:   c.approvals,
		Credentials: c.credentials,
		Tasks:       c.tasks,
		Catalog:     c.catalog,
		Audit:       c.audit,
	})

	logger.Debug("Service container initialized",
		"storage", c.config.Approval.Storage.Type,
		"policy", c.config.Approval.Policy,
		"catalog_tools", c.catalog.Len(),
		"overrides", len(overrides))
	return nil
}

// WebServer builds the HTTP API over the container's services
func (c *ServiceContainer) WebServer() *web.Server {
	return web.NewServer(c.config.Server, web.Deps{
		Gate:        c.gate,
		Approvals:   c.approvals,
		Tasks:       c.tasks,
		Visibility:  c.visibility,
		Credentials: c.credentials,
		Catalog:     c.catalog,
		Executor:    c.invoker,
		Health:      c.store.Health,
	})
}

// MCPServer builds the MCP tool surface over the container's services
func (c *ServiceContainer) MCPServer() *mcpserver.Server {
	return mcpserver.NewServer(c.config.MCP, mcpserver.Deps{
		Gate:        c.gate,
		Approvals:   c.approvals,
		Tasks:       c.tasks,
		Visibility:  c.visibility,
		Credentials: c.credentials,
		Catalog:     c.catalog,
	})
}

// RunJanitor sweeps expired approvals and finished tasks until ctx is done
func (c *ServiceContainer) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *ServiceContainer) sweep(ctx context.Context) {
	removed, err := c.approvals.CleanupExpired(ctx)
	if err != nil {
		logger.Warn("Approval cleanup failed", "error", err)
	}
	tasks := c.tasks.Cleanup()
	if removed > 0 || tasks > 0 {
		logger.Debug("Janitor sweep", "approvals_removed", removed, "tasks_removed", tasks)
	}
}

// Health checks the approval store
func (c *ServiceContainer) Health(ctx context.Context) error {
	return c.store.Health(ctx)
}

// Close cancels running tasks and releases the store, publisher and audit log
func (c *ServiceContainer) Close() error {
	if c.tasks != nil {
		if n := c.tasks.CancelAll(); n > 0 {
			logger.Info("Cancelled running background tasks", "count", n)
		}
	}

	var errs []error
	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	if c.audit != nil {
		errs = append(errs, c.audit.Close())
	}
	return errors.Join(errs...)
}

// Config returns the loaded configuration
func (c *ServiceContainer) Config() *config.Config { return c.config }

// Viper returns the viper instance the configuration was read from
func (c *ServiceContainer) Viper() *viper.Viper { return c.viper }

// Gate returns the tool gate
func (c *ServiceContainer) Gate() *services.ToolGate { return c.gate }

// Approvals returns the approval gateway
func (c *ServiceContainer) Approvals() *services.ApprovalGateway { return c.approvals }

// Tasks returns the background task manager
func (c *ServiceContainer) Tasks() *services.BackgroundTaskManager { return c.tasks }

// Visibility returns the provider visibility filter
func (c *ServiceContainer) Visibility() *services.ProviderVisibilityFilter { return c.visibility }

// Catalog returns the tool catalog
func (c *ServiceContainer) Catalog() *tools.Catalog { return c.catalog }

// Credentials returns the credential broker
func (c *ServiceContainer) Credentials() *services.CredentialBroker { return c.credentials }
