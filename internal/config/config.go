package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
	Mail     MailConfig     `mapstructure:"mail"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Vault    VaultConfig    `mapstructure:"vault"    validate:"required"`
	Collab   CollabConfig   `mapstructure:"collaborators" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// EngineConfig contains the orchestration engine's tunables. The whole
// struct is loaded once at startup and handed to the engine constructors;
// it is mutated afterwards only through Dispatcher.Reconfigure.
type EngineConfig struct {
	// WorkerCount is the dispatcher's worker pool size.
	WorkerCount int `mapstructure:"worker_count" validate:"required,min=1,max=10"`

	// MaxAttempts bounds automatic retries per task.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,min=1,max=5"`

	// BaseRetryDelay seeds the exponential backoff schedule:
	// delay(n) = BaseRetryDelay * 2^(n-1), capped at MaxRetryDelay.
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay" validate:"required"`
	MaxRetryDelay  time.Duration `mapstructure:"max_retry_delay"  validate:"required"`

	// DispatchInterval is the cadence of the ready-task scan.
	DispatchInterval time.Duration `mapstructure:"dispatch_interval" validate:"required"`

	// HeartbeatInterval is how often an in-flight worker refreshes its
	// claim; StaleClaimAge is how old a heartbeat may be before the
	// startup sweep treats the claim as abandoned.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required"`
	StaleClaimAge     time.Duration `mapstructure:"stale_claim_age"    validate:"required"`

	// ConfirmationTimeout is the compliance window for an emailed
	// erasure request (GDPR response window, 30 days). Exceeding it
	// flags the task as overdue without changing its status.
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout" validate:"required"`

	// ConfirmationPollInterval is the correlator's inbox poll cadence.
	ConfirmationPollInterval time.Duration `mapstructure:"confirmation_poll_interval" validate:"required"`

	// ConfidenceThreshold is the minimum heuristic match score that is
	// auto-applied; matches below it are recorded for manual review.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`

	// LookbackWindow bounds how old an inbound message may be and still
	// be considered for heuristic matching.
	LookbackWindow time.Duration `mapstructure:"lookback_window" validate:"required"`

	// UndoWindow is how long a completed deletion can be reverted.
	UndoWindow time.Duration `mapstructure:"undo_window" validate:"required"`

	// SweepInterval is the retention manager's cadence.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required"`
}

// MailConfig contains settings for outgoing erasure-request email.
// Transport itself is an external collaborator; the engine only needs
// the envelope identity.
type MailConfig struct {
	FromAddress string `mapstructure:"from_address" validate:"required,email"`
	FromName    string `mapstructure:"from_name"`
}

// LLMConfig contains settings for the optional Gemini email drafter.
// When the API key is empty the static template is used instead.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}

// VaultConfig contains the master key for the decrypt-on-demand
// credential capability. Credentials themselves never enter this
// process's configuration or storage.
type VaultConfig struct {
	MasterKey string `mapstructure:"master_key" validate:"required,min=16"`
}

// CollabConfig points at the external collaborator services the engine
// drives: the account store, the browser-automation sidecar and the
// mail relay. The site catalog URL is optional; without it the engine
// falls back to the profiles file shipped alongside the binary.
type CollabConfig struct {
	AccountServiceURL string `mapstructure:"account_service_url" validate:"required,url"`
	AutomationURL     string `mapstructure:"automation_url"      validate:"required,url"`
	MailRelayURL      string `mapstructure:"mail_relay_url"      validate:"required,url"`
	SiteCatalogURL    string `mapstructure:"site_catalog_url"    validate:"omitempty,url"`

	// RequestTimeout bounds each collaborator HTTP call. Automation
	// runs are long; this must cover a full browser session.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`

	// CatalogTTL is how long site profiles are cached.
	CatalogTTL time.Duration `mapstructure:"catalog_ttl" validate:"required"`
}
