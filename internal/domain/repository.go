package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Module score operations
	SaveScores(ctx context.Context, tenantID string, scores *TransactionScores) error
	GetScores(ctx context.Context, tenantID string, txID string) (*TransactionScores, error)

	// Case operations
	SaveCase(ctx context.Context, tenantID string, c *Case) error
	GetCase(ctx context.Context, tenantID string, caseID string) (*Case, error)
	GetCaseByTransaction(ctx context.Context, tenantID string, txID string) (*Case, error)
	ListCases(ctx context.Context, tenantID string, filter CaseFilter) ([]*Case, error)
	CountCasesByVendor(ctx context.Context, tenantID string, vendorID string, since time.Time) (int, error)

	// UpdateCaseStatus performs a compare-and-update: the write applies
	// only if the case still holds the expected status. Returns
	// ErrSuperseded when the guard fails.
	UpdateCaseStatus(ctx context.Context, tenantID string, c *Case, expect CaseStatus) error

	// Report operations
	SaveReport(ctx context.Context, tenantID string, report *EvidenceReport) error
	GetReport(ctx context.Context, tenantID string, caseID string) (*EvidenceReport, error)

	// Tag rule configuration operations
	SaveTagRule(ctx context.Context, tenantID string, rule *TagRuleConfig) error
	GetTagRule(ctx context.Context, tenantID string, ruleID string) (*TagRuleConfig, error)
	ListTagRules(ctx context.Context, tenantID string) ([]*TagRuleConfig, error)
	DeleteTagRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CaseFilter narrows a case listing. Zero values match everything.
type CaseFilter struct {
	Status     CaseStatus
	RiskLevel  RiskLevel
	Department string
	VendorID   string
	Limit      int
	Offset     int
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"postgresPassword" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}
