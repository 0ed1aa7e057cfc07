// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/janus-audit/janus/internal/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveScores stores a transaction's module scores with tenant isolation.
// Replaces any earlier row for the same transaction; rescoring keeps
// only the latest submission.
func (r *SQLRepository) SaveScores(ctx context.Context, tenantID string, ts *domain.TransactionScores) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	scores, _ := json.Marshal(ts.Scores)

	query := `
		INSERT INTO module_scores (
			tx_id, tenant_id, amount, department, vendor_id, official_id,
			tx_date, scores, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_id, tenant_id) DO UPDATE SET
			amount = excluded.amount,
			department = excluded.department,
			vendor_id = excluded.vendor_id,
			official_id = excluded.official_id,
			tx_date = excluded.tx_date,
			scores = excluded.scores
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		ts.TransactionID, tenantID, ts.Amount,
		ts.Department, ts.VendorID, ts.OfficialID,
		ts.Date, string(scores), time.Now().UTC(),
	)
	return err
}

// GetScores retrieves a transaction's module scores with tenant isolation.
func (r *SQLRepository) GetScores(ctx context.Context, tenantID string, txID string) (*domain.TransactionScores, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tx_id, tenant_id, amount, department, vendor_id, official_id, tx_date, scores
		FROM module_scores
		WHERE tenant_id = ? AND tx_id = ?
	`

	var ts domain.TransactionScores
	var scores string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID).Scan(
		&ts.TransactionID, &ts.TenantID, &ts.Amount,
		&ts.Department, &ts.VendorID, &ts.OfficialID,
		&ts.Date, &scores,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(scores), &ts.Scores); err != nil {
		return nil, fmt.Errorf("failed to parse module scores: %w", err)
	}

	return &ts, nil
}

const caseColumns = `id, tenant_id, tx_id, meta, scores, amount, department, vendor_id,
	   official_id, tx_date, priority, status, supersedes, superseded_by,
	   tags, claimed_by, closed_by, resolution, created_at, updated_at`

// SaveCase stores a case with tenant isolation.
func (r *SQLRepository) SaveCase(ctx context.Context, tenantID string, c *domain.Case) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	meta, _ := json.Marshal(c.Meta)
	scores, _ := json.Marshal(c.Scores)
	tags, _ := json.Marshal(c.Tags)

	query := `
		INSERT INTO cases (
			id, tenant_id, tx_id, meta, scores, amount, department, vendor_id,
			official_id, tx_date, priority, status, risk_level, supersedes,
			superseded_by, tags, claimed_by, closed_by, resolution, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.TransactionID,
		string(meta), string(scores),
		c.Amount, c.Department, c.VendorID, c.OfficialID, c.Date,
		c.Priority, c.Status, c.Meta.RiskLevel,
		c.Supersedes, c.SupersededBy, string(tags),
		c.ClaimedBy, c.ClosedBy, c.Resolution,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCase retrieves a case by ID with tenant isolation.
func (r *SQLRepository) GetCase(ctx context.Context, tenantID string, caseID string) (*domain.Case, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + caseColumns + ` FROM cases WHERE tenant_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, caseID)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// GetCaseByTransaction retrieves the current (non-superseded) case for
// a transaction with tenant isolation.
func (r *SQLRepository) GetCaseByTransaction(ctx context.Context, tenantID string, txID string) (*domain.Case, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE tenant_id = ? AND tx_id = ? AND superseded_by = ''
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// ListCases retrieves cases for a tenant ordered by priority, highest
// first, then creation time.
func (r *SQLRepository) ListCases(ctx context.Context, tenantID string, filter domain.CaseFilter) ([]*domain.Case, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + caseColumns + ` FROM cases WHERE tenant_id = ?`)
	args := []any{tenantID}

	if filter.Status != "" {
		sb.WriteString(" AND status = ?")
		args = append(args, filter.Status)
	}
	if filter.RiskLevel != "" {
		sb.WriteString(" AND risk_level = ?")
		args = append(args, filter.RiskLevel)
	}
	if filter.Department != "" {
		sb.WriteString(" AND department = ?")
		args = append(args, filter.Department)
	}
	if filter.VendorID != "" {
		sb.WriteString(" AND vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	sb.WriteString(" ORDER BY priority DESC, created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, limit)
	if filter.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(sb.String()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// CountCasesByVendor counts cases opened for a vendor since the given
// time with tenant isolation.
func (r *SQLRepository) CountCasesByVendor(ctx context.Context, tenantID string, vendorID string, since time.Time) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM cases
		WHERE tenant_id = ? AND vendor_id = ? AND created_at >= ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, vendorID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return count, nil
}

// UpdateCaseStatus writes the case only if its stored status still
// matches expect. Lost races surface as ErrSuperseded, never as silent
// overwrites.
func (r *SQLRepository) UpdateCaseStatus(ctx context.Context, tenantID string, c *domain.Case, expect domain.CaseStatus) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	meta, _ := json.Marshal(c.Meta)
	scores, _ := json.Marshal(c.Scores)
	tags, _ := json.Marshal(c.Tags)

	query := `
		UPDATE cases SET
			meta = ?, scores = ?, amount = ?, priority = ?,
			status = ?, risk_level = ?, supersedes = ?, superseded_by = ?,
			tags = ?, claimed_by = ?, closed_by = ?, resolution = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(meta), string(scores), c.Amount, c.Priority,
		c.Status, c.Meta.RiskLevel, c.Supersedes, c.SupersededBy,
		string(tags), c.ClaimedBy, c.ClosedBy, c.Resolution, c.UpdatedAt,
		tenantID, c.ID, expect,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing case from a status race.
		if _, err := r.GetCase(ctx, tenantID, c.ID); errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrSuperseded
	}

	return nil
}

// SaveReport stores an evidence report, replacing any earlier report
// for the same case.
func (r *SQLRepository) SaveReport(ctx context.Context, tenantID string, report *domain.EvidenceReport) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	items, _ := json.Marshal(report.Items)

	query := `
		INSERT INTO reports (
			case_id, tenant_id, tx_id, items, summary, recommendation, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id, tenant_id) DO UPDATE SET
			items = excluded.items,
			summary = excluded.summary,
			recommendation = excluded.recommendation,
			generated_at = excluded.generated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		report.CaseID, tenantID, report.TransactionID,
		string(items), report.Summary, report.Recommendation, report.GeneratedAt,
	)
	return err
}

// GetReport retrieves the evidence report for a case with tenant isolation.
func (r *SQLRepository) GetReport(ctx context.Context, tenantID string, caseID string) (*domain.EvidenceReport, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT case_id, tx_id, items, summary, recommendation, generated_at
		FROM reports
		WHERE tenant_id = ? AND case_id = ?
	`

	var report domain.EvidenceReport
	var items string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, caseID).Scan(
		&report.CaseID, &report.TransactionID,
		&items, &report.Summary, &report.Recommendation, &report.GeneratedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &report.Items); err != nil {
		return nil, fmt.Errorf("failed to parse report items: %w", err)
	}

	return &report, nil
}

// SaveTagRule stores a tag rule configuration with tenant isolation.
func (r *SQLRepository) SaveTagRule(ctx context.Context, tenantID string, rule *domain.TagRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO tag_rules (
			id, tenant_id, name, description, version, expression, tag, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			tag = excluded.tag,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Tag, enabled,
		now, now,
	)
	return err
}

// GetTagRule retrieves a tag rule configuration with tenant isolation.
func (r *SQLRepository) GetTagRule(ctx context.Context, tenantID string, ruleID string) (*domain.TagRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, tag, enabled
		FROM tag_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.TagRuleConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &cfg.Tag, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListTagRules retrieves all active tag rule configurations for a tenant.
func (r *SQLRepository) ListTagRules(ctx context.Context, tenantID string) ([]*domain.TagRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, tag, enabled
		FROM tag_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.TagRuleConfig
	for rows.Next() {
		var cfg domain.TagRuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Tag, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteTagRule soft-deletes a tag rule by setting enabled = 0.
func (r *SQLRepository) DeleteTagRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE tag_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner covers sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCase(s scanner) (*domain.Case, error) {
	var c domain.Case
	var meta, scores, tags string

	if err := s.Scan(
		&c.ID, &c.TenantID, &c.TransactionID,
		&meta, &scores,
		&c.Amount, &c.Department, &c.VendorID, &c.OfficialID, &c.Date,
		&c.Priority, &c.Status,
		&c.Supersedes, &c.SupersededBy, &tags,
		&c.ClaimedBy, &c.ClosedBy, &c.Resolution,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(meta), &c.Meta); err != nil {
		return nil, fmt.Errorf("failed to parse case meta: %w", err)
	}
	if err := json.Unmarshal([]byte(scores), &c.Scores); err != nil {
		return nil, fmt.Errorf("failed to parse case scores: %w", err)
	}
	if tags != "" && tags != "null" {
		json.Unmarshal([]byte(tags), &c.Tags)
	}

	return &c, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
