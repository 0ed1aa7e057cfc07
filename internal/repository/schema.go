package repository

// Schema definitions for the Janus database.
// Compatible with both SQLite and PostgreSQL.

const schemaModuleScores = `
CREATE TABLE IF NOT EXISTS module_scores (
    tx_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    amount REAL NOT NULL,
    department TEXT,
    vendor_id TEXT,
    official_id TEXT,
    tx_date TIMESTAMP,
    scores TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tx_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_module_scores_tenant ON module_scores(tenant_id);
CREATE INDEX IF NOT EXISTS idx_module_scores_vendor ON module_scores(tenant_id, vendor_id);
`

const schemaCases = `
CREATE TABLE IF NOT EXISTS cases (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    meta TEXT NOT NULL,
    scores TEXT NOT NULL,
    amount REAL NOT NULL,
    department TEXT,
    vendor_id TEXT,
    official_id TEXT,
    tx_date TIMESTAMP,
    priority REAL NOT NULL,
    status TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    supersedes TEXT,
    superseded_by TEXT,
    tags TEXT,
    claimed_by TEXT,
    closed_by TEXT,
    resolution TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_tenant ON cases(tenant_id);
CREATE INDEX IF NOT EXISTS idx_cases_tx ON cases(tenant_id, tx_id);
CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_cases_vendor ON cases(tenant_id, vendor_id);
CREATE INDEX IF NOT EXISTS idx_cases_priority ON cases(tenant_id, priority);
`

const schemaReports = `
CREATE TABLE IF NOT EXISTS reports (
    case_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    items TEXT NOT NULL,
    summary TEXT NOT NULL,
    recommendation TEXT NOT NULL,
    generated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (case_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_reports_tenant ON reports(tenant_id);
`

const schemaTagRules = `
CREATE TABLE IF NOT EXISTS tag_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    tag TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_tag_rules_tenant ON tag_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_tag_rules_enabled ON tag_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaModuleScores,
		schemaCases,
		schemaReports,
		schemaTagRules,
	}
}
