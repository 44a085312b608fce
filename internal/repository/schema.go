package repository

// Schema definitions for the Kite database.
// Compatible with both SQLite and PostgreSQL. Constraint names are explicit
// so the catalog and the error translator can resolve them.

const schemaAuditLog = `
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT NOT NULL,
    entry_type TEXT NOT NULL,
    entity_name TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    property_name TEXT,
    old_value TEXT,
    new_value TEXT,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    CONSTRAINT pk_audit_log PRIMARY KEY (id)
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_name, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
`

const schemaCompanies = `
CREATE TABLE IF NOT EXISTS companies (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    country TEXT NOT NULL DEFAULT '',
    employees INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT pk_companies PRIMARY KEY (id),
    CONSTRAINT uq_companies_name UNIQUE (name),
    CONSTRAINT ck_companies_employees CHECK (employees >= 0)
);
`

// The users unique constraint keeps its mixed-case name; PostgreSQL would
// otherwise fold it to lower case and break catalog lookups by the name the
// driver reports.
const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    company_id TEXT,
    version INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT pk_users PRIMARY KEY (id),
    CONSTRAINT "UQ_User_Name" UNIQUE (name),
    CONSTRAINT fk_users_company FOREIGN KEY (company_id) REFERENCES companies(id)
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAuditLog,
		schemaCompanies,
		schemaUsers,
	}
}
