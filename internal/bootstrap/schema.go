// Package bootstrap creates the database schema and the built-in tenant roles.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// schemaStatements are idempotent; every tenant-owned table carries company_id with an index.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id VARCHAR(36) PRIMARY KEY,
		parent_id VARCHAR(36) NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(100) NOT NULL,
		currency CHAR(3) NOT NULL DEFAULT 'IDR',
		tax_rate DECIMAL(5,2) NOT NULL DEFAULT 0,
		timezone VARCHAR(64) NOT NULL DEFAULT 'Asia/Jakarta',
		quotation_validity_days INT NOT NULL DEFAULT 14,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uk_companies_slug (slug),
		KEY idx_companies_parent (parent_id)
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		name VARCHAR(100) NOT NULL,
		description VARCHAR(500) NOT NULL DEFAULT '',
		is_system BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uk_roles_company_name (company_id, name),
		KEY idx_roles_company (company_id)
	)`,
	`CREATE TABLE IF NOT EXISTS role_permissions (
		role_id VARCHAR(36) NOT NULL,
		resource VARCHAR(50) NOT NULL,
		action VARCHAR(20) NOT NULL,
		scope VARCHAR(10) NOT NULL,
		PRIMARY KEY (role_id, resource, action)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		role_id VARCHAR(36) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_platform_admin BOOLEAN NOT NULL DEFAULT FALSE,
		last_login_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uk_users_email (email),
		KEY idx_users_company (company_id),
		KEY idx_users_role (role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		company_id VARCHAR(36) NOT NULL,
		expires_at DATETIME NOT NULL,
		ip_address VARCHAR(64) NOT NULL DEFAULT '',
		user_agent VARCHAR(500) NOT NULL DEFAULT '',
		is_revoked BOOLEAN NOT NULL DEFAULT FALSE,
		last_activity DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		KEY idx_sessions_user (user_id),
		KEY idx_sessions_expires (expires_at)
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		owner_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(50) NOT NULL DEFAULT '',
		organization VARCHAR(255) NOT NULL DEFAULT '',
		source VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		event_type VARCHAR(100) NOT NULL DEFAULT '',
		event_date DATE NULL,
		estimated_pax INT NOT NULL DEFAULT 0,
		budget DECIMAL(15,2) NOT NULL DEFAULT 0,
		score INT NOT NULL DEFAULT 0,
		lost_reason VARCHAR(500) NOT NULL DEFAULT '',
		notes TEXT,
		converted_customer_id VARCHAR(36) NULL,
		converted_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_leads_company (company_id),
		KEY idx_leads_company_status (company_id, status),
		KEY idx_leads_owner (owner_id)
	)`,
	`CREATE TABLE IF NOT EXISTS lead_activities (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		lead_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		description TEXT,
		occurred_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		KEY idx_lead_activities_company (company_id),
		KEY idx_lead_activities_lead (lead_id)
	)`,
	`CREATE TABLE IF NOT EXISTS lead_scoring_rules (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		expression TEXT NOT NULL,
		points INT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_lead_scoring_rules_company (company_id)
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		owner_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(50) NOT NULL DEFAULT '',
		organization VARCHAR(255) NOT NULL DEFAULT '',
		address TEXT,
		tax_id VARCHAR(50) NOT NULL DEFAULT '',
		notes TEXT,
		source_lead_id VARCHAR(36) NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_customers_company (company_id),
		KEY idx_customers_owner (owner_id)
	)`,
	`CREATE TABLE IF NOT EXISTS templates (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		name VARCHAR(255) NOT NULL,
		subject VARCHAR(500) NOT NULL DEFAULT '',
		body TEXT,
		terms TEXT,
		default_items JSON,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_templates_company_kind (company_id, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS quotations (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		owner_id VARCHAR(36) NOT NULL,
		customer_id VARCHAR(36) NOT NULL,
		lead_id VARCHAR(36) NULL,
		number VARCHAR(30) NOT NULL,
		title VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL,
		currency CHAR(3) NOT NULL,
		valid_until DATE NOT NULL,
		discount_type VARCHAR(10) NOT NULL DEFAULT 'none',
		discount_value DECIMAL(15,2) NOT NULL DEFAULT 0,
		subtotal DECIMAL(15,2) NOT NULL DEFAULT 0,
		discount_amount DECIMAL(15,2) NOT NULL DEFAULT 0,
		tax_rate DECIMAL(5,2) NOT NULL DEFAULT 0,
		tax_amount DECIMAL(15,2) NOT NULL DEFAULT 0,
		total DECIMAL(15,2) NOT NULL DEFAULT 0,
		notes TEXT,
		terms TEXT,
		template_id VARCHAR(36) NULL,
		event_order_id VARCHAR(36) NULL,
		sent_at DATETIME NULL,
		accepted_at DATETIME NULL,
		rejected_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uk_quotations_number (company_id, number),
		KEY idx_quotations_company_status (company_id, status),
		KEY idx_quotations_customer (customer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS quotation_items (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		quotation_id VARCHAR(36) NOT NULL,
		position INT NOT NULL,
		description VARCHAR(500) NOT NULL,
		quantity DECIMAL(12,2) NOT NULL,
		unit_price DECIMAL(15,2) NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		KEY idx_quotation_items_company (company_id),
		KEY idx_quotation_items_quotation (quotation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_orders (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		owner_id VARCHAR(36) NOT NULL,
		customer_id VARCHAR(36) NOT NULL,
		quotation_id VARCHAR(36) NULL,
		number VARCHAR(30) NOT NULL,
		title VARCHAR(255) NOT NULL,
		event_type VARCHAR(100) NOT NULL DEFAULT '',
		event_date DATE NOT NULL,
		start_time VARCHAR(5) NOT NULL DEFAULT '',
		end_time VARCHAR(5) NOT NULL DEFAULT '',
		venue VARCHAR(500) NOT NULL DEFAULT '',
		pax INT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		currency CHAR(3) NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL DEFAULT 0,
		paid_amount DECIMAL(15,2) NOT NULL DEFAULT 0,
		payment_status VARCHAR(10) NOT NULL DEFAULT 'unpaid',
		notes TEXT,
		calendar_event_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uk_event_orders_number (company_id, number),
		UNIQUE KEY uk_event_orders_quotation (quotation_id),
		KEY idx_event_orders_company_date (company_id, event_date),
		KEY idx_event_orders_customer (customer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		event_order_id VARCHAR(36) NOT NULL,
		customer_id VARCHAR(36) NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		method VARCHAR(20) NOT NULL,
		status VARCHAR(10) NOT NULL,
		reference VARCHAR(255) NOT NULL DEFAULT '',
		external_id VARCHAR(64) NULL,
		provider_invoice_id VARCHAR(64) NULL,
		invoice_url VARCHAR(500) NOT NULL DEFAULT '',
		paid_at DATETIME NULL,
		expires_at DATETIME NULL,
		recorded_by VARCHAR(36) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uk_payments_external (external_id),
		KEY idx_payments_company (company_id),
		KEY idx_payments_event_order (event_order_id),
		KEY idx_payments_status (status)
	)`,
	`CREATE TABLE IF NOT EXISTS integrations (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		provider VARCHAR(20) NOT NULL,
		account_email VARCHAR(255) NOT NULL DEFAULT '',
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		token_expires_at DATETIME NOT NULL,
		scopes VARCHAR(1000) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uk_integrations_user_provider (user_id, provider),
		KEY idx_integrations_company (company_id)
	)`,
	`CREATE TABLE IF NOT EXISTS document_counters (
		company_id VARCHAR(36) NOT NULL,
		doc_type VARCHAR(10) NOT NULL,
		year INT NOT NULL,
		last_value INT NOT NULL,
		PRIMARY KEY (company_id, doc_type, year)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id VARCHAR(36) PRIMARY KEY,
		event_type VARCHAR(100) NOT NULL,
		payload JSON NOT NULL,
		status VARCHAR(20) NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		processed_at DATETIME NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_outbox_status_created (status, created_at)
	)`,
}

// InitializeSchema creates all tables if they do not exist.
func InitializeSchema(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	start := time.Now()
	logger.Info("initializing schema", zap.Int("tables", len(schemaStatements)))

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	logger.Info("schema ready", zap.Duration("took", time.Since(start)))
	return nil
}
