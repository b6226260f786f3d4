package directory

import "github.com/casehub/accesscore/pkg/migrations"

// Migrations returns the roster and domain-fact schema. Versions 1-19
// belong to this package.
func Migrations() []migrations.Migration {
	return []migrations.Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					role VARCHAR(32) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, email)
				);

				CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			`,
		},
		{
			Version:     2,
			Description: "Create program membership tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS program_members (
					program_id UUID NOT NULL,
					user_id UUID NOT NULL,
					added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (program_id, user_id)
				);

				CREATE TABLE IF NOT EXISTS program_facilitators (
					program_id UUID NOT NULL,
					user_id UUID NOT NULL,
					added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (program_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_program_members_user_id ON program_members(user_id);
				CREATE INDEX IF NOT EXISTS idx_program_facilitators_user_id ON program_facilitators(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create clients and client_shares tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS clients (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL,
					assigned_to UUID,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS client_shares (
					id UUID PRIMARY KEY,
					client_id UUID NOT NULL,
					shared_with UUID NOT NULL,
					shared_by UUID,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ,
					revoked_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_clients_assigned_to ON clients(assigned_to);
				CREATE INDEX IF NOT EXISTS idx_client_shares_client_id ON client_shares(client_id);
				CREATE INDEX IF NOT EXISTS idx_client_shares_shared_with ON client_shares(shared_with);
			`,
		},
		{
			Version:     4,
			Description: "Create program_enrollments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS program_enrollments (
					id UUID PRIMARY KEY,
					client_id UUID NOT NULL,
					program_id UUID NOT NULL,
					status VARCHAR(32) NOT NULL,
					enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(client_id, program_id)
				);

				CREATE INDEX IF NOT EXISTS idx_program_enrollments_client_id ON program_enrollments(client_id);
				CREATE INDEX IF NOT EXISTS idx_program_enrollments_status ON program_enrollments(status);
			`,
		},
		{
			Version:     5,
			Description: "Create settings_delegations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS settings_delegations (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL,
					user_id UUID NOT NULL,
					capability VARCHAR(64) NOT NULL,
					granted_by UUID,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ,
					UNIQUE(tenant_id, user_id, capability)
				);

				CREATE INDEX IF NOT EXISTS idx_settings_delegations_user_id ON settings_delegations(user_id);
				CREATE INDEX IF NOT EXISTS idx_settings_delegations_expires_at ON settings_delegations(expires_at);
			`,
		},
	}
}
