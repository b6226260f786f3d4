package locations

import "github.com/casehub/accesscore/pkg/migrations"

// Migrations returns the location schema. Versions 20-29 belong to this
// package.
func Migrations() []migrations.Migration {
	return []migrations.Migration{
		{
			Version:     20,
			Description: "Create locations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS locations (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					type VARCHAR(32) NOT NULL,
					parent_id UUID REFERENCES locations(id) ON DELETE SET NULL,
					code VARCHAR(64),
					address TEXT,
					timezone VARCHAR(64),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_locations_tenant_id ON locations(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_locations_parent_id ON locations(parent_id);
				CREATE INDEX IF NOT EXISTS idx_locations_is_active ON locations(is_active);
			`,
		},
		{
			Version:     21,
			Description: "Create location_access table",
			SQL: `
				CREATE TABLE IF NOT EXISTS location_access (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL,
					location_id UUID NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
					access_level VARCHAR(16) NOT NULL,
					granted_by UUID,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, location_id)
				);

				CREATE INDEX IF NOT EXISTS idx_location_access_user_id ON location_access(user_id);
				CREATE INDEX IF NOT EXISTS idx_location_access_location_id ON location_access(location_id);
			`,
		},
		{
			Version:     22,
			Description: "Create meetings table",
			SQL: `
				CREATE TABLE IF NOT EXISTS meetings (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL,
					created_by UUID NOT NULL,
					location_id UUID REFERENCES locations(id) ON DELETE SET NULL,
					title VARCHAR(255),
					starts_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_meetings_tenant_id ON meetings(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_meetings_location_id ON meetings(location_id);
			`,
		},
	}
}
