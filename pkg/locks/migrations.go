package locks

import "github.com/casehub/accesscore/pkg/migrations"

// Migrations returns the lock schema. Versions 30-39 belong to this
// package. The unique index on (resource_type, resource_id) is load
// bearing: it is what arbitrates concurrent acquisition.
func Migrations() []migrations.Migration {
	return []migrations.Migration{
		{
			Version:     30,
			Description: "Create resource_locks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resource_locks (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL,
					resource_type VARCHAR(64) NOT NULL,
					resource_id VARCHAR(255) NOT NULL,
					user_id UUID NOT NULL,
					acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ NOT NULL,
					UNIQUE(resource_type, resource_id)
				);

				CREATE INDEX IF NOT EXISTS idx_resource_locks_user_id ON resource_locks(user_id);
				CREATE INDEX IF NOT EXISTS idx_resource_locks_expires_at ON resource_locks(expires_at);
			`,
		},
	}
}
