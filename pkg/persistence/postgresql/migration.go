package postgresql

// migrations returns the versioned schema migrations for the cadence tables.
// The (status, next_send_at) index backs due-selection, which is the hottest
// query in the system.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS workflow_steps (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_order INTEGER NOT NULL,
				delay_days INTEGER NOT NULL DEFAULT 0,
				send_time JSONB,
				channel TEXT NOT NULL,
				template JSONB,
				email JSONB,
				mappings JSONB NOT NULL DEFAULT '[]',
				UNIQUE (workflow_id, step_order)
			);

			CREATE TABLE IF NOT EXISTS contacts (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				company TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				properties JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS enrollments (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				contact_id UUID NOT NULL REFERENCES contacts(id),
				current_step INTEGER NOT NULL DEFAULT 1,
				status TEXT NOT NULL DEFAULT 'active',
				next_send_at TIMESTAMP WITH TIME ZONE NOT NULL,
				retry_count INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (workflow_id, contact_id)
			);

			CREATE INDEX IF NOT EXISTS idx_enrollments_due
				ON enrollments (status, next_send_at);

			CREATE TABLE IF NOT EXISTS channel_credentials (
				org_id TEXT NOT NULL,
				channel TEXT NOT NULL,
				config JSONB NOT NULL DEFAULT '{}',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (org_id, channel)
			);

			CREATE TABLE IF NOT EXISTS conversation_records (
				id UUID PRIMARY KEY,
				org_id TEXT NOT NULL,
				contact_id UUID NOT NULL,
				workflow_id UUID,
				enrollment_id UUID,
				channel TEXT NOT NULL,
				direction TEXT NOT NULL DEFAULT 'outbound',
				body TEXT NOT NULL DEFAULT '',
				provider_message_id TEXT NOT NULL DEFAULT '',
				sent_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_conversation_records_contact
				ON conversation_records (org_id, contact_id, sent_at);
		`,
	}
}
