package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions; the engine only writes the metric columns
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(255) NOT NULL DEFAULT '',
				steps JSONB,
				template_config JSONB,
				workflow_config JSONB,
				connections JSONB,
				is_active BOOLEAN NOT NULL DEFAULT false,
				status VARCHAR(50) NOT NULL DEFAULT 'draft',
				execution_count BIGINT NOT NULL DEFAULT 0,
				success_count BIGINT NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				last_triggered_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);
			CREATE INDEX idx_workflows_trigger_type ON workflows(trigger_type);

			CREATE TABLE execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				automation_id VARCHAR(255),
				organization_id VARCHAR(255),
				trigger_type VARCHAR(255) NOT NULL DEFAULT '',
				trigger_data JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'waiting', 'completed', 'failed', 'skipped', 'expired')),
				error_message TEXT,
				details JSONB NOT NULL DEFAULT '{}',
				resume_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_execution_logs_status_created_at ON execution_logs(status, created_at);
			CREATE INDEX idx_execution_logs_workflow_id ON execution_logs(workflow_id);
			CREATE INDEX idx_execution_logs_resume_at ON execution_logs(resume_at) WHERE status = 'waiting';

			CREATE TABLE notifications (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255),
				title TEXT NOT NULL,
				message TEXT NOT NULL,
				entity_type VARCHAR(50),
				entity_id VARCHAR(255),
				read BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_notifications_user_id ON notifications(user_id);
		`,
		2: `
			-- CRM tables owned by the data layer; created here only when missing
			CREATE TABLE IF NOT EXISTS clients (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255),
				name VARCHAR(255) NOT NULL DEFAULT '',
				first_name VARCHAR(255),
				last_name VARCHAR(255),
				email VARCHAR(255),
				phone VARCHAR(50),
				address TEXT
			);

			CREATE TABLE IF NOT EXISTS jobs (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255),
				number VARCHAR(100),
				title VARCHAR(255),
				status VARCHAR(50),
				job_type VARCHAR(100),
				description TEXT,
				address TEXT,
				client_id VARCHAR(255),
				scheduled_start TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE IF NOT EXISTS invoices (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255),
				number VARCHAR(100),
				status VARCHAR(50),
				total NUMERIC(12, 2) NOT NULL DEFAULT 0,
				due_date TIMESTAMP WITH TIME ZONE,
				client_id VARCHAR(255),
				job_id VARCHAR(255)
			);

			CREATE TABLE IF NOT EXISTS tasks (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255),
				title VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(50),
				due_at TIMESTAMP WITH TIME ZONE,
				job_id VARCHAR(255),
				client_id VARCHAR(255),
				created_by_workflow VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS companies (
				organization_id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(50),
				email VARCHAR(255),
				address TEXT,
				website VARCHAR(255),
				owner_user_id VARCHAR(255),
				timezone VARCHAR(64)
			);
		`,
	}
}
