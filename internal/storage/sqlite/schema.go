package sqlite

const schema = `
-- Tasks table
-- List-valued fields and the recurrence rule are stored as JSON text
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in_progress', 'blocked', 'completed', 'cancelled')),
    priority TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('critical', 'high', 'medium', 'low')),
    due_date TEXT,
    estimated_effort_ns INTEGER NOT NULL DEFAULT 0 CHECK(estimated_effort_ns >= 0),
    dependencies TEXT NOT NULL DEFAULT '[]',
    goal_ids TEXT NOT NULL DEFAULT '[]',
    recurrence TEXT,
    milestones TEXT NOT NULL DEFAULT '[]',
    progress REAL NOT NULL DEFAULT 0 CHECK(progress >= 0 AND progress <= 1),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    completed_at TEXT,
    last_scored_at TEXT,
    series_id TEXT NOT NULL DEFAULT '',
    successor_id TEXT NOT NULL DEFAULT '',
    recurrence_state TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_series ON tasks(series_id);

-- Goals table
CREATE TABLE IF NOT EXISTS goals (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    description TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL CHECK(type IN ('personal', 'professional', 'learning', 'health', 'project')),
    target_date TEXT,
    task_ids TEXT NOT NULL DEFAULT '[]',
    milestones TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'achieved', 'behind', 'abandoned')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);

-- Config table
-- Key/value settings such as the persisted scoring preferences
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
