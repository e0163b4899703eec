package history

// Schema stores one row per conversion attempt plus a search index over the
// fields the web UI queries. Output bytes live on disk, not in the database.
const schema = `
-- Batches group the conversions produced by one directory or mbox run
CREATE TABLE IF NOT EXISTS batches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    root_path TEXT NOT NULL,
    mode TEXT NOT NULL DEFAULT 'dir',  -- 'dir' or 'mbox'
    total_found INTEGER DEFAULT 0,
    converted INTEGER DEFAULT 0,
    skipped INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

-- One row per conversion attempt, successful or not
CREATE TABLE IF NOT EXISTS conversions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_path TEXT NOT NULL,
    source_sha256 TEXT NOT NULL,
    output_path TEXT,               -- relative to the configured output directory
    subject TEXT,
    sender TEXT,
    message_date DATETIME,
    status TEXT NOT NULL DEFAULT 'converted',
    error TEXT,
    problems TEXT,                  -- newline-separated recovery notes
    attachment_paths TEXT,          -- newline-separated relative paths
    duration_ms INTEGER DEFAULT 0,
    attachment_count INTEGER DEFAULT 0,
    output_size INTEGER DEFAULT 0,
    batch_id INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY(batch_id) REFERENCES batches(id) ON DELETE SET NULL
);

-- Full-text search virtual table
CREATE VIRTUAL TABLE IF NOT EXISTS conversions_fts USING fts5(
    subject,
    sender,
    source_path,
    content='conversions',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS conversions_ai AFTER INSERT ON conversions BEGIN
    INSERT INTO conversions_fts(rowid, subject, sender, source_path)
    VALUES (new.id, new.subject, new.sender, new.source_path);
END;

CREATE TRIGGER IF NOT EXISTS conversions_ad AFTER DELETE ON conversions BEGIN
    DELETE FROM conversions_fts WHERE rowid = old.id;
END;

CREATE TRIGGER IF NOT EXISTS conversions_au AFTER UPDATE ON conversions BEGIN
    UPDATE conversions_fts
    SET subject = new.subject,
        sender = new.sender,
        source_path = new.source_path
    WHERE rowid = new.id;
END;

-- Indexes for performance
CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversions_sender ON conversions(sender);
CREATE INDEX IF NOT EXISTS idx_conversions_sha256 ON conversions(source_sha256);
CREATE INDEX IF NOT EXISTS idx_conversions_batch_id ON conversions(batch_id);
CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at DESC);
`
