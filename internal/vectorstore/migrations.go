package vectorstore

import "github.com/RealFaceCode/ContextBrain/internal/storage"

// Migrations is the schema history of the vector collection
var Migrations = []storage.Migration{
	{
		Version: "1.0.0",
		Up: `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    project TEXT NOT NULL DEFAULT '',
    document TEXT,
    metadata TEXT,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project);
`,
		Down: `DROP TABLE IF EXISTS documents;`,
	},
	{
		// Document ids are relative to their project, so the key includes it
		Version: "1.1.0",
		Up: `
CREATE TABLE documents_v11 (
    id TEXT NOT NULL,
    project TEXT NOT NULL DEFAULT '',
    document TEXT,
    metadata TEXT,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project, id)
);

INSERT INTO documents_v11 (id, project, document, metadata, embedding, dimension, created_at, updated_at)
SELECT id, project, document, metadata, embedding, dimension, created_at, updated_at FROM documents;

DROP TABLE documents;
ALTER TABLE documents_v11 RENAME TO documents;

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project);
CREATE INDEX IF NOT EXISTS idx_documents_id ON documents(id);
`,
		Down: `
CREATE TABLE documents_v10 (
    id TEXT PRIMARY KEY,
    project TEXT NOT NULL DEFAULT '',
    document TEXT,
    metadata TEXT,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

INSERT OR REPLACE INTO documents_v10 (id, project, document, metadata, embedding, dimension, created_at, updated_at)
SELECT id, project, document, metadata, embedding, dimension, created_at, updated_at FROM documents ORDER BY updated_at;

DROP TABLE documents;
ALTER TABLE documents_v10 RENAME TO documents;

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project);
`,
	},
}
