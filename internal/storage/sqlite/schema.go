package sqlite

const schemaSQL = `
-- Citation graph nodes. Placeholder rows carry only the paper_id until
-- their own crawl fills in the metadata.
CREATE TABLE IF NOT EXISTS papers (
	paper_id TEXT PRIMARY KEY CHECK (length(paper_id) <= 255),
	title TEXT NOT NULL DEFAULT '',
	abstract TEXT NOT NULL DEFAULT '',
	year INTEGER CHECK (year IS NULL OR (year >= 1900 AND year <= 2100)),
	citation_count INTEGER NOT NULL DEFAULT 0 CHECK (citation_count >= 0),
	reference_count INTEGER NOT NULL DEFAULT 0 CHECK (reference_count >= 0),
	influence_score REAL,
	is_open_access INTEGER NOT NULL DEFAULT 0,
	language TEXT NOT NULL DEFAULT '',
	venue_id INTEGER REFERENCES venues(id),
	journal_id INTEGER REFERENCES journals(id),
	pdf_url TEXT NOT NULL DEFAULT '',
	pdf_hash TEXT NOT NULL DEFAULT '',
	pdf_size INTEGER NOT NULL DEFAULT 0 CHECK (pdf_size >= 0),
	summary TEXT NOT NULL DEFAULT '',
	summary_model TEXT NOT NULL DEFAULT '',
	summary_created_at INTEGER,
	crawl_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (crawl_status IN ('pending','running','completed','failed')),
	pdf_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (pdf_status IN ('pending','running','completed','failed','unavailable')),
	summary_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (summary_status IN ('pending','running','completed','failed')),
	last_crawled_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_papers_crawl_status ON papers(crawl_status, created_at);
CREATE INDEX IF NOT EXISTS idx_papers_summary_status ON papers(summary_status, created_at);
CREATE INDEX IF NOT EXISTS idx_papers_citations ON papers(citation_count DESC);
CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(year);

CREATE TABLE IF NOT EXISTS authors (
	author_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	paper_count INTEGER NOT NULL DEFAULT 0 CHECK (paper_count >= 0),
	citation_count INTEGER NOT NULL DEFAULT 0 CHECK (citation_count >= 0),
	h_index INTEGER NOT NULL DEFAULT 0 CHECK (h_index >= 0),
	orcid TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

-- Byline ordering preserved via position
CREATE TABLE IF NOT EXISTS paper_authors (
	paper_id TEXT NOT NULL REFERENCES papers(paper_id),
	author_id TEXT NOT NULL REFERENCES authors(author_id),
	position INTEGER NOT NULL DEFAULT 0 CHECK (position >= 0),
	PRIMARY KEY (paper_id, author_id)
);

CREATE INDEX IF NOT EXISTS idx_paper_authors_author ON paper_authors(author_id);

-- Directed citation edges. hop_count records the minimum distance from
-- the seed observed across insertions.
CREATE TABLE IF NOT EXISTS paper_relations (
	source_paper_id TEXT NOT NULL REFERENCES papers(paper_id),
	target_paper_id TEXT NOT NULL REFERENCES papers(paper_id),
	relation_type TEXT NOT NULL CHECK (relation_type IN ('citation','reference')),
	hop_count INTEGER NOT NULL CHECK (hop_count >= 1),
	confidence REAL,
	relevance REAL,
	PRIMARY KEY (source_paper_id, target_paper_id, relation_type),
	CHECK (source_paper_id <> target_paper_id)
);

CREATE INDEX IF NOT EXISTS idx_relations_target ON paper_relations(target_paper_id, relation_type);

CREATE TABLE IF NOT EXISTS external_ids (
	paper_id TEXT NOT NULL REFERENCES papers(paper_id),
	id_type TEXT NOT NULL,
	external_id TEXT NOT NULL,
	PRIMARY KEY (paper_id, id_type, external_id)
);

CREATE TABLE IF NOT EXISTS keywords (
	paper_id TEXT NOT NULL REFERENCES papers(paper_id),
	keyword TEXT NOT NULL,
	relevance REAL NOT NULL DEFAULT 0,
	method TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (paper_id, keyword)
);

CREATE TABLE IF NOT EXISTS venues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS journals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

-- Durable per-stage work queue. This table is authoritative; broker
-- messages are wake-up hints only.
CREATE TABLE IF NOT EXISTS processing_queue (
	id TEXT PRIMARY KEY,
	paper_id TEXT NOT NULL REFERENCES papers(paper_id),
	task_type TEXT NOT NULL CHECK (task_type IN ('crawl','summarize','generate')),
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending','running','completed','failed')),
	priority INTEGER NOT NULL DEFAULT 0 CHECK (priority >= 0),
	retry_count INTEGER NOT NULL DEFAULT 0 CHECK (retry_count >= 0),
	max_retries INTEGER NOT NULL DEFAULT 3 CHECK (max_retries >= 0),
	error_message TEXT NOT NULL DEFAULT '',
	worker_id TEXT NOT NULL DEFAULT '',
	parameters TEXT,
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER
);

-- At most one pending and one running row per (paper, stage)
CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_nonterminal
	ON processing_queue(paper_id, task_type, status)
	WHERE status IN ('pending','running');

-- Claim ordering: priority desc, FIFO within priority
CREATE INDEX IF NOT EXISTS idx_queue_claim
	ON processing_queue(task_type, status, priority DESC, created_at ASC);

CREATE INDEX IF NOT EXISTS idx_queue_started ON processing_queue(status, started_at);
CREATE INDEX IF NOT EXISTS idx_queue_completed ON processing_queue(status, completed_at);
`

// InitSchema initializes the database schema
func (s *SQLiteDB) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return err
	}
	s.logger.Debug().Msg("Database schema initialized")
	return nil
}
