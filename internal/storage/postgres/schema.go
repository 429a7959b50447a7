package postgres

// Schema is the base schema for the concepts table. All statements are
// idempotent so it can be applied on every startup.
//
// "references" is a reserved word and must stay quoted everywhere.
const Schema = `
CREATE TABLE IF NOT EXISTS concepts (
	id                      BIGSERIAL PRIMARY KEY,
	problem_statement       TEXT NOT NULL,
	agent                   VARCHAR(100),
	title                   VARCHAR(255) NOT NULL,
	description             TEXT,
	novelty_reasoning       TEXT,
	feasibility_reasoning   TEXT,
	cost_estimate           TEXT,
	trl                     DOUBLE PRECISION,
	trl_reasoning           TEXT,
	trl_citations           JSONB,
	validated_trl           DOUBLE PRECISION,
	validated_trl_reasoning TEXT,
	validated_trl_citations JSONB,
	components              JSONB,
	"references"            JSONB,
	constructive_critique   TEXT,
	industry                TEXT,
	original_solution       TEXT,
	adaptation_challenges   TEXT,
	proposal_url            VARCHAR(512),
	generated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_concepts_problem_statement ON concepts (problem_statement);
CREATE INDEX IF NOT EXISTS idx_concepts_generated_at ON concepts (generated_at);

CREATE TABLE IF NOT EXISTS statement_embeddings (
	statement_hash CHAR(64)  NOT NULL,
	model          TEXT      NOT NULL,
	embedding      BYTEA     NOT NULL,
	dimension      INTEGER   NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (statement_hash, model)
);
`

// MigrationPgvector adds a native vector column to the embedding cache for
// cosine-distance queries. Applied only when the pgvector extension is
// available.
const MigrationPgvector = `
ALTER TABLE statement_embeddings ADD COLUMN IF NOT EXISTS embedding_vec vector;
`
