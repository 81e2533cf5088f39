package store

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CRAWL_RUN TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS crawl_run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project ON crawl_run TYPE string;
    DEFINE FIELD IF NOT EXISTS seed_url ON crawl_run TYPE string;
    DEFINE FIELD IF NOT EXISTS started_at ON crawl_run TYPE datetime;
    DEFINE FIELD IF NOT EXISTS completed_at ON crawl_run TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS total_pages ON crawl_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS successful_pages ON crawl_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS failed_pages ON crawl_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS is_active ON crawl_run TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS current_url ON crawl_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS queue_size ON crawl_run TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS error ON crawl_run TYPE option<string>;

    DEFINE INDEX IF NOT EXISTS crawl_run_project ON crawl_run FIELDS project;

    -- ==========================================================================
    -- PAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS page SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS run ON page TYPE record<crawl_run>;
    DEFINE FIELD IF NOT EXISTS project ON page TYPE string;
    DEFINE FIELD IF NOT EXISTS url ON page TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON page TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS h1 ON page TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS meta_description ON page TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS canonical_url ON page TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON page TYPE string;
    DEFINE FIELD IF NOT EXISTS crawled_at ON page TYPE datetime;
    DEFINE FIELD IF NOT EXISTS word_count ON page TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS crawl_depth ON page TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS parent_url ON page TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS internal_links ON page TYPE option<array<string>>;
    DEFINE FIELD IF NOT EXISTS outbound_links ON page TYPE option<array<string>>;
    DEFINE FIELD IF NOT EXISTS error_message ON page TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS metadata ON page TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS content ON page TYPE option<string>;

    DEFINE INDEX IF NOT EXISTS page_project ON page FIELDS project;
    DEFINE INDEX IF NOT EXISTS page_run ON page FIELDS run;
    DEFINE INDEX IF NOT EXISTS page_url ON page FIELDS run, url UNIQUE;

    -- ==========================================================================
    -- CHUNK TABLE (chunks keep their embeddings so indexes can be restored)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS chunk_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS project ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS page_url ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS page_title ON chunk TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS text ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS word_count ON chunk TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS position ON chunk TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS created_at ON chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_project ON chunk FIELDS project;
    DEFINE INDEX IF NOT EXISTS chunk_chunk_id ON chunk FIELDS project, chunk_id UNIQUE;

    -- ==========================================================================
    -- SCAN TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS scan SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS scan_id ON scan TYPE string;
    DEFINE FIELD IF NOT EXISTS project ON scan TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON scan TYPE string;
    DEFINE FIELD IF NOT EXISTS config ON scan TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS coverage_metrics ON scan TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS query_results ON scan TYPE option<array<object>>;
    REMOVE FIELD IF EXISTS query_results.* ON scan;
    DEFINE FIELD query_results.* ON scan TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS started_at ON scan TYPE datetime;
    DEFINE FIELD IF NOT EXISTS completed_at ON scan TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS error ON scan TYPE option<string>;

    DEFINE INDEX IF NOT EXISTS scan_project ON scan FIELDS project;
    DEFINE INDEX IF NOT EXISTS scan_scan_id ON scan FIELDS scan_id UNIQUE;

    -- ==========================================================================
    -- ACTION_PLAN TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS action_plan SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project ON action_plan TYPE string;
    DEFINE FIELD IF NOT EXISTS scan_id ON action_plan TYPE string;
    DEFINE FIELD IF NOT EXISTS generated_at ON action_plan TYPE datetime;
    DEFINE FIELD IF NOT EXISTS phases ON action_plan TYPE option<array<object>>;
    REMOVE FIELD IF EXISTS phases.* ON action_plan;
    DEFINE FIELD phases.* ON action_plan TYPE object FLEXIBLE;

    DEFINE INDEX IF NOT EXISTS action_plan_scan ON action_plan FIELDS scan_id UNIQUE;
`
