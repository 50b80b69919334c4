package model

import "time"

// ================ Config ================

type ServerConfig struct {
	Addr            string        `envconfig:"SERVER_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	BodyLimit       string        `envconfig:"SERVER_BODY_LIMIT" default:"25M"`
}

type LLMConfig struct {
	Provider      string `envconfig:"LLM_PROVIDER" default:"gemini"` // gemini | openai
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.2"`
}

type RefinerModelConfig struct {
	Model       string  `envconfig:"REFINER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"REFINER_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"REFINER_TEMPERATURE" default:"0.2"`
}

type AgentConfig struct {
	MaxIterations int           `envconfig:"AGENT_MAX_ITERATIONS" default:"5"`
	ToolTopK      int           `envconfig:"AGENT_TOOL_TOP_K" default:"5"`
	ChainTopK     int           `envconfig:"AGENT_CHAIN_TOP_K" default:"2"`
	TurnTimeout   time.Duration `envconfig:"AGENT_TURN_TIMEOUT" default:"90s"`
}

type KnowledgeConfig struct {
	SearchTimeout  time.Duration `envconfig:"KNOWLEDGE_SEARCH_TIMEOUT" default:"15s"`
	ToolBackend    string        `envconfig:"KNOWLEDGE_TOOL_BACKEND" default:"vector"` // vector | research
	EmbeddingModel string        `envconfig:"KNOWLEDGE_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	DrugMaster     string        `envconfig:"KNOWLEDGE_INDEX_DRUG_MASTER" default:"drugs_master"`
	Interactions   string        `envconfig:"KNOWLEDGE_INDEX_INTERACTIONS" default:"interactions"`
	Reimbursement  string        `envconfig:"KNOWLEDGE_INDEX_REIMBURSEMENT" default:"reimbursement"`
	Comparisons    string        `envconfig:"KNOWLEDGE_INDEX_COMPARISONS" default:"comparisons"`
	VectorField    string        `envconfig:"KNOWLEDGE_VECTOR_FIELD" default:"vector_content"`
	KeyPrefix      string        `envconfig:"KNOWLEDGE_KEY_PREFIX" default:"medbuddy"`
	EmbeddingDim   int           `envconfig:"KNOWLEDGE_EMBEDDING_DIM" default:"3072"`
	// ResearchRPS throttles calls to the public medical APIs.
	ResearchRPS float64 `envconfig:"KNOWLEDGE_RESEARCH_RPS" default:"4"`
}

type SessionConfig struct {
	Backend    string `envconfig:"SESSION_BACKEND" default:"memory"` // memory | redis
	MaxHistory int    `envconfig:"SESSION_MAX_HISTORY" default:"20"`
}

type AuditConfig struct {
	Backend string `envconfig:"AUDIT_BACKEND" default:"file"` // file | redis
	Path    string `envconfig:"AUDIT_PATH" default:"audit_log.jsonl"`
	Stream  string `envconfig:"AUDIT_STREAM" default:"medbuddy:audit"`
}

type SearchConfig struct {
	SerpAPIKey string        `envconfig:"SERPAPI_API_KEY"`
	BaseURL    string        `envconfig:"SERPAPI_BASE_URL" default:"https://serpapi.com"`
	Timeout    time.Duration `envconfig:"SERPAPI_TIMEOUT" default:"15s"`
	Results    int           `envconfig:"SERPAPI_RESULTS" default:"7"`
}

type TranscribeConfig struct {
	Model string `envconfig:"TRANSCRIBE_MODEL" default:"gemini-2.5-flash"`
}

// IngestConfig drives cmd/ingest. Files are resolved against DataDir.
type IngestConfig struct {
	DataDir      string `envconfig:"INGEST_DATA_DIR" default:"./data"`
	Fresh        bool   `envconfig:"INGEST_FRESH" default:"true"`
	ChunkSize    int    `envconfig:"INGEST_CHUNK_SIZE" default:"2000"`
	ChunkOverlap int    `envconfig:"INGEST_CHUNK_OVERLAP" default:"200"`
	BatchSize    int    `envconfig:"INGEST_BATCH_SIZE" default:"10"`

	// Watch keeps the process running and rebuilds a database when one of its files changes.
	Watch         bool          `envconfig:"INGEST_WATCH" default:"false"`
	WatchDebounce time.Duration `envconfig:"INGEST_WATCH_DEBOUNCE" default:"2s"`
}
