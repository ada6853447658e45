// ABOUTME: Centralized configuration for the recall memory core
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Fixed file and directory names inside the data root. These are layout,
// not policy, and are deliberately not configurable.
const (
	DailyDirName    = "daily"
	SessionsFile    = "sessions.jsonl"
	IndexFile       = "index.sqlite"
	MemoryDoc       = "MEMORY.md"
	StateDirName    = "session_state"
	AuditDirName    = "audit"
	BackupsDirName  = "backups"
	TypesFile       = "types.json"
	DisableMarker   = ".memory-disable"
	LedgerLockName  = ".sessions.lock"
	ManageLockName  = ".manage.lock"
	AuditOpsFile    = "operations.jsonl"
	DefaultDataName = ".recall"
)

// Config holds all tunables the core reads. It is computed once at process
// entry and passed down explicitly; there is no process-wide singleton.
type Config struct {
	// DataDir is the resolved per-project data root.
	DataDir string

	// Decay-based context loading.
	LoadDaysFull        int     // facts this recent are all loaded
	LoadDaysPartial     int     // older facts capped per calendar day
	LoadDaysMax         int     // anything older is dropped
	PartialPerDay       int     // cap within the partial window
	ImportantConfidence float64 // floor for the long-window tier
	FactsLimit          int     // overall item cap

	// Index chunking.
	ChunkTokens  int
	ChunkOverlap int

	// Hybrid search weights. Both signals are normalized into [0,1] before
	// these are applied.
	FTSWeight    float64
	VectorWeight float64

	// Cross-process locking.
	LockTimeout time.Duration

	// Session maintenance.
	SessionsKeep      int // sessions.jsonl cap, oldest truncated
	StateRetainDays   int // session_state files older than this are removed
	BackupRetainDays  int
	AutoCleanupDays   int
	DailyWriteWarning int // doctor flags days with more entries than this

	// Embedding provider (optional).
	OpenAIKey      string
	EmbeddingModel string
	EmbedTimeout   time.Duration
	EmbedRetries   int
	EmbedBaseDelay time.Duration
}

// Load resolves the data root and reads tunables from the environment.
// projectPath anchors the default data root; RECALL_DATA_DIR overrides it.
func Load(projectPath string) (*Config, error) {
	dataDir := os.Getenv("RECALL_DATA_DIR")
	if dataDir == "" {
		if projectPath == "" {
			projectPath = "."
		}
		dataDir = filepath.Join(projectPath, DefaultDataName)
	}

	cfg := &Config{
		DataDir:             dataDir,
		LoadDaysFull:        getEnvInt("RECALL_LOAD_DAYS_FULL", 2),
		LoadDaysPartial:     getEnvInt("RECALL_LOAD_DAYS_PARTIAL", 5),
		LoadDaysMax:         getEnvInt("RECALL_LOAD_DAYS_MAX", 7),
		PartialPerDay:       getEnvInt("RECALL_PARTIAL_PER_DAY", 3),
		ImportantConfidence: getEnvFloat("RECALL_IMPORTANT_CONFIDENCE", 0.9),
		FactsLimit:          getEnvInt("RECALL_FACTS_LIMIT", 15),
		ChunkTokens:         getEnvInt("RECALL_CHUNK_TOKENS", 400),
		ChunkOverlap:        getEnvInt("RECALL_CHUNK_OVERLAP", 80),
		FTSWeight:           getEnvFloat("RECALL_FTS_WEIGHT", 0.4),
		VectorWeight:        getEnvFloat("RECALL_VECTOR_WEIGHT", 0.6),
		LockTimeout:         getEnvDuration("RECALL_LOCK_TIMEOUT", 5*time.Second),
		SessionsKeep:        getEnvInt("RECALL_SESSIONS_KEEP", 500),
		StateRetainDays:     getEnvInt("RECALL_STATE_RETAIN_DAYS", 7),
		BackupRetainDays:    getEnvInt("RECALL_BACKUP_RETAIN_DAYS", 30),
		AutoCleanupDays:     getEnvInt("RECALL_AUTO_CLEANUP_DAYS", 90),
		DailyWriteWarning:   getEnvInt("RECALL_DAILY_WRITE_WARNING", 100),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel:      getEnv("RECALL_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbedTimeout:        getEnvDuration("RECALL_EMBED_TIMEOUT", 30*time.Second),
		EmbedRetries:        getEnvInt("RECALL_EMBED_RETRIES", 3),
		EmbedBaseDelay:      getEnvDuration("RECALL_EMBED_RETRY_DELAY", 2*time.Second),
	}

	return cfg, cfg.Validate()
}

// Validate rejects values that would corrupt ranking or decay behavior and
// repairs window ordering the way the original tooling does.
func (c *Config) Validate() error {
	if c.ImportantConfidence < 0 || c.ImportantConfidence > 1 {
		return fmt.Errorf("RECALL_IMPORTANT_CONFIDENCE must be 0-1, got %f", c.ImportantConfidence)
	}
	if c.FTSWeight < 0 || c.VectorWeight < 0 || c.FTSWeight+c.VectorWeight == 0 {
		return fmt.Errorf("search weights must be non-negative and not both zero, got fts=%f vector=%f", c.FTSWeight, c.VectorWeight)
	}
	if c.LoadDaysFull < 1 {
		c.LoadDaysFull = 1
	}
	if c.LoadDaysPartial <= c.LoadDaysFull {
		c.LoadDaysPartial = c.LoadDaysFull + 3
	}
	if c.LoadDaysMax <= c.LoadDaysPartial {
		c.LoadDaysMax = c.LoadDaysPartial + 2
	}
	if c.ChunkTokens < 50 {
		return fmt.Errorf("RECALL_CHUNK_TOKENS must be >= 50, got %d", c.ChunkTokens)
	}
	if c.ChunkOverlap >= c.ChunkTokens {
		c.ChunkOverlap = c.ChunkTokens / 5
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("RECALL_LOCK_TIMEOUT must be positive, got %v", c.LockTimeout)
	}
	return nil
}

// Disabled reports whether the disable marker is present. Its presence makes
// every operation a no-op success.
func (c *Config) Disabled() bool {
	_, err := os.Stat(filepath.Join(c.DataDir, DisableMarker))
	return err == nil
}

// Path helpers. All derived from DataDir so tests can point the whole core
// at a temp directory.

func (c *Config) DailyDir() string     { return filepath.Join(c.DataDir, DailyDirName) }
func (c *Config) SessionsPath() string { return filepath.Join(c.DataDir, SessionsFile) }
func (c *Config) IndexPath() string    { return filepath.Join(c.DataDir, IndexFile) }
func (c *Config) MemoryDocPath() string {
	return filepath.Join(c.DataDir, MemoryDoc)
}
func (c *Config) StateDir() string   { return filepath.Join(c.DataDir, StateDirName) }
func (c *Config) AuditDir() string   { return filepath.Join(c.DataDir, AuditDirName) }
func (c *Config) BackupsDir() string { return filepath.Join(c.DataDir, BackupsDirName) }
func (c *Config) TypesPath() string  { return filepath.Join(c.DataDir, TypesFile) }
func (c *Config) LedgerLockPath() string {
	return filepath.Join(c.DataDir, LedgerLockName)
}
func (c *Config) ManageLockPath() string {
	return filepath.Join(c.DataDir, ManageLockName)
}
func (c *Config) SessionLockPath(sessionID string) string {
	return filepath.Join(c.StateDir(), "."+sessionID+".lock")
}
func (c *Config) SessionStatePath(sessionID string) string {
	return filepath.Join(c.StateDir(), sessionID+".json")
}
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.AuditDir(), AuditOpsFile)
}

// Helper functions

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
