package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/contractflow/pkg/config"
)

// Storage backends selectable through FSM_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
)

// Config selects and tunes the lifecycle runtime.
type Config struct {
	Backend       string        `env:"BACKEND" envDefault:"memory"`     // Backend is one of memory, postgres, mongo or sqlite.
	HookTimeout   time.Duration `env:"HOOK_TIMEOUT" envDefault:"10s"`   // HookTimeout bounds each on_exit and on_enter hook. Zero disables the bound.
	SQLitePath    string        `env:"SQLITE_PATH"`                     // SQLitePath is the database file; empty means in-memory.
	MongoDatabase string        `env:"MONGO_DATABASE"`                  // MongoDatabase overrides MONGODB_DATABASE.
	LockEnabled   bool          `env:"LOCK_ENABLED" envDefault:"false"` // LockEnabled serialises transitions per entity through Redis.
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"30s"`       // LockTTL is how long a Redis entity lock lives without release.
	HashEvents    bool          `env:"HASH_EVENTS" envDefault:"true"`   // HashEvents attaches a SHA-256 hash to every audit event.
	NoticeBuffer  int           `env:"NOTICE_BUFFER" envDefault:"64"`   // NoticeBuffer is the per-subscriber queue for transition notices.
}

// ErrUnknownBackend is returned for an unsupported FSM_BACKEND value.
var ErrUnknownBackend = errors.New("lifecycle: unknown storage backend")

// Validate implements config.Validator.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendPostgres, BackendMongo, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.HookTimeout < 0 {
		return errors.New("lifecycle: FSM_HOOK_TIMEOUT must not be negative")
	}
	if c.LockEnabled && c.LockTTL <= 0 {
		return errors.New("lifecycle: FSM_LOCK_TTL must be positive when locking is enabled")
	}
	return nil
}

// LoadConfig reads Config from FSM_* environment variables.
func LoadConfig() (Config, error) {
	return config.Parse[Config]("FSM_")
}
