package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by config structs that check their own invariants
// after parsing.
type Validator interface {
	Validate() error
}

var (
	dotenv sync.Once

	// cacheMu guards cache; Load holds it while parsing so one type is
	// never parsed twice concurrently.
	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}
)

// Parse reads environment variables into a new T without caching. Variables
// are looked up with prefix prepended to every env tag. If *T implements
// Validator, Validate runs after parsing. A .env file in the working
// directory is read once per process; a missing file is fine.
//
//	type StoreConfig struct {
//		Backend string `env:"BACKEND" envDefault:"memory"`
//	}
//
//	cfg, err := config.Parse[StoreConfig]("FSM_")
func Parse[T any](prefix string) (T, error) {
	dotenv.Do(func() { _ = godotenv.Load() })

	var v T
	if err := env.ParseWithOptions(&v, env.Options{Prefix: prefix}); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return v, errors.Join(ErrInvalidConfig, err)
		}
	}
	return v, nil
}

// Load fills v from unprefixed environment variables. The first successful
// parse of each type is cached for the life of the process; failures are
// not cached, so a later call can succeed once the environment is fixed.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	key := reflect.TypeFor[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}
	parsed, err := Parse[T]("")
	if err != nil {
		return err
	}
	cache[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is Load for required configuration; it panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: load %s: %v", reflect.TypeFor[T](), err))
	}
}

// Reset drops every cached value. Intended for tests.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	clear(cache)
}
