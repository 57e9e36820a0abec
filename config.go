package kvsafe

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// ByteSize is a size in bytes. In config files it accepts human sizes such
// as "64MiB" or "1g" (binary multiples).
type ByteSize int64

func (s ByteSize) String() string {
	return units.BytesSize(float64(s))
}

func (s ByteSize) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ByteSize) UnmarshalText(text []byte) error {
	n, err := units.RAMInBytes(strings.TrimSpace(string(text)))
	if err != nil {
		return &Error{Code: ErrConfiguration, Op: "config", Message: "invalid size", Err: err}
	}
	*s = ByteSize(n)
	return nil
}

// Config describes an environment to open.
type Config struct {
	// Path is the environment directory, or the data file with NoSubdir.
	Path string `toml:"path"`

	// MaxSize is the maximum size of the data file. Zero means
	// DefaultMapSize. It is rounded up to a multiple of the OS page size.
	MaxSize ByteSize `toml:"max-size"`

	// MaxDatabases is the number of named databases the environment may
	// hold. Zero allows only the default database.
	MaxDatabases int `toml:"max-databases"`

	// MaxReaders is the number of concurrent read transactions. Zero means
	// DefaultMaxReaders.
	MaxReaders int `toml:"max-readers"`

	Flags EnvFlags    `toml:"flags"`
	Mode  os.FileMode `toml:"mode"`

	// Engine selects the storage engine: "mdbx" (cgo builds) or "bolt".
	// Empty picks mdbx when available.
	Engine string `toml:"engine"`

	Logger     *zap.Logger           `toml:"-"`
	Registerer prometheus.Registerer `toml:"-"`
}

// DefaultConfig returns a Config for path with default limits.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		MaxSize:    DefaultMapSize,
		MaxReaders: DefaultMaxReaders,
		Mode:       0o644,
	}
}

// LoadConfig reads a TOML config file. Keys that do not map to a Config
// field are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig("")
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, &Error{Code: ErrConfiguration, Op: "load-config", Message: path, Err: err}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, newError(ErrConfiguration, "load-config", "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks c and fills zero fields with their defaults.
func (c *Config) Validate() error {
	if c.Path == "" {
		return newError(ErrConfiguration, "config", "path is empty")
	}
	if c.Engine == "" {
		c.Engine = defaultEngine()
	}
	if _, ok := engine.Lookup(c.Engine); !ok {
		return newError(ErrConfiguration, "config", "unknown engine %q (have %s)", c.Engine, strings.Join(engine.Drivers(), ", "))
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMapSize
	}
	if c.MaxSize < MinMapSize {
		return newError(ErrConfiguration, "config", "max size %s is below the minimum %s", c.MaxSize, ByteSize(MinMapSize))
	}
	if ps := ByteSize(pageSize()); c.MaxSize%ps != 0 {
		c.MaxSize += ps - c.MaxSize%ps
	}
	if c.MaxDatabases < 0 || c.MaxDatabases > MaxDatabasesLimit {
		return newError(ErrConfiguration, "config", "max databases %d out of range [0, %d]", c.MaxDatabases, MaxDatabasesLimit)
	}
	if c.MaxReaders < 0 {
		return newError(ErrConfiguration, "config", "max readers %d is negative", c.MaxReaders)
	}
	if c.MaxReaders == 0 {
		c.MaxReaders = DefaultMaxReaders
	}
	if rest := c.Flags &^ allEnvFlags; rest != 0 {
		return newError(ErrConfiguration, "config", "unsupported flags %s", rest)
	}
	if c.Mode == 0 {
		c.Mode = 0o644
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// defaultEngine prefers mdbx and falls back to bolt.
func defaultEngine() string {
	if _, ok := engine.Lookup("mdbx"); ok {
		return "mdbx"
	}
	return "bolt"
}
