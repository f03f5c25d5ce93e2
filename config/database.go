package config

// DBConfig contains PostgreSQL configuration for the profile mirror.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"authd"`
	Password string `env:"PASSWORD" envDefault:"authd"`
	Name     string `env:"NAME"     envDefault:"authd"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	// Enabled controls whether the profile mirror is wired at all; the auth
	// core runs fine without a database.
	Enabled bool `env:"ENABLED" envDefault:"false"`

	// RunMigrationsOnStart applies embedded schema migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration for the session mirror and
// webhook dedup store.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// SessionKey overrides the well-known key the current session lives under.
	SessionKey string `env:"SESSION_KEY" envDefault:""`
}
