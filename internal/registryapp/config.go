package registryapp

import (
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
)

// Config is the registry's environment-driven configuration. Unlike
// internal/app/config.go's hand-rolled utils.GetEnv calls, it is parsed in
// one shot with caarlos0/env, which the wider example pack already reaches
// for to get typed fields and defaults without writing a GetEnv* call per
// field; the log line on load keeps the teacher's "log what configuration
// we came up with" habit.
type Config struct {
	Port string `env:"PORT" envDefault:"8084"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:""`
	PostgresName     string `env:"POSTGRES_NAME" envDefault:"im2_registry"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	PauseFlagBacking string `env:"PAUSE_FLAG_BACKING" envDefault:"memory"`

	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// RequestTimeout bounds every outbound store and event-bus call (spec.md
	// §5): a store call that expires fails with jobserr.ErrUnavailable; an
	// expired publish is logged and dropped, like any other publish failure.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`

	// WorkerPollInterval is informational only (spec.md §4.7): it documents
	// the interval external worker pollers should use against
	// GET /api/jobs/candidates. The registry has no in-process worker loop
	// of its own to drive with it.
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
}

// LoadConfig parses Config from the environment and logs the result,
// matching internal/app/config.go's "load then log" shape.
func LoadConfig(log *logger.Logger) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	log.Info("registry configuration loaded",
		"port", cfg.Port,
		"postgres_host", cfg.PostgresHost,
		"postgres_name", cfg.PostgresName,
		"redis_addr", cfg.RedisAddr,
		"pause_flag_backing", cfg.PauseFlagBacking,
		"request_timeout", cfg.RequestTimeout,
		"worker_poll_interval", cfg.WorkerPollInterval,
	)
	return cfg, nil
}
