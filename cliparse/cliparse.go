package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/tally"
)

type Config struct {
	// Server
	Listen  string
	Prefix  string
	Workers int
	LogFile string

	// Database
	DatabaseURL  string
	DatabaseType db.Dialect

	// App
	AdminEmail         string
	EmailSuffix        string
	MaxTeamsPerCreator int
	CoinsToSpend       int64
	SelfVotePolicy     tally.Policy

	// Debug: used as identity when X-Email is missing
	UnsafeDefaultEmail string
}

// Defaults for optional settings.
const (
	DefaultListen             = "127.0.0.1:5591"
	DefaultWorkers            = 4
	DefaultMaxTeamsPerCreator = 1
	DefaultCoinsToSpend       = 100
)

// fileConfig mirrors the sections of the TOML config file.
type fileConfig struct {
	App struct {
		AdminEmail         string `mapstructure:"admin_email"`
		EmailSuffix        string `mapstructure:"email_suffix"`
		MaxTeamsPerCreator int    `mapstructure:"max_teams_per_creator"`
		CoinsToSpend       int64  `mapstructure:"coins_to_spend"`
		SelfVotePolicy     string `mapstructure:"self_vote_policy"`
	} `mapstructure:"app"`
	Debug struct {
		UnsafeDefaultEmail string `mapstructure:"unsafe_default_email"`
	} `mapstructure:"debug"`
	Server struct {
		Listen     string `mapstructure:"listen"`
		Prefix     string `mapstructure:"prefix"`
		NumThreads int    `mapstructure:"num_threads"`
		LogFile    string `mapstructure:"log_file"`
	} `mapstructure:"server"`
	Database struct {
		Path string `mapstructure:"path"`
		Type string `mapstructure:"type"`
	} `mapstructure:"database"`
}

// raw holds settings as strings until they are validated.
type raw struct {
	listen, prefix, workers, logFile string

	databaseURL, databaseType string

	adminEmail, emailSuffix string

	maxTeams, coins, policy, unsafeDefaultEmail string
}

// ParseFlags builds the configuration. Later sources override earlier ones:
// defaults, config file (-c or CONFIG_FILE), environment, flags.
func ParseFlags(args []string) (Config, error) {
	var fl raw
	var configFile string

	fs := flag.NewFlagSet("hack-o-matic", flag.ContinueOnError)

	fs.StringVar(&configFile, "c", "", "Path to TOML config file")

	// Network config (can be CLI args or env)
	fs.StringVar(&fl.listen, "l", "", "Listen address, e.g. 127.0.0.1:5591")
	fs.StringVar(&fl.prefix, "prefix", "", "URL prefix, e.g. /hack-o-matic")
	fs.StringVar(&fl.workers, "w", "", "Number of database sessions")
	fs.StringVar(&fl.logFile, "log-file", "", "Write logs to this file (rotated)")
	fs.StringVar(&fl.databaseURL, "d", "", "Database path (sqlite) or URL (postgres)")
	fs.StringVar(&fl.databaseType, "t", "", "Database type (sqlite or postgres)")

	// App settings
	fs.StringVar(&fl.adminEmail, "admin-email", "", "Email of the administrator")
	fs.StringVar(&fl.emailSuffix, "email-suffix", "", "Suffix removed from emails in listings")
	fs.StringVar(&fl.maxTeams, "max-teams", "", "Maximum teams per creator")
	fs.StringVar(&fl.coins, "coins", "", "Coins every voter can spend")
	fs.StringVar(&fl.policy, "self-vote-policy", "", "Self-vote handling (zero or flip)")
	fs.StringVar(&fl.unsafeDefaultEmail, "unsafe-default-email", "", "Identity when X-Email is missing (development only)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	settings := raw{
		listen:   DefaultListen,
		workers:  strconv.Itoa(DefaultWorkers),
		maxTeams: strconv.Itoa(DefaultMaxTeamsPerCreator),
		coins:    strconv.Itoa(DefaultCoinsToSpend),
	}

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := loadFile(configFile, &settings); err != nil {
			return Config{}, err
		}
	}

	// Fall back to environment variables
	for env, dst := range map[string]*string{
		"LISTEN":                &settings.listen,
		"URL_PREFIX":            &settings.prefix,
		"WORKERS":               &settings.workers,
		"LOG_FILE":              &settings.logFile,
		"DATABASE_URL":          &settings.databaseURL,
		"DATABASE_TYPE":         &settings.databaseType,
		"ADMIN_EMAIL":           &settings.adminEmail,
		"EMAIL_SUFFIX":          &settings.emailSuffix,
		"MAX_TEAMS_PER_CREATOR": &settings.maxTeams,
		"COINS_TO_SPEND":        &settings.coins,
		"SELF_VOTE_POLICY":      &settings.policy,
		"UNSAFE_DEFAULT_EMAIL":  &settings.unsafeDefaultEmail,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	// CLI flags take precedence
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "l":
			settings.listen = fl.listen
		case "prefix":
			settings.prefix = fl.prefix
		case "w":
			settings.workers = fl.workers
		case "log-file":
			settings.logFile = fl.logFile
		case "d":
			settings.databaseURL = fl.databaseURL
		case "t":
			settings.databaseType = fl.databaseType
		case "admin-email":
			settings.adminEmail = fl.adminEmail
		case "email-suffix":
			settings.emailSuffix = fl.emailSuffix
		case "max-teams":
			settings.maxTeams = fl.maxTeams
		case "coins":
			settings.coins = fl.coins
		case "self-vote-policy":
			settings.policy = fl.policy
		case "unsafe-default-email":
			settings.unsafeDefaultEmail = fl.unsafeDefaultEmail
		}
	})

	return settings.validate()
}

// loadFile reads the TOML config file into settings. Keys missing from the
// file keep their current value.
func loadFile(path string, settings *raw) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	set := func(dst *string, key, value string) {
		if v.IsSet(key) {
			*dst = value
		}
	}
	set(&settings.listen, "server.listen", fc.Server.Listen)
	set(&settings.prefix, "server.prefix", fc.Server.Prefix)
	set(&settings.workers, "server.num_threads", strconv.Itoa(fc.Server.NumThreads))
	set(&settings.logFile, "server.log_file", fc.Server.LogFile)
	set(&settings.databaseURL, "database.path", fc.Database.Path)
	set(&settings.databaseType, "database.type", fc.Database.Type)
	set(&settings.adminEmail, "app.admin_email", fc.App.AdminEmail)
	set(&settings.emailSuffix, "app.email_suffix", fc.App.EmailSuffix)
	set(&settings.maxTeams, "app.max_teams_per_creator", strconv.Itoa(fc.App.MaxTeamsPerCreator))
	set(&settings.coins, "app.coins_to_spend", strconv.FormatInt(fc.App.CoinsToSpend, 10))
	set(&settings.policy, "app.self_vote_policy", fc.App.SelfVotePolicy)
	set(&settings.unsafeDefaultEmail, "debug.unsafe_default_email", fc.Debug.UnsafeDefaultEmail)
	return nil
}

func (r raw) validate() (Config, error) {
	cfg := Config{
		Listen:             r.listen,
		LogFile:            r.logFile,
		DatabaseURL:        r.databaseURL,
		AdminEmail:         strings.TrimSpace(r.adminEmail),
		EmailSuffix:        r.emailSuffix,
		UnsafeDefaultEmail: strings.TrimSpace(r.unsafeDefaultEmail),
	}

	var err error
	if cfg.Prefix, err = normalizePrefix(r.prefix); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = strconv.Atoi(r.workers); err != nil || cfg.Workers < 1 {
		return Config{}, fmt.Errorf("invalid number of workers %q", r.workers)
	}
	if cfg.MaxTeamsPerCreator, err = strconv.Atoi(r.maxTeams); err != nil || cfg.MaxTeamsPerCreator < 0 {
		return Config{}, fmt.Errorf("invalid max teams per creator %q", r.maxTeams)
	}
	if cfg.CoinsToSpend, err = strconv.ParseInt(r.coins, 10, 64); err != nil || cfg.CoinsToSpend < 0 {
		return Config{}, fmt.Errorf("invalid coins to spend %q", r.coins)
	}
	if cfg.DatabaseType, err = db.ParseDialect(r.databaseType); err != nil {
		return Config{}, err
	}
	if cfg.SelfVotePolicy, err = tally.ParsePolicy(r.policy); err != nil {
		return Config{}, err
	}

	if cfg.Listen == "" {
		return Config{}, errors.New("listen address required (use -l or LISTEN env)")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.AdminEmail == "" {
		return Config{}, errors.New("admin email required (use -admin-email or ADMIN_EMAIL env)")
	}

	return cfg, nil
}

// normalizePrefix turns "hack-o-matic/" into "/hack-o-matic". The root is "".
func normalizePrefix(prefix string) (string, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "", nil
	}
	if strings.ContainsAny(prefix, " {}?#") {
		return "", fmt.Errorf("invalid URL prefix %q", prefix)
	}
	return "/" + prefix, nil
}
