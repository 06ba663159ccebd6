package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "vendor-bootstrap"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultBaseURL        = "https://dev.v.shipgl.in"
	defaultValidEmail     = "qa.vendor@example.com"
	defaultValidPassword  = "Vendor@12345"
	defaultFirstName      = "QA"
	defaultLastName       = "Vendor"
	defaultMobile         = "9876543210"
	defaultSessionStore   = "file"
	defaultSessionFile    = "test_sessions/test_session.json"
	defaultSessionKey     = "vendor-bootstrap:session"
	defaultHeavyModules   = "orders"
	defaultDBPort         = 5432
	defaultDBSSLMode      = "disable"
	defaultShutdownDelay  = 10 * time.Second
	defaultUIWait         = 8 * time.Second
	defaultSettleWait     = 4 * time.Second
	defaultNavigationWait = 15 * time.Second
)

// Config captures runtime configuration for the bootstrap CLI and the stub portal.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	BaseURL       string
	ValidEmail    string
	ValidPassword string
	Signup        SignupProfile

	Database DatabaseConfig

	SessionStore string
	SessionFile  string
	SessionKey   string
	RedisURL     string

	HeavyModules    []string
	AgreementStrict bool

	Browser BrowserConfig

	PortalSessionSecret string
	ShutdownPeriod      time.Duration
}

// SignupProfile holds the non-credential fields of the vendor signup form.
type SignupProfile struct {
	FirstName string
	LastName  string
	Mobile    string
}

// DatabaseConfig describes the connection to the vendor datastore. URL wins
// over the discrete fields when set.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// BrowserConfig carries the browser launch options and wait bounds.
type BrowserConfig struct {
	Headless          bool
	Bin               string
	DebuggerURL       string
	UIWait            time.Duration
	SettleWait        time.Duration
	NavigationTimeout time.Duration
}

// Load reads configuration values from an optional .env file and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:       getEnv("APP_NAME", defaultAppName),
		AppEnv:        getEnv("APP_ENV", defaultAppEnv),
		Port:          getEnv("PORT", defaultPort),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		BaseURL:       strings.TrimRight(getEnv("BASE_URL", defaultBaseURL), "/"),
		ValidEmail:    getEnv("VALID_EMAIL", defaultValidEmail),
		ValidPassword: getEnv("VALID_PASSWORD", defaultValidPassword),
		Signup: SignupProfile{
			FirstName: getEnv("SIGNUP_FIRST_NAME", defaultFirstName),
			LastName:  getEnv("SIGNUP_LAST_NAME", defaultLastName),
			Mobile:    getEnv("SIGNUP_MOBILE", defaultMobile),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     os.Getenv("DB_HOST"),
			Port:     defaultDBPort,
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", defaultDBSSLMode),
		},
		SessionStore:        strings.ToLower(getEnv("SESSION_STORE", defaultSessionStore)),
		SessionFile:         getEnv("SESSION_FILE", defaultSessionFile),
		SessionKey:          getEnv("SESSION_KEY", defaultSessionKey),
		RedisURL:            os.Getenv("REDIS_URL"),
		HeavyModules:        splitList(getEnv("HEAVY_MODULES", defaultHeavyModules)),
		PortalSessionSecret: os.Getenv("PORTAL_SESSION_SECRET"),
		Browser: BrowserConfig{
			Headless:    true,
			Bin:         os.Getenv("BROWSER_BIN"),
			DebuggerURL: os.Getenv("BROWSER_DEBUGGER_URL"),
		},
	}

	var err error
	if v := os.Getenv("DB_PORT"); v != "" {
		if cfg.Database.Port, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("invalid DB_PORT: %w", err)
		}
	}
	if cfg.Browser.Headless, err = getBool("BROWSER_HEADLESS", true); err != nil {
		return Config{}, err
	}
	if cfg.AgreementStrict, err = getBool("AGREEMENT_STRICT", false); err != nil {
		return Config{}, err
	}
	if cfg.Browser.UIWait, err = getDuration("UI_WAIT_TIMEOUT", defaultUIWait); err != nil {
		return Config{}, err
	}
	if cfg.Browser.SettleWait, err = getDuration("SETTLE_TIMEOUT", defaultSettleWait); err != nil {
		return Config{}, err
	}
	if cfg.Browser.NavigationTimeout, err = getDuration("NAVIGATION_TIMEOUT", defaultNavigationWait); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}

	switch cfg.SessionStore {
	case "file":
		if cfg.SessionFile == "" {
			return Config{}, fmt.Errorf("SESSION_FILE must be set when SESSION_STORE=file")
		}
	case "redis":
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when SESSION_STORE=redis")
		}
	default:
		return Config{}, fmt.Errorf("unsupported SESSION_STORE %q", cfg.SessionStore)
	}

	return cfg, nil
}

// DSN returns the Postgres connection string for the vendor datastore, or an
// empty string when nothing is configured.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// IsHeavyModule reports whether the module needs the verification bypass and
// agreement acceptance before it can run.
func (c Config) IsHeavyModule(module string) bool {
	for _, m := range c.HeavyModules {
		if strings.EqualFold(m, module) {
			return true
		}
	}
	return false
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts either plain seconds ("8") or a Go duration ("1500ms").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
