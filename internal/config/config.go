package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aaronromeo/imapbox/internal/imap/criteria"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfig     = "IMAPBOX_CONFIG"
	envIMAPHost   = "IMAPBOX_IMAP_HOST"
	envIMAPPort   = "IMAPBOX_IMAP_PORT"
	envIMAPUser   = "IMAPBOX_IMAP_USER"
	envIMAPPass   = "IMAPBOX_IMAP_PASS"
	envWebhookURL = "IMAPBOX_WEBHOOK_URL"

	envOTelMode         = "IMAPBOX_OTEL_MODE"
	envOTelEndpoint     = "IMAPBOX_OTEL_ENDPOINT"
	envOTelGRPCEndpoint = "IMAPBOX_OTEL_GRPC_ENDPOINT"
	envOTelHeaders      = "IMAPBOX_OTEL_HEADERS"
	envOTelInsecure     = "IMAPBOX_OTEL_INSECURE"

	DefaultEnvFile = ".env"
	DefaultListen  = "127.0.0.1:8080"
)

// Config holds non-secret configuration loaded from YAML.
type Config struct {
	Account Account `yaml:"account"`
	Server  Server  `yaml:"server"`
	Rules   []Rule  `yaml:"rules"`
}

// Account holds connection settings. Host and credentials come from the
// environment.
type Account struct {
	Port               int    `yaml:"port"`
	Security           string `yaml:"security"`
	Timeout            string `yaml:"timeout"`
	DefaultFolder      string `yaml:"default_folder"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type Server struct {
	Listen string `yaml:"listen"`
}

// Rule describes a single cleanup rule.
type Rule struct {
	Name    string          `yaml:"name"`
	Folder  string          `yaml:"folder"`
	Search  string          `yaml:"search"`
	Client  *ClientMatchers `yaml:"client"`
	Actions []Action        `yaml:"actions"`
}

// ClientMatchers are regular expressions checked against header fields
// after the server-side search.
type ClientMatchers struct {
	SubjectRegex    []string `yaml:"subject_regex"`
	SenderRegex     []string `yaml:"sender_regex"`
	RecipientsRegex []string `yaml:"recipients_regex"`
	ListIDRegex     []string `yaml:"list_id_regex"`
}

func (m *ClientMatchers) IsEmpty() bool {
	if m == nil {
		return true
	}
	return len(m.SubjectRegex) == 0 &&
		len(m.SenderRegex) == 0 &&
		len(m.RecipientsRegex) == 0 &&
		len(m.ListIDRegex) == 0
}

type ActionName string

const (
	DELETE  ActionName = "delete"
	MOVE    ActionName = "move"
	UNKNOWN ActionName = ""
)

// Action defines an operation to apply when a rule matches.
type Action struct {
	Type        ActionName `yaml:"type"`
	Destination string     `yaml:"destination"`
}

// IMAPEnv holds the IMAP connection details from environment variables.
type IMAPEnv struct {
	Host string
	Port int
	User string
	Pass string
}

// Telemetry holds the OpenTelemetry export settings from environment variables.
type Telemetry struct {
	Mode         string
	Endpoint     string
	GRPCEndpoint string
	Headers      map[string]string
	Insecure     bool
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Account: Account{
			Port:          993,
			Security:      "tls",
			Timeout:       "30s",
			DefaultFolder: "INBOX",
		},
		Server: Server{Listen: DefaultListen},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}

	return cfg, nil
}

// LoadEnvFile loads a dotenv file when it exists.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading %s", path)
	}
	return errors.Wrapf(godotenv.Load(path), "loading %s", path)
}

// TimeoutDuration parses Account.Timeout. Empty means zero.
func (a Account) TimeoutDuration() (time.Duration, error) {
	return ParseRelativeDuration(a.Timeout)
}

// ParseRelativeDuration accepts Go durations plus a "d" suffix for days.
func ParseRelativeDuration(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if strings.HasSuffix(trimmed, "d") {
		daysValue := strings.TrimSuffix(trimmed, "d")
		days, err := strconv.ParseFloat(strings.TrimSpace(daysValue), 64)
		if err != nil {
			return 0, err
		}
		if days < 0 {
			return 0, errors.New("duration must be positive")
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	dur, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if dur < 0 {
		return 0, errors.New("duration must be positive")
	}
	return dur, nil
}

// IMAPEnvFromEnv loads IMAP connection details. The password may be empty
// when requirePass is false; callers then fall back to the keyring.
func IMAPEnvFromEnv(requirePass bool) (IMAPEnv, error) {
	missing := []string{}

	host := strings.TrimSpace(os.Getenv(envIMAPHost))
	if host == "" {
		missing = append(missing, envIMAPHost)
	}

	user := strings.TrimSpace(os.Getenv(envIMAPUser))
	if user == "" {
		missing = append(missing, envIMAPUser)
	}

	pass := os.Getenv(envIMAPPass)
	if requirePass && strings.TrimSpace(pass) == "" {
		missing = append(missing, envIMAPPass)
	}

	if len(missing) > 0 {
		return IMAPEnv{}, errors.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	env := IMAPEnv{
		Host: host,
		User: user,
		Pass: pass,
	}
	if portRaw := strings.TrimSpace(os.Getenv(envIMAPPort)); portRaw != "" {
		port, err := strconv.Atoi(portRaw)
		if err != nil {
			return IMAPEnv{}, errors.Wrapf(err, "invalid %s", envIMAPPort)
		}
		env.Port = port
	}
	return env, nil
}

// TelemetryFromEnv reads the telemetry settings. An empty mode disables export.
func TelemetryFromEnv() (Telemetry, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(envOTelMode)))
	switch mode {
	case "", "otlp", "stdout":
	default:
		return Telemetry{}, errors.Errorf("invalid %s %q: want otlp or stdout", envOTelMode, mode)
	}

	headers, err := ParseHeaders(os.Getenv(envOTelHeaders))
	if err != nil {
		return Telemetry{}, errors.Wrapf(err, "invalid %s", envOTelHeaders)
	}

	insecure := false
	if raw := strings.TrimSpace(os.Getenv(envOTelInsecure)); raw != "" {
		insecure, err = strconv.ParseBool(raw)
		if err != nil {
			return Telemetry{}, errors.Wrapf(err, "invalid %s", envOTelInsecure)
		}
	}

	cfg := Telemetry{
		Mode:         mode,
		Endpoint:     strings.TrimSpace(os.Getenv(envOTelEndpoint)),
		GRPCEndpoint: strings.TrimSpace(os.Getenv(envOTelGRPCEndpoint)),
		Headers:      headers,
		Insecure:     insecure,
	}
	if cfg.Mode == "otlp" && cfg.Endpoint == "" {
		return Telemetry{}, errors.Errorf("%s is required when %s=otlp", envOTelEndpoint, envOTelMode)
	}
	return cfg, nil
}

// ParseHeaders parses "key=value,key=value".
func ParseHeaders(raw string) (map[string]string, error) {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, errors.Errorf("malformed header %q", pair)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// WebhookURL returns the reporting webhook, empty when reporting is off.
func WebhookURL() string {
	return strings.TrimSpace(os.Getenv(envWebhookURL))
}

// ReportingEnabled returns true when a webhook URL is configured via env var.
func ReportingEnabled() bool {
	return WebhookURL() != ""
}

// Summary returns a concise config summary for validation runs.
func Summary(cfg Config) string {
	reportingStatus := "disabled"
	if ReportingEnabled() {
		reportingStatus = "enabled"
	}
	return fmt.Sprintf(
		"Config summary\n"+
			"- rules: %d\n"+
			"- default folder: %s\n"+
			"- reporting webhook: %s",
		len(cfg.Rules),
		defaultIfEmpty(cfg.Account.DefaultFolder, "(not set)"),
		reportingStatus,
	)
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// Validate performs basic validation on non-secret config.
func Validate(cfg Config) error {
	if _, err := cfg.Account.TimeoutDuration(); err != nil {
		return errors.Wrap(err, "invalid account.timeout")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Account.Security)) {
	case "", "tls", "ssl", "starttls", "none", "plain", "insecure":
	default:
		return errors.Errorf("invalid account.security %q", cfg.Account.Security)
	}
	if cfg.Account.Port < 0 || cfg.Account.Port > 65535 {
		return errors.Errorf("invalid account.port %d", cfg.Account.Port)
	}

	for i, rule := range cfg.Rules {
		label := rule.Name
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("%d", i+1)
		}
		if strings.TrimSpace(rule.Folder) == "" {
			return errors.Errorf("rule %s must define folder", label)
		}
		if len(rule.Actions) == 0 {
			return errors.Errorf("rule %s must define at least one action", label)
		}
		if _, err := criteria.Parse(rule.Search); err != nil {
			return errors.Wrapf(err, "rule %s: invalid search", label)
		}
		for _, action := range rule.Actions {
			switch action.Type {
			case DELETE:
			case MOVE:
				if strings.TrimSpace(action.Destination) == "" {
					return errors.Errorf("rule %s: move action missing destination", label)
				}
			default:
				return errors.Errorf("rule %s: unsupported action type %q", label, action.Type)
			}
		}
	}
	return nil
}
