package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/database64128/dyns-go/internal/confhelper"
	"github.com/database64128/dyns-go/metrics"
	"github.com/database64128/dyns-go/producer/ipapi"
	"github.com/database64128/dyns-go/producer/poller"
	"github.com/database64128/dyns-go/provider/cloudflare"
	"github.com/database64128/dyns-go/tslog"
	"github.com/samber/lo"
)

// ErrConfig is returned when the configuration cannot be loaded or is invalid.
var ErrConfig = errors.New("invalid configuration")

// OnErrorPolicy decides what happens when a record update fails.
type OnErrorPolicy string

const (
	// OnErrorAbort stops the service with the error. This is the default.
	OnErrorAbort OnErrorPolicy = "abort"

	// OnErrorContinue logs the error, moves on to the remaining records,
	// and runs the whole update pass again after the next poll.
	OnErrorContinue OnErrorPolicy = "continue"
)

// Config is the service configuration.
type Config struct {
	// Email is the account email sent as X-Auth-Email.
	Email string `json:"email" toml:"email" yaml:"email"`

	// AuthKey is the account API key sent as X-Auth-Key.
	AuthKey string `json:"auth_key" toml:"auth_key" yaml:"auth_key"`

	// Authorization is the API token sent as a bearer token on record updates.
	Authorization string `json:"authorization" toml:"authorization" yaml:"authorization"`

	// LogFile, if not empty, is the file error-level log messages are appended to.
	LogFile string `json:"log_file" toml:"log_file" yaml:"log_file"`

	// PollInterval is the time between IP address lookups.
	// If zero, [poller.DefaultInterval] is used.
	PollInterval confhelper.Duration `json:"poll_interval" toml:"poll_interval" yaml:"poll_interval"`

	// IPAPIURL is the URL of the plain-text IP echo service.
	// If empty, [ipapi.DefaultURL] is used.
	IPAPIURL string `json:"ip_api_url" toml:"ip_api_url" yaml:"ip_api_url"`

	// APIBaseURL is the base URL of the DNS provider API.
	// If empty, [cloudflare.DefaultBaseURL] is used.
	APIBaseURL string `json:"api_base_url" toml:"api_base_url" yaml:"api_base_url"`

	// OnError is the record update failure policy.
	// If empty, [OnErrorAbort] is used.
	OnError OnErrorPolicy `json:"on_error" toml:"on_error" yaml:"on_error"`

	// Retries is the number of extra attempts made for each failed record update.
	Retries int `json:"retries" toml:"retries" yaml:"retries"`

	// RetryInterval is the initial backoff between attempts.
	// If zero, [DefaultRetryInterval] is used.
	RetryInterval confhelper.Duration `json:"retry_interval" toml:"retry_interval" yaml:"retry_interval"`

	// MetricsListen, if not empty, is the address Prometheus metrics are served on.
	MetricsListen string `json:"metrics_listen" toml:"metrics_listen" yaml:"metrics_listen"`

	// ZoneID and Records describe a single zone without a name.
	// When set, this zone comes before the ones in Zones.
	ZoneID  string         `json:"zone_id" toml:"zone_id" yaml:"zone_id"`
	Records []RecordConfig `json:"records" toml:"records" yaml:"records"`

	// Zones is the list of zones to keep updated, in order.
	Zones []ZoneConfig `json:"zones" toml:"zones" yaml:"zones"`
}

// ZoneConfig is the configuration of a zone.
type ZoneConfig struct {
	// ID is the provider's zone identifier.
	ID string `json:"id" toml:"id" yaml:"id"`

	// Name is an optional display name used in logs and metrics.
	Name string `json:"name" toml:"name" yaml:"name"`

	// Records is the list of records to keep updated, in order.
	Records []RecordConfig `json:"records" toml:"records" yaml:"records"`
}

// DisplayName returns the zone's name, or its ID if the name is empty.
func (z ZoneConfig) DisplayName() string {
	if z.Name != "" {
		return z.Name
	}
	return z.ID
}

// RecordConfig is the configuration of a DNS record.
type RecordConfig struct {
	// Name is the fully qualified record name, matched exactly.
	Name string `json:"name" toml:"name" yaml:"name"`

	// Proxied is the proxy flag sent with every update.
	Proxied bool `json:"proxy" toml:"proxy" yaml:"proxy"`
}

// Load reads the configuration file at path, expands environment variable
// references in the credentials, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := confhelper.OpenAndDecode(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to load %q: %w", ErrConfig, path, err)
	}
	cfg.ExpandEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandEnv replaces each credential whose whole value is a ${VAR} reference
// with the value of that environment variable. Other values, including ones
// containing a literal '$', are left as is.
func (c *Config) ExpandEnv() {
	c.Email = expandEnvRef(c.Email)
	c.AuthKey = expandEnvRef(c.AuthKey)
	c.Authorization = expandEnvRef(c.Authorization)
}

func expandEnvRef(s string) string {
	name, ok := strings.CutPrefix(s, "${")
	if !ok {
		return s
	}
	name, ok = strings.CutSuffix(name, "}")
	if !ok || name == "" || strings.ContainsAny(name, "${}") {
		return s
	}
	return os.Getenv(name)
}

// AllZones returns the flat zone, if any, followed by the zones in Zones.
func (c *Config) AllZones() []ZoneConfig {
	if c.ZoneID == "" && len(c.Records) == 0 {
		return c.Zones
	}
	zones := make([]ZoneConfig, 0, 1+len(c.Zones))
	zones = append(zones, ZoneConfig{ID: c.ZoneID, Records: c.Records})
	return append(zones, c.Zones...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("%w: email is required", ErrConfig)
	}
	if c.AuthKey == "" {
		return fmt.Errorf("%w: auth_key is required", ErrConfig)
	}
	if c.Authorization == "" {
		return fmt.Errorf("%w: authorization is required", ErrConfig)
	}

	switch c.OnError {
	case "", OnErrorAbort, OnErrorContinue:
	default:
		return fmt.Errorf("%w: unknown on_error policy %q", ErrConfig, c.OnError)
	}

	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative", ErrConfig)
	}

	zones := c.AllZones()
	if len(zones) == 0 {
		return fmt.Errorf("%w: no zones configured", ErrConfig)
	}

	for i, zone := range zones {
		if zone.ID == "" {
			return fmt.Errorf("%w: zone %d: id is required", ErrConfig, i)
		}
		if len(zone.Records) == 0 {
			return fmt.Errorf("%w: zone %q: no records configured", ErrConfig, zone.DisplayName())
		}
		for j, record := range zone.Records {
			if record.Name == "" {
				return fmt.Errorf("%w: zone %q: record %d: name is required", ErrConfig, zone.DisplayName(), j)
			}
		}
	}

	return nil
}

// Run runs the service with the configuration.
// It blocks until ctx is canceled or a fatal error occurs.
func (c *Config) Run(ctx context.Context, logger *tslog.Logger) error {
	client := &http.Client{}

	var m *metrics.Metrics
	if c.MetricsListen != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, c.MetricsListen, logger); err != nil {
				logger.Error("Failed to serve metrics", slog.String("listen", c.MetricsListen), tslog.Err(err))
			}
		}()
	}

	source := ipapi.NewTextSource(client, c.IPAPIURL)
	p := poller.New(c.PollInterval.Value(), source, logger)
	p.OnPoll = func(_ string, err error) {
		m.ObserveIPCheck(err)
	}

	cfClient := cloudflare.NewClient(client, c.APIBaseURL, cloudflare.Credentials{
		Email:   c.Email,
		AuthKey: c.AuthKey,
		Token:   c.Authorization,
	})

	zones := lo.Map(c.AllZones(), func(zone ZoneConfig, _ int) Zone {
		return Zone{
			Name:    zone.DisplayName(),
			Keeper:  cloudflare.NewKeeper(zone.ID, cfClient),
			Records: zone.Records,
		}
	})

	u := NewUpdater(p, zones, UpdaterOptions{
		OnError:       c.OnError,
		Retries:       c.Retries,
		RetryInterval: c.RetryInterval.Value(),
		Metrics:       m,
	}, logger)

	logger.Info("Starting service",
		slog.Int("zones", len(zones)),
		slog.String("ipAPI", source.URL()),
		slog.Duration("pollInterval", p.Interval()),
		slog.String("onError", string(u.policy)),
	)

	if err := u.Run(ctx); err != nil {
		return err
	}

	logger.Info("Stopped service", tslog.IP("ip", u.CurrentIP()))
	return nil
}
