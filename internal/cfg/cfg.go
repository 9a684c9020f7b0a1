package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/frenchline/adminapi/internal/log"
)

type App struct {
	LogJSON         bool
	LogLevel        string
	HTTPPort        int
	AdminPort       int
	Environment     string
	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64
	StacktraceLevel string

	TrustedHops  int
	MaxBodyBytes int64

	DatabaseDSN    string
	RedisURL       string
	RateLimitRedis bool

	MediaS3Bucket string
	MediaS3Prefix string

	SessionSecret         string
	SessionSecretSSMParam string
	SessionKMSKeyARN      string
	SessionTTLHours       int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.StringVar(&c.Environment, "environment", "development", "development|production (controls 5xx error detail)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "number of trusted reverse proxies in front of the server (0 = trust peer address only)")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", 1<<20, "request body size limit in bytes")
	fs.StringVar(&c.DatabaseDSN, "database-dsn", "file:admin.db?_pragma=foreign_keys(1)", "sqlite DSN for the course/user store")
	fs.StringVar(&c.RedisURL, "redis-url", "", "redis URL for the response cache (empty disables caching)")
	fs.BoolVar(&c.RateLimitRedis, "rate-limit-redis", false, "share route rate-limit windows via redis (requires -redis-url)")
	fs.StringVar(&c.MediaS3Bucket, "media-s3-bucket", "", "s3 bucket for uploaded course media (empty disables media routes)")
	fs.StringVar(&c.MediaS3Prefix, "media-s3-prefix", "media", "s3 key prefix for uploaded course media")
	fs.StringVar(&c.SessionSecret, "session-secret", "", "HMAC secret for session tokens (dev; prefer -session-secret-ssm-param)")
	fs.StringVar(&c.SessionSecretSSMParam, "session-secret-ssm-param", "", "ssm parameter name holding the session HMAC secret")
	fs.StringVar(&c.SessionKMSKeyARN, "session-kms-key-arn", "", "KMS HMAC key ARN for session token signing (overrides secret-based signing)")
	fs.IntVar(&c.SessionTTLHours, "session-ttl-hours", 24, "session token lifetime in hours (1..720)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Production reports whether strict error redaction applies.
func (c App) Production() bool { return c.Environment == "production" }

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if c.Environment != "development" && c.Environment != "production" {
		errs = append(errs, fmt.Errorf("invalid ENVIRONMENT %q (must be development|production)", c.Environment))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.TrustedHops < 0 || c.TrustedHops > 10 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be 0..10 (got %d)", c.TrustedHops))
	}
	if c.MaxBodyBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive (got %d)", c.MaxBodyBytes))
	}

	if c.DatabaseDSN == "" {
		errs = append(errs, fmt.Errorf("DATABASE_DSN is required"))
	}
	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, fmt.Errorf("REDIS_URL must be a redis:// or rediss:// URL (got %q)", c.RedisURL))
		}
	}
	if c.RateLimitRedis && c.RedisURL == "" {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REDIS requires REDIS_URL"))
	}

	if c.MediaS3Bucket != "" && c.MediaS3Prefix == "" {
		errs = append(errs, fmt.Errorf("MEDIA_S3_PREFIX is required when MEDIA_S3_BUCKET is set"))
	}

	// Exactly one session signing source must be configured.
	signers := 0
	if c.SessionSecret != "" {
		signers++
	}
	if c.SessionSecretSSMParam != "" {
		signers++
	}
	if c.SessionKMSKeyARN != "" {
		signers++
	}
	if signers == 0 {
		errs = append(errs, fmt.Errorf("one of SESSION_SECRET, SESSION_SECRET_SSM_PARAM or SESSION_KMS_KEY_ARN is required"))
	}
	if signers > 1 {
		errs = append(errs, fmt.Errorf("SESSION_SECRET, SESSION_SECRET_SSM_PARAM and SESSION_KMS_KEY_ARN are mutually exclusive"))
	}

	if c.SessionTTLHours < 1 || c.SessionTTLHours > 720 {
		errs = append(errs, fmt.Errorf("SESSION_TTL_HOURS must be 1..720 (got %d)", c.SessionTTLHours))
	}

	// Fail-closed: production never falls back to an inline dev secret.
	if c.Production() && c.SessionSecret != "" {
		return fmt.Errorf("production requires session-secret-ssm-param or session-kms-key-arn, not an inline secret")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
