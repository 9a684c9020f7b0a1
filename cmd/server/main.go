package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/frenchline/adminapi/internal/adminhttp"
	"github.com/frenchline/adminapi/internal/cache"
	"github.com/frenchline/adminapi/internal/cfg"
	"github.com/frenchline/adminapi/internal/health"
	"github.com/frenchline/adminapi/internal/healthhttp"
	"github.com/frenchline/adminapi/internal/httpmw"
	"github.com/frenchline/adminapi/internal/httpserver"
	"github.com/frenchline/adminapi/internal/identity"
	"github.com/frenchline/adminapi/internal/log"
	"github.com/frenchline/adminapi/internal/media"
	"github.com/frenchline/adminapi/internal/metrics"
	"github.com/frenchline/adminapi/internal/opshttp"
	"github.com/frenchline/adminapi/internal/otelx"
	"github.com/frenchline/adminapi/internal/pipeline"
	"github.com/frenchline/adminapi/internal/prof"
	"github.com/frenchline/adminapi/internal/ratelimit"
	"github.com/frenchline/adminapi/internal/store"
	v "github.com/frenchline/adminapi/internal/version"
)

func main() {
	// local development convenience; absent .env is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, "FLADMIN_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:             vi.AppName,
		Version:         vi.Version,
		Commit:          vi.Commit,
		Level:           lvl,
		StacktraceLevel: stackLvl,
		JsonFormat:      conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"go_version", vi.GoVersion,
		"environment", conf.Environment,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"database_dsn", conf.DatabaseDSN,
		"redis_configured", conf.RedisURL != "",
		"media_s3_bucket", conf.MediaS3Bucket,
	)

	// continuous profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       vi.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       vi.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// tracing; insecure because the collector is on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   vi.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(vi.AppName, "server", &vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	// database
	st, err := store.Open(conf.DatabaseDSN, store.WithObserver(func(op string, d time.Duration) {
		m.ObserveStoreQuery(op, d.Seconds())
	}))
	if err != nil {
		L.Error(ctx, err, "failed to open database", "dsn", conf.DatabaseDSN)
		os.Exit(1)
	}
	defer st.Close()

	// redis-backed cache when configured; the rate-limit window stays
	// in-process unless -rate-limit-redis asks for a shared one
	var (
		appCache adminhttp.Cache = cache.Noop{}
		limStore ratelimit.Store = ratelimit.NewWindowed()
		rdb      *redis.Client
	)
	if conf.RedisURL != "" {
		redisOpts, err := redis.ParseURL(conf.RedisURL)
		if err != nil {
			L.Error(ctx, err, "invalid redis url")
			os.Exit(1)
		}
		rdb = redis.NewClient(redisOpts)
		appCache = cache.New(rdb,
			cache.WithPrefix("fladmin"),
			cache.WithOnOp(m.IncCacheOp),
		)
		defer rdb.Close()
	}
	if conf.RateLimitRedis {
		// Opt-in only: the redis window approximates the in-process
		// admission semantics, so the swap is never implicit.
		limStore = ratelimit.NewRedisWindow(rdb, "")
		L.Info(ctx, "route rate-limit windows shared via redis")
	}

	// aws clients are only dialed when a feature needs them
	needAWS := conf.MediaS3Bucket != "" || conf.SessionSecretSSMParam != "" || conf.SessionKMSKeyARN != ""
	var awsCfg aws.Config
	if needAWS {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}
	}

	// session token signer: inline secret, SSM-fetched secret, or KMS HMAC
	var signer identity.Signer
	switch {
	case conf.SessionKMSKeyARN != "":
		signer = identity.NewKMSSigner(kms.NewFromConfig(awsCfg), conf.SessionKMSKeyARN)
	case conf.SessionSecretSSMParam != "":
		secret, err := fetchSSMSecret(ctx, ssm.NewFromConfig(awsCfg), conf.SessionSecretSSMParam)
		if err != nil {
			L.Error(ctx, err, "failed to fetch session secret", "param", conf.SessionSecretSSMParam)
			os.Exit(1)
		}
		signer = identity.NewHMACSigner(secret)
	default:
		signer = identity.NewHMACSigner([]byte(conf.SessionSecret))
	}

	resolver := identity.NewTokenResolver(signer, func(ctx context.Context, userID string) (identity.Caller, error) {
		u, err := st.GetUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			// deleted account: invalid session, not a provider failure
			return identity.Caller{}, nil
		}
		if err != nil {
			return identity.Caller{}, err
		}
		return identity.Caller{ID: u.ID, Email: u.Email, Role: "admin"}, nil
	})

	var me adminhttp.Media
	if conf.MediaS3Bucket != "" {
		ms, err := media.New(awsCfg, media.Options{
			Bucket: conf.MediaS3Bucket,
			Prefix: conf.MediaS3Prefix,
			Logger: L,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create media store")
			os.Exit(1)
		}
		me = ms
	}

	pipe := pipeline.New(limStore, resolver, L, pipeline.Hooks{
		RateLimited:      func() { m.IncRateLimitDenied("route") },
		AuthFailed:       m.IncAuthFailure,
		ValidationFailed: m.IncValidationFailure,
		Panicked:         m.IncHttpPanic,
	}, !conf.Production())

	api := adminhttp.New(st, appCache, me, pipe, L)

	// per-service health checks surfaced on /api/health
	services := map[string]healthhttp.ServiceCheck{
		"database": st.Ping,
	}
	if rdb != nil {
		services["cache"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// readiness drops during shutdown so the load balancer drains us
	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.CheckFunc(st.Ping),
	)

	// edge flood guard, separate from the per-route budgets
	flood := ratelimit.NewIPLimiter(ctx,
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied("flood")
		}),
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "flood limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "flood limiter at capacity, rejecting new visitors until some are evicted")
		}),
	)

	apiHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger: L,
		Port:   conf.HTTPPort,
		APIRoutes: func(r chi.Router) {
			api.RegisterRoutes(r)
			r.Get("/api/health", healthhttp.Handler(services))
		},
		MetricsMW:    m.Middleware,
		RateLimitMW:  flood.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		MaxBodyBytes: conf.MaxBodyBytes,
		// media uploads carry their own larger cap in the handler
		MaxBodyExempt: adminhttp.UploadExempt,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		os.Exit(1)
	}
	defer func() { _ = apiHTTPStop(context.Background()) }()

	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	L.Info(ctx, "startup complete")

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// fail readiness so the load balancer stops sending traffic, then give
	// in-flight requests a moment to finish
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(10 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := apiHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "api http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

// fetchSSMSecret loads the session HMAC secret from parameter store.
func fetchSSMSecret(ctx context.Context, client *ssm.Client, param string) ([]byte, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get SSM parameter %s: %w", param, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("SSM parameter %s has no value", param)
	}
	secret := strings.TrimSpace(*out.Parameter.Value)
	if secret == "" {
		return nil, fmt.Errorf("SSM parameter %s is empty", param)
	}
	return []byte(secret), nil
}
