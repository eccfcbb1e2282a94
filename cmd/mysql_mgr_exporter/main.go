package main

import (
	"context"
	"database/sql"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/promlog"
	"github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
	"github.com/prometheus/exporter-toolkit/web/kingpinflag"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mysql-mgr-exporter/collector"
	"github.com/mysql-mgr-exporter/config"
)

const exporterName = "mysql_mgr_exporter"

var (
	configFile = kingpin.Flag(
		"config.file",
		"Path to a YAML configuration file. Flags and environment variables take precedence.",
	).String()
	metricsPath = kingpin.Flag(
		"web.telemetry-path",
		"Path under which to expose metrics.",
	).Default("/metrics").String()
	toolkitFlags = kingpinflag.AddFlags(kingpin.CommandLine, ":8000")
)

// overrideFlags are the settings that may also come from the configuration
// file. Only flags given on the command line or through their environment
// variable override the file.
type overrideFlags struct {
	given  map[string]bool
	envars map[string]string

	host, user, password, database         *string
	port                                   *int
	connectTimeout, interval, queryTimeout *time.Duration
}

func addOverrideFlags(app *kingpin.Application) *overrideFlags {
	f := &overrideFlags{given: map[string]bool{}, envars: map[string]string{}}
	f.host = f.flag(app, "mysql.host", "Host of the group member to monitor (default: localhost).", "MYSQL_HOST").String()
	f.port = f.flag(app, "mysql.port", "Port of the group member to monitor (default: 3306).", "MYSQL_PORT").Int()
	f.user = f.flag(app, "mysql.user", "User to connect as (default: monitor).", "MYSQL_USER").String()
	f.password = f.flag(app, "mysql.password", "Password of the monitoring user (default: password).", "MYSQL_PASSWORD").String()
	f.database = f.flag(app, "mysql.database", "Default database of the connection (default: performance_schema).", "MYSQL_DATABASE").String()
	f.connectTimeout = f.flag(app, "mysql.connect-timeout", "Dial timeout for MySQL connections (default: 5s).", "MYSQL_CONNECT_TIMEOUT").Duration()
	f.interval = f.flag(app, "collect.interval", "Time between the start of two collection passes (default: 10s).", "").Duration()
	f.queryTimeout = f.flag(app, "collect.query-timeout", "Upper bound for a whole collection pass, 0 waits for the driver (default: 0).", "").Duration()
	return f
}

func (f *overrideFlags) flag(app *kingpin.Application, name, help, envar string) *kingpin.FlagClause {
	clause := app.Flag(name, help).Action(func(*kingpin.ParseContext) error {
		f.given[name] = true
		return nil
	})
	if envar != "" {
		f.envars[name] = envar
		clause = clause.Envar(envar)
	}
	return clause
}

// isSet reports whether name was given on the command line or through its
// environment variable. An empty variable counts only when allowEmpty is
// set, since kingpin cannot parse an empty number or duration.
func (f *overrideFlags) isSet(name string, allowEmpty bool) bool {
	if f.given[name] {
		return true
	}
	envar, ok := f.envars[name]
	if !ok {
		return false
	}
	v, ok := os.LookupEnv(envar)
	return ok && (allowEmpty || v != "")
}

func (f *overrideFlags) overrides() config.Overrides {
	var o config.Overrides
	if f.isSet("mysql.host", true) {
		o.Host = f.host
	}
	if f.isSet("mysql.port", false) {
		o.Port = f.port
	}
	if f.isSet("mysql.user", true) {
		o.User = f.user
	}
	if f.isSet("mysql.password", true) {
		o.Password = f.password
	}
	if f.isSet("mysql.database", true) {
		o.Database = f.database
	}
	if f.isSet("mysql.connect-timeout", false) {
		o.ConnectTimeout = f.connectTimeout
	}
	if f.isSet("collect.interval", false) {
		o.Interval = f.interval
	}
	if f.isSet("collect.query-timeout", false) {
		o.QueryTimeout = f.queryTimeout
	}
	return o
}

func loadConfig(path string, o config.Overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	cfg = cfg.Apply(o)
	return cfg, cfg.Validate()
}

type scraperFlag struct {
	scraper collector.Scraper
	enabled *bool
}

// addScraperFlags registers a collect.<name> switch for every scraper, all
// enabled by default.
func addScraperFlags(app *kingpin.Application, scrapers []collector.Scraper) []scraperFlag {
	flags := make([]scraperFlag, 0, len(scrapers))
	for _, s := range scrapers {
		flags = append(flags, scraperFlag{
			scraper: s,
			enabled: app.Flag("collect."+s.Name(), s.Help()).Default("true").Bool(),
		})
	}
	return flags
}

// enabledScrapers keeps the switched-on scrapers in their original order.
func enabledScrapers(flags []scraperFlag, logger log.Logger) []collector.Scraper {
	scrapers := make([]collector.Scraper, 0, len(flags))
	for _, f := range flags {
		if *f.enabled {
			level.Info(logger).Log("msg", "Scraper enabled", "scraper", f.scraper.Name())
			scrapers = append(scrapers, f.scraper)
		}
	}
	return scrapers
}

func main() {
	state := &collector.State{}
	overrides := addOverrideFlags(kingpin.CommandLine)
	scraperFlags := addScraperFlags(kingpin.CommandLine, collector.DefaultScrapers(state))

	promlogConfig := &promlog.Config{}
	flag.AddFlags(kingpin.CommandLine, promlogConfig)
	kingpin.Version(version.Print(exporterName))
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()
	logger := promlog.New(promlogConfig)

	level.Info(logger).Log("msg", "Starting "+exporterName, "version", version.Info())
	level.Info(logger).Log("msg", "Build context", "build_context", version.BuildContext())

	cfg, err := loadConfig(*configFile, overrides.overrides())
	if err != nil {
		level.Error(logger).Log("msg", "Error loading configuration", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN())
	if err != nil {
		level.Error(logger).Log("msg", "Error opening connection to database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	// Passes are sequential, one connection is all they ever need.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		version.NewCollector(exporterName),
		promcollectors.NewGoCollector(),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
	)
	metrics := collector.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		level.Error(logger).Log("msg", "Error registering metrics", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sampler := collector.NewSampler(collector.DBConnFactory(db), metrics, enabledScrapers(scraperFlags, logger), cfg.Collect.QueryTimeout, logger)
	poller := collector.NewPoller(sampler.Collect, cfg.Collect.Interval, metrics.FetchTime, logger)
	level.Info(logger).Log("msg", "Collecting group replication metrics",
		"host", cfg.MySQL.Host, "port", cfg.MySQL.Port, "interval", cfg.Collect.Interval)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle(*metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: stdlog.New(log.NewStdlibAdapter(level.Error(logger)), "", 0),
	}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
<head><title>MySQL Group Replication Exporter</title></head>
<body>
<h1>MySQL Group Replication Exporter</h1>
<p><a href="` + *metricsPath + `">Metrics</a></p>
</body>
</html>`))
	})

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			level.Error(logger).Log("msg", "Error shutting down HTTP server", "err", err)
		}
	}()

	if err := web.ListenAndServe(srv, toolkitFlags, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		level.Error(logger).Log("msg", "Error starting HTTP server", "err", err)
		os.Exit(1)
	}
	<-pollerDone
}
