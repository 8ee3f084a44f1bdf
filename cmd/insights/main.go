package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	ginzap "github.com/gin-contrib/zap"

	"github.com/flarexio/core/events"
	"github.com/flarexio/core/pubsub"
	"github.com/flarexio/insights"
	"github.com/flarexio/insights/conf"
	"github.com/flarexio/insights/export"
	"github.com/flarexio/insights/geo"
	"github.com/flarexio/insights/persistence"
	"github.com/flarexio/insights/report"
	"github.com/flarexio/insights/scraper"
	"github.com/flarexio/insights/soundcloud"

	transHTTP "github.com/flarexio/insights/transport/http"
	transPubSub "github.com/flarexio/insights/transport/pubsub"
)

var (
	Version   string = "0.0.0"
	BuildTime string
	GitCommit string
)

var errTokenMissing = errors.New(`SoundCloud OAuth token not set

To get your token:
  1. Log into soundcloud.com in your browser
  2. Open DevTools (F12) -> Application -> Cookies -> https://soundcloud.com
  3. Copy the value of the "oauth_token" cookie
  4. export SOUNDCLOUD_OAUTH_TOKEN="2-XXXXXX-XXXXXXXX-XXXXXXXXXXXX"
     or pass it with --token`)

var versionCmd = &cli.Command{
	Name:    "version",
	Aliases: []string{"ver", "v"},
	Usage:   "Show version",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "Show all infomation (include: Version, BuildTime, GitCommit)",
			Value:   false,
		},
	},
	Action: func(ctx *cli.Context) error {
		if !ctx.Bool("all") {
			fmt.Println(ctx.App.Version)
		} else {
			cli.ShowVersion(ctx)
		}
		return nil
	},
}

var metricsCmd = &cli.Command{
	Name:   "metrics",
	Usage:  "Scrape per-track public metrics into CSV and JSON",
	Action: runMetrics,
}

var scrapeCmd = &cli.Command{
	Name:   "scrape",
	Usage:  "Scrape geographic insights and store the report",
	Action: runScrape,
}

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "Serve the insights dashboard",
	Action: runServe,
}

var statusCmd = &cli.Command{
	Name:   "status",
	Usage:  "Ask a running dashboard for its summary over NATS",
	Action: runStatus,
}

func main() {
	cli.VersionPrinter = func(cli *cli.Context) {
		fmt.Println("Version: " + cli.App.Version)
		fmt.Println("BuildTime: " + BuildTime)
		fmt.Println("GitCommit: " + GitCommit)
	}

	app := &cli.App{
		Name:     "insights",
		Usage:    "SoundCloud analytics scraper and dashboard",
		Version:  Version,
		Commands: []*cli.Command{versionCmd, metricsCmd, scrapeCmd, serveCmd, statusCmd},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "Specifies the working directory",
				EnvVars: []string{"INSIGHTS_PATH"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Specifies the HTTP service port",
				Value:   5000,
				EnvVars: []string{"INSIGHTS_HTTP_PORT"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "SoundCloud OAuth token (the oauth_token browser cookie)",
				EnvVars: []string{"SOUNDCLOUD_OAUTH_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL, report notifications are disabled when empty",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory for exported CSV and JSON files",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(cli *cli.Context) (*conf.Config, *zap.Logger, error) {
	if err := conf.LoadEnv(cli); err != nil {
		return nil, nil, err
	}

	cfg, err := conf.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	if token := cli.String("token"); token != "" {
		cfg.SoundCloud.Token = token
	}

	if url := cli.String("nats"); url != "" {
		cfg.EventBus.URL = url
	}

	if dir := cli.String("out"); dir != "" {
		cfg.Output.Dir = dir
	}

	conf.ReplaceGlobals(cfg)

	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}

	zap.ReplaceGlobals(log)

	return cfg, log, nil
}

func newScraper(cfg *conf.Config, log *zap.Logger) (scraper.Service, error) {
	client, err := soundcloud.NewClient(soundcloud.Config{
		Token:      cfg.SoundCloud.Token,
		APIBaseURL: cfg.SoundCloud.APIBaseURL,
		GraphQLURL: cfg.SoundCloud.GraphQLURL,
		Interval:   cfg.SoundCloud.Interval,
		Timeout:    cfg.SoundCloud.Timeout,
		Logger:     log,
	})
	if err != nil {
		if errors.Is(err, soundcloud.ErrMissingToken) {
			return nil, errTokenMissing
		}

		return nil, err
	}

	progress := log.With(zap.String("infra", "progress"))

	svc := scraper.NewService(client, scraper.Options{
		Token:      cfg.SoundCloud.Token,
		Window:     cfg.SoundCloud.Window,
		Limit:      cfg.SoundCloud.Limit,
		TrackLimit: cfg.SoundCloud.TrackLimit,
		GeoTracks:  cfg.SoundCloud.GeoTracks,
		Progress: func(i, total int, title string) {
			progress.Info(title, zap.String("progress", fmt.Sprintf("%d/%d", i, total)))
		},
		Logger: log.With(zap.String("service", "scraper")),
	})

	return scraper.LoggingMiddleware(log)(svc), nil
}

// remediate turns an authentication failure into instructions for the user.
func remediate(err error) error {
	if errors.Is(err, soundcloud.ErrUnauthorized) {
		return fmt.Errorf("%w\n\nCopy a fresh oauth_token cookie from soundcloud.com and try again", err)
	}

	return err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runMetrics(cli *cli.Context) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := newScraper(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	tracks, err := svc.Metrics(ctx)
	if err != nil {
		return remediate(err)
	}

	files, err := export.ExportMetrics(cfg.Output.Dir, tracks)
	if err != nil {
		return err
	}

	printMetrics(tracks, files)
	return nil
}

func printMetrics(tracks []report.Track, files []string) {
	fmt.Println()
	fmt.Printf("Tracks:       %d\n", len(tracks))
	fmt.Printf("Total plays:  %d\n", report.SumPlays(tracks))
	fmt.Printf("Total likes:  %d\n", report.SumLikes(tracks))

	if len(tracks) > 0 {
		top := tracks[0]
		for _, t := range tracks[1:] {
			if t.Plays > top.Plays {
				top = t
			}
		}

		fmt.Printf("Most played:  %s (%d)\n", top.Title, top.Plays)
	}

	fmt.Println()
	for _, f := range files {
		fmt.Println("Saved " + f)
	}
}

type scrapeResult struct {
	Report *report.Report
	Files  []string
}

// scrape runs the insights scraper, stores and exports the report, then
// announces it on the global event bus when announce is set.
func scrape(ctx context.Context, svc scraper.Service, reports report.Repository, dir string, announce bool) (*scrapeResult, error) {
	r, err := svc.Insights(ctx)
	if err != nil {
		return nil, remediate(err)
	}

	if err := reports.Store(r); err != nil {
		return nil, err
	}

	files, err := export.ExportInsights(dir, r)
	if err != nil {
		return nil, err
	}

	if announce {
		if err := r.Notify(); err != nil {
			return nil, err
		}
	}

	return &scrapeResult{r, files}, nil
}

// connect opens the event bus with the credentials file next to the config.
func connect(cfg *conf.Config, log *zap.Logger) (pubsub.NATSPubSub, error) {
	ps, err := pubsub.NewNATSPubSub(cfg.EventBus.URL, cfg.Name, cfg.EventBus.CredsFile())
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("connected")
	return ps, nil
}

func runScrape(cli *cli.Context) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := newScraper(cfg, log)
	if err != nil {
		return err
	}

	// Add Persistence
	reports, err := persistence.NewReportRepository(cfg.ReportStore())
	if err != nil {
		log.Error(err.Error(),
			zap.String("infra", "persistence"),
			zap.String("driver", cfg.Persistence.Driver.String()),
		)
		return err
	}
	defer reports.Close()

	// Add Event Sourcing
	announce := cfg.EventBus.URL != ""
	if announce {
		log := log.With(
			zap.String("infra", "pubsub"),
			zap.String("url", cfg.EventBus.URL),
		)

		ps, err := connect(cfg, log)
		if err != nil {
			return err
		}
		defer ps.Close()

		events.ReplaceGlobals(ps)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := scrape(ctx, svc, reports, cfg.Output.Dir, announce)
	if err != nil {
		return err
	}

	printReport(result)
	return nil
}

func printReport(result *scrapeResult) {
	r := result.Report

	fmt.Println()
	fmt.Printf("User:         %s\n", r.User.Username)
	fmt.Printf("Total plays:  %d (top %d tracks)\n", r.TotalPlays(), len(r.Tracks))

	n := min(len(r.Aggregate.Countries), 5)
	if n > 0 {
		fmt.Println("Top countries:")
		for _, c := range r.Aggregate.Countries[:n] {
			fmt.Printf("  %2d. %s: %d\n", c.Rank, c.Name, c.Plays)
		}
	}

	n = min(len(r.Aggregate.Cities), 5)
	if n > 0 {
		fmt.Println("Top cities:")
		for _, c := range r.Aggregate.Cities[:n] {
			fmt.Printf("  %2d. %s, %s: %d\n", c.Rank, c.Name, c.Country, c.Plays)
		}
	}

	fmt.Println()
	for _, f := range result.Files {
		fmt.Println("Saved " + f)
	}
}

func runServe(cli *cli.Context) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}
	defer log.Sync()

	// Add Persistence
	reports, err := persistence.NewReportRepository(cfg.ReportStore())
	if err != nil {
		log.Error(err.Error(),
			zap.String("infra", "persistence"),
			zap.String("driver", cfg.Persistence.Driver.String()),
		)
		return err
	}
	defer reports.Close()

	gazetteer, err := geo.NewGazetteer()
	if err != nil {
		return err
	}

	if err := gazetteer.Merge(cfg.Cities); err != nil {
		return err
	}

	// Add Service and Middlewares
	svc := insights.NewService(reports, gazetteer)
	svc = insights.LoggingMiddleware(log)(svc)

	if _, err := svc.Reload(); err != nil {
		return err
	}

	// Add Endpoints
	endpoints := insights.NewEndpointSet(svc)

	// Add PubSub Transports
	if url := cfg.EventBus.URL; url != "" {
		log := log.With(
			zap.String("infra", "pubsub"),
			zap.String("url", url),
		)

		ps, err := connect(cfg, log)
		if err != nil {
			return err
		}
		defer ps.Close()

		// SUB insights.*.scraped
		handler := transPubSub.ReportScrapedHandler(insights.EventEndpoint(svc))
		err = ps.Subscribe(transPubSub.ReportScrapedTopic, func(ctx context.Context, msg *pubsub.Message) error {
			if err := handler(ctx, msg); err != nil {
				log.Error(err.Error(), zap.String("topic", msg.Topic))
				return err
			}

			log.Info("event handled", zap.String("topic", msg.Topic))
			return nil
		})
		if err != nil {
			log.Error(err.Error())
			return err
		}

		srv, err := transPubSub.AddService(ps, micro.Config{
			Name:        "insights",
			Version:     Version,
			Description: "SoundCloud analytics dashboard",
			Metadata: map[string]string{
				"id": cfg.Name,
			},
		}, endpoints)
		if err != nil {
			log.Error(err.Error())
			return err
		}
		defer srv.Stop()
	}

	// Add HTTP Transport
	r := gin.New()
	r.Use(ginzap.Ginzap(log, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(log, true))

	if err := transHTTP.AddRoutes(r, endpoints); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(conf.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	return serve(server, quit, log)
}

// serve runs the HTTP server until it fails or a signal arrives on quit.
func serve(server *http.Server, quit <-chan os.Signal, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("dashboard listening", zap.String("addr", server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error(err.Error(), zap.String("infra", "http"))
		return err

	case sign := <-quit:
		log.Info("shutdown", zap.String("singal", sign.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

func runStatus(cli *cli.Context) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.EventBus.URL == "" {
		return errors.New("nats url not set, use --nats or NATS_URL")
	}

	nc, err := nats.Connect(cfg.EventBus.URL,
		nats.Name(cfg.Name),
		nats.UserCredentials(cfg.EventBus.CredsFile()),
	)
	if err != nil {
		return err
	}
	defer nc.Close()

	endpoint := transPubSub.SummaryEndpoint(nc, "insights.summary")

	resp, err := endpoint(cli.Context, nil)
	if err != nil {
		return err
	}

	s, ok := resp.(insights.Summary)
	if !ok {
		return errors.New("invalid response")
	}

	fmt.Printf("User:         %s\n", s.Username)
	fmt.Printf("Report:       %s\n", s.ReportID)
	fmt.Printf("Total plays:  %d\n", s.TotalPlays)
	fmt.Printf("Tracks:       %d\n", s.TotalTracks)
	fmt.Printf("Countries:    %d\n", s.TotalCountries)
	fmt.Printf("Cities:       %d\n", s.TotalCities)
	fmt.Printf("Top track:    %s (%d)\n", s.TopTrack, s.TopTrackPlays)
	return nil
}
