package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	internal "github.com/ZanzyTHEbar/mca-batch/mcab"
	"github.com/ZanzyTHEbar/mca-batch/mcab/changer"
	"github.com/ZanzyTHEbar/mca-batch/mcab/config"
	"github.com/ZanzyTHEbar/mca-batch/mcab/fileops"
	"github.com/ZanzyTHEbar/mca-batch/mcab/filter"
	"github.com/ZanzyTHEbar/mca-batch/mcab/operations"
	"github.com/ZanzyTHEbar/mca-batch/mcab/pipeline"
	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"
	"github.com/ZanzyTHEbar/mca-batch/mcab/selection"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// env is what every batch command needs once flags are parsed.
type env struct {
	cfg      *config.Config
	log      zerolog.Logger
	sched    *pipeline.Scheduler
	runner   *operations.Runner
	registry *prometheus.Registry
	metrics  *http.Server
}

var (
	worldFlag = &cli.StringFlag{
		Name:    "world",
		Aliases: []string{"w"},
		Usage:   "directory holding the r.<x>.<z>.mca files",
	}
	filterFlag = &cli.StringFlag{
		Name:    "filter",
		Aliases: []string{"f"},
		Usage:   `chunk filter, e.g. "xPos >= 10 AND (Status = full OR NOT (Entities > 5))"`,
	}
	selectionFlag = &cli.PathFlag{
		Name:    "selection",
		Aliases: []string{"s"},
		Usage:   "CSV selection file (x;z or x;z;cx;cz per line)",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  internal.DefaultAppName,
		Usage: "filter, export, delete and edit chunks of Minecraft region files in bulk",
		// Exit codes are applied in main so Run always returns.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (default: search ./, ~/.config/mcab)"},
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
			&cli.StringFlag{Name: "metrics", Usage: "serve prometheus metrics on this address while running"},
		},
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "copy matching chunks into new region files",
				Flags:  []cli.Flag{worldFlag, filterFlag, selectionFlag, &cli.PathFlag{Name: "dest", Aliases: []string{"d"}, Required: true, Usage: "destination directory"}},
				Action: withEnv(exportAction),
			},
			{
				Name:   "delete",
				Usage:  "delete matching chunks in place",
				Flags:  []cli.Flag{worldFlag, filterFlag, selectionFlag},
				Action: withEnv(deleteAction),
			},
			{
				Name:  "change",
				Usage: "set field values in matching chunks",
				Flags: []cli.Flag{
					worldFlag, filterFlag, selectionFlag,
					&cli.StringFlag{Name: "set", Required: true, Usage: `comma separated changes, e.g. "Status = finalized, LightPopulated = 0"`},
					&cli.BoolFlag{Name: "force", Usage: "create fields that do not exist yet"},
				},
				Action: withEnv(changeAction),
			},
			{
				Name:   "fields",
				Usage:  "list filter fields, comparators and editable fields",
				Action: fieldsAction,
			},
		},
	}
}

// withEnv loads configuration, starts the pipeline, runs action and shuts
// everything down again.
func withEnv(action func(*cli.Context, *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadConfig(c.Path("config"))
		if err != nil {
			return err
		}
		if c.Bool("debug") {
			cfg.Debug = true
			cfg.Log.Level = "debug"
		}
		if w := c.String("world"); w != "" {
			cfg.WorldDir = w
		}
		config.AppConfig = *cfg
		if cfg.WorldDir == "" {
			return cli.Exit("no world directory: pass --world or set worldDir", 2)
		}

		e := &env{
			cfg:      cfg,
			log:      internal.GetLeveledLogger(cfg.Log.Level),
			registry: prometheus.NewRegistry(),
		}
		assertHandler := assert.NewAssertHandler()
		assertHandler.SetDebugMode(cfg.Debug)
		e.sched, err = pipeline.New(pipeline.FromAppConfig(cfg), e.log, e.registry,
			pipeline.WithAssertHandler(assertHandler))
		if err != nil {
			return err
		}
		defer e.sched.Close()
		e.runner = operations.NewRunner(e.sched, fileops.New(e.log), e.log, cfg.IgnoreFile)

		if addr := c.String("metrics"); addr != "" {
			e.serveMetrics(addr)
			defer e.metrics.Close()
		}
		return action(c, e)
	}
}

func (e *env) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.metrics = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := e.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}

func (e *env) inputs(c *cli.Context) (*filter.Group, *selection.Set, error) {
	f, err := filter.Parse(c.String("filter"))
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 2)
	}
	var sel *selection.Set
	if path := c.Path("selection"); path != "" {
		if sel, err = selection.LoadFile(path); err != nil {
			return nil, nil, cli.Exit(err.Error(), 2)
		}
	}
	return f, sel, nil
}

// await waits for the batch. An interrupt clears the queues; files already
// being worked on finish before the batch reports.
func (e *env) await(b *pipeline.Batch) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := b.Wait(ctx)
	if err != nil {
		e.log.Warn().Msg("interrupted, cancelling queued files")
		e.sched.ClearQueues()
		r, err = b.Wait(context.Background())
		if err != nil {
			return err
		}
	}
	if r.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed: %v", r.Failed, r.Total, r.Err), 1)
	}
	return nil
}

func (e *env) sink() progress.Sink {
	return progress.NewLogSink(e.log)
}

func exportAction(c *cli.Context, e *env) error {
	f, sel, err := e.inputs(c)
	if err != nil {
		return err
	}
	b, err := e.runner.ExportFilter(c.Context, f, sel, e.cfg.WorldDir, c.Path("dest"), e.sink())
	if err != nil {
		return err
	}
	return e.await(b)
}

func deleteAction(c *cli.Context, e *env) error {
	f, sel, err := e.inputs(c)
	if err != nil {
		return err
	}
	b, err := e.runner.DeleteFilter(c.Context, f, sel, e.cfg.WorldDir, e.sink())
	if err != nil {
		return err
	}
	return e.await(b)
}

func changeAction(c *cli.Context, e *env) error {
	f, sel, err := e.inputs(c)
	if err != nil {
		return err
	}
	fields, err := changer.ParseFields(c.String("set"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	b, err := e.runner.ChangeFields(c.Context, fields, c.Bool("force"), f, sel, e.cfg.WorldDir, e.sink())
	if err != nil {
		return err
	}
	return e.await(b)
}

func fieldsAction(c *cli.Context) error {
	w := c.App.Writer
	fmt.Fprintln(w, "filter fields:")
	for _, name := range filter.SuggestFields("") {
		fld, _ := filter.LookupField(name)
		var cmps []string
		for _, cmp := range fld.Comparators() {
			cmps = append(cmps, cmp.String())
		}
		fmt.Fprintf(w, "  %-15s %s\n", name, strings.Join(cmps, " "))
	}
	fmt.Fprintln(w, "editable fields:")
	for _, name := range changer.Suggest("") {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintf(w, "statuses: %s\n", strings.Join(changer.Statuses(), ", "))
	return nil
}
