package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/surge-load/surge/internal/client"
	"github.com/surge-load/surge/internal/config"
	"github.com/surge-load/surge/internal/control"
	"github.com/surge-load/surge/internal/metrics"
	"github.com/surge-load/surge/internal/output"
	"github.com/surge-load/surge/internal/schedule"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a staged load run against an inference endpoint",
	Long: `Execute a load run defined by a profile file or CLI flags.

Profile file mode:
  surge run --config profile.yaml

Quick CLI mode (single stage):
  surge run --endpoint https://api.example.com/invocations \
    --payload payload.json \
    --users 10 --spawn-rate 2 --run-time 5m

Staged CLI mode (duration:users[:spawnRate] per stage, durations are
stage lengths and accumulate):
  surge run --endpoint https://api.example.com/invocations \
    --payload payload.json \
    --stages "2m:2:2,2m:4:2,2m:6:2"`,
	RunE: runLoadRun,
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Profile file (YAML or JSON)")
	runCmd.Flags().String("endpoint", "", "Inference endpoint URL (quick mode)")
	runCmd.Flags().String("payload", "", "Request payload file (quick mode)")
	runCmd.Flags().String("content-type", "", "Request content type (default: detected from payload)")
	runCmd.Flags().String("model", "", "Model name used for variant selection")
	runCmd.Flags().Int("variants", 0, "Number of model variants to spread requests across")
	runCmd.Flags().String("timeout", "", "Per-request timeout (e.g. 30s)")
	runCmd.Flags().Int("users", 0, "Target concurrency (quick mode)")
	runCmd.Flags().Float64("spawn-rate", 1, "Workers started per second during ramp-up")
	runCmd.Flags().String("run-time", "", "Total run duration (quick mode, e.g. 5m)")
	runCmd.Flags().String("stages", "", "Stage list: duration:users[:spawnRate], comma separated")
	runCmd.Flags().String("tick", "", "Scheduler tick interval (default 1s)")
	runCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().String("name", "", "Run name for reporting")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress progress output, print a one-line summary")
	runCmd.Flags().Bool("no-color", false, "Disable colored output")
	runCmd.Flags().BoolP("verbose", "v", false, "Verbose event logging")
}

func runLoadRun(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")
	verbose, _ := cmd.Flags().GetBool("verbose")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	var profile *config.Profile
	var err error

	if configFile != "" {
		profile, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
	} else {
		profile, err = buildProfileFromFlags(cmd)
		if err != nil {
			return err
		}
	}
	if metricsAddr != "" {
		profile.MetricsAddr = metricsAddr
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	// Everything below must fail before the first worker starts.
	table, err := profile.StageTable()
	if err != nil {
		return err
	}
	tick, err := profile.Tick()
	if err != nil {
		return err
	}

	payload, err := client.LoadPayload(profile.Endpoint.PayloadFile)
	if err != nil {
		return err
	}
	contentType := profile.Endpoint.ContentType
	if contentType == "" {
		contentType = client.DetectContentType(payload)
	}

	clientCfg := client.DefaultConfig()
	clientCfg.Endpoint = profile.Endpoint.URL
	clientCfg.ContentType = contentType
	if profile.Endpoint.Timeout != "" {
		if clientCfg.Timeout, err = config.ParseDurationString(profile.Endpoint.Timeout); err != nil {
			return err
		}
	}
	if err := clientCfg.Validate(); err != nil {
		return err
	}

	var selector client.Selector
	if profile.Endpoint.Variants > 0 {
		selector = client.NewRandomVariant(profile.Endpoint.Model, profile.Endpoint.Variants, time.Now().UnixNano())
	} else if profile.Endpoint.Model != "" {
		selector = client.Fixed(profile.Endpoint.Model)
	}

	engine := metrics.NewEngine()
	var collectors *metrics.Collectors
	if profile.MetricsAddr != "" {
		collectors = metrics.NewCollectors()
		engine = engine.WithPrometheus(collectors)
	}

	task := client.New(clientCfg, payload, selector, engine)
	if verbose {
		task.WithTraceLogging(log)
	}

	wait := control.DefaultWaitTime()
	if min, max, err := profile.WaitTimes(); err != nil {
		return err
	} else if max > 0 {
		wait = control.WaitTime{Min: min, Max: max}
	}

	pool := control.NewPool(task, wait, log)
	scheduler := schedule.NewStageScheduler(table)

	console := output.NewConsole(output.ConsoleConfig{
		RunName:       profile.Name,
		TotalDuration: table.TotalDuration(),
		Writer:        cmd.OutOrStdout(),
		Quiet:         quiet,
		NoColor:       noColor,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if collectors != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collectors.Handler())
		metricsSrv = &http.Server{Addr: profile.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Warn("metrics listener failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	console.PrintHeader()

	clock := schedule.StartClock()
	loop := control.NewLoop(scheduler, pool, clock, engine, log, control.LoopConfig{TickInterval: tick})

	done := make(chan struct{})
	go reportProgress(done, loop, engine, table, console)

	runErr := loop.Run(ctx)
	close(done)

	snap := engine.GetSnapshot()
	console.PrintSummary(snap)
	if profile.Endpoint.Variants > 0 {
		console.PrintTargetBreakdown(engine.GetTargetStats())
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Info("run cancelled, workers drained")
			return nil
		}
		return runErr
	}
	return nil
}

// reportProgress renders live statistics once a second until done closes.
func reportProgress(done <-chan struct{}, loop *control.Loop, engine *metrics.Engine,
	table *schedule.StageTable, console *output.Console) {

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := loop.Stats()
			if stats.Finished {
				return
			}

			stageName := ""
			if stats.Stage >= 0 && stats.Stage < table.Len() {
				stageName = table.Stage(stats.Stage).Name
			}

			live := output.StatsFromSnapshot(
				engine.GetSnapshot(),
				table.TotalDuration(),
				stats.TargetWorkers,
				stats.Stage+1,
				stats.TotalStages,
				stageName,
			)

			if console.IsTTY() {
				console.Update(live)
			} else {
				console.PrintProgressLine(live)
			}
		}
	}
}

// buildProfileFromFlags synthesizes a profile from quick-mode flags.
func buildProfileFromFlags(cmd *cobra.Command) (*config.Profile, error) {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	payloadFile, _ := cmd.Flags().GetString("payload")
	contentType, _ := cmd.Flags().GetString("content-type")
	model, _ := cmd.Flags().GetString("model")
	variants, _ := cmd.Flags().GetInt("variants")
	timeout, _ := cmd.Flags().GetString("timeout")
	users, _ := cmd.Flags().GetInt("users")
	spawnRate, _ := cmd.Flags().GetFloat64("spawn-rate")
	runTime, _ := cmd.Flags().GetString("run-time")
	stagesStr, _ := cmd.Flags().GetString("stages")
	tick, _ := cmd.Flags().GetString("tick")
	name, _ := cmd.Flags().GetString("name")

	if endpoint == "" || payloadFile == "" {
		return nil, fmt.Errorf("either --config or both --endpoint and --payload are required")
	}

	var stages []config.StageConfig
	var err error

	switch {
	case stagesStr != "":
		stages, err = parseStages(stagesStr, spawnRate)
		if err != nil {
			return nil, err
		}
	case users > 0 && runTime != "":
		stages = []config.StageConfig{{Duration: runTime, Users: users, SpawnRate: spawnRate}}
	default:
		return nil, fmt.Errorf("either --stages or --users with --run-time is required")
	}

	profile := &config.Profile{
		Name: name,
		Endpoint: config.EndpointConfig{
			URL:         endpoint,
			PayloadFile: payloadFile,
			ContentType: contentType,
			Timeout:     timeout,
			Model:       model,
			Variants:    variants,
		},
		Stages:       stages,
		TickInterval: tick,
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// parseStages parses the CLI stage format "2m:2:2,2m:4,30s:0".
//
// Each element is duration:users[:spawnRate]; the duration is the stage's
// own length and boundaries accumulate. A missing spawnRate falls back to
// defaultRate.
func parseStages(stagesStr string, defaultRate float64) ([]config.StageConfig, error) {
	var stages []config.StageConfig
	var boundary time.Duration

	for i, part := range strings.Split(stagesStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("stage %d: expected duration:users[:spawnRate], got %q", i, part)
		}

		length, err := config.ParseDurationString(fields[0])
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		boundary += length

		stageUsers, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid user count %q", i, fields[1])
		}

		rate := defaultRate
		if len(fields) == 3 {
			rate, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("stage %d: invalid spawn rate %q", i, fields[2])
			}
		}

		stages = append(stages, config.StageConfig{
			Duration:  boundary.String(),
			Users:     stageUsers,
			SpawnRate: rate,
		})
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("no stages in %q", stagesStr)
	}
	return stages, nil
}
