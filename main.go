package main

import (
	"context"
	"fmt"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/thapovan-inc/orion-llmobs-relay/bookkeeper"
	"github.com/thapovan-inc/orion-llmobs-relay/consumer"
	"github.com/thapovan-inc/orion-llmobs-relay/ingest"
	"github.com/thapovan-inc/orion-llmobs-relay/lifecycle"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"github.com/thapovan-inc/orion-llmobs-relay/writer"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 5 * time.Second
)

var (
	configFile string
	freshState bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "orion-llmobs-relay",
		Short:        "Relays LLM Observability spans and evaluation metrics to the Datadog intake",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	rootCmd.Flags().StringVar(&configFile, "config", "default.toml", "path to the toml config file")
	rootCmd.Flags().BoolVar(&freshState, "fresh", false, "discard pending orion spans left by a previous run")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	fmt.Println(`
   ____       _           
  / __ \_____(_)___  ____ 
 / / / / ___/ / __ \/ __ \
/ /_/ / /  / / /_/ / / / /
\____/_/  /_/\____/_/ /_/ 
	
	`)
	fmt.Println("Loading config file from", configFile)
	util.LoadConfigFromFile(configFile)
	util.SetupLoggerConfig()
	logger := util.GetLogger("main", "run")
	defer logger.Sync()
	config := util.GetConfig()

	if err := bookkeeper.InitBookKeeperFromConfig(); err != nil {
		return errors.Annotate(err, "unable to init book keeper")
	}
	defer bookkeeper.Cleanup()
	bk, _ := bookkeeper.GetBookKeeper()
	if freshState {
		if err := bk.Discard(); err != nil {
			logger.Warn("Unable to discard pending spans", zap.Error(err))
		}
	}

	serveMetrics(config.Metrics.ListenAddress, logger)

	writerConfig := writer.ConfigFromSettings(config.LLMObs, config.General.BufferLimit)
	writerOpts := []writer.Option{
		writer.WithLogger(util.GetLogger("writer", "run")),
		writer.WithRegisterer(prometheus.DefaultRegisterer),
	}
	spanWriter, err := writer.NewSpanWriter(writerConfig, writerOpts...)
	if err != nil {
		return errors.Annotate(err, "unable to create span writer")
	}
	if err := spanWriter.Start(); err != nil {
		return err
	}
	logger.Info("Span writer started", zap.Stringer("mode", writerConfig.Mode), zap.Strings("urls", spanWriter.URLs()))

	var metricSink ingest.MetricSink
	if config.LLMObs.EvalMetrics {
		evalWriter, err := writer.NewEvalMetricWriter(writerConfig, writerOpts...)
		if err != nil {
			logger.Warn("Evaluation metrics disabled", zap.Error(err))
		} else if err := evalWriter.Start(); err != nil {
			return multierr.Append(errors.Annotate(err, "unable to start evaluation metric writer"), shutdown(logger))
		} else {
			metricSink = evalWriter
		}
	}

	assembler := ingest.NewAssembler(bk, spanWriter, config.General.Namespace, config.LLMObs.MLApp,
		util.GetLogger("ingest", "Assembler"))
	router := ingest.NewRouter(ingest.RouterConfig{OrionTopic: config.General.OrionTopic, MLApp: config.LLMObs.MLApp},
		spanWriter, metricSink, assembler, util.GetLogger("ingest", "Router"))
	routerPID := router.PrepareActor()

	if err := consumer.InitConsumerFromConfig(); err != nil {
		return multierr.Append(errors.Annotate(err, "unable to init event source"), shutdown(logger))
	}
	source, _ := consumer.GetConsumer()
	topics := []string{config.General.Topic}
	if config.General.OrionTopic != "" {
		topics = append(topics, config.General.OrionTopic)
	}
	if err := source.Subscribe(routerPID, topics...); err != nil {
		return multierr.Append(errors.Annotatef(err, "unable to subscribe to %v", topics), shutdown(logger))
	}
	logger.Info("Subscribed", zap.Strings("topics", topics))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		logger.Info("Received signal. Exiting now", zap.String("signal", sig.String()))
	case <-router.Done():
		logger.Error("Router stopped. Exiting now")
	}

	if err := source.Close(); err != nil {
		logger.Warn("Unable to close event source", zap.Error(err))
	}
	routerPID.Poison()
	if !router.Wait(drainTimeout) {
		logger.Warn("Router did not drain in time", zap.Duration("timeout", drainTimeout))
	}
	return shutdown(logger)
}

// shutdown runs the final flushes and the other registered hooks.
func shutdown(logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := lifecycle.Run(ctx)
	if err != nil {
		logger.Error("Shutdown hooks failed", zap.Error(err))
	}
	return err
}

func serveMetrics(address string, logger *zap.Logger) {
	if address == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: address, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.String("address", address), zap.Error(err))
		}
	}()
	lifecycle.Register("metrics-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	logger.Info("Serving metrics", zap.String("address", address))
}
