package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"oci-instance-grabber/allocator"
	"oci-instance-grabber/config"
	"oci-instance-grabber/faillog"
	"oci-instance-grabber/health"
	"oci-instance-grabber/metrics"
	"oci-instance-grabber/notify"
	npubsub "oci-instance-grabber/notify/pubsub"
	"oci-instance-grabber/provider"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	setLogger(os.Getenv("GRABBER_LOG_LEVEL"))
	log.Info().Msgf("Starting oci-instance-grabber version: %s", version)
	cfg := config.Load()
	setLogger(cfg.LogLevel)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	// Context and shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics and health HTTP server
	var ready atomic.Bool
	mux := http.NewServeMux()
	metrics.Register(mux)
	health.Register(mux, ready.Load)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting metrics/health server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	client, err := provider.New(cfg.OCIProfile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build OCI client; check ~/.oci/config")
	}

	compartment := cfg.CompartmentID
	if compartment == "" {
		compartment = client.Tenancy()
	}

	sshKey, err := os.ReadFile(cfg.SSHKeyFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SSHKeyFile).Msg("failed to read SSH public key")
	}

	subnetID, err := client.ResolveNetwork(ctx, compartment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve VCN/subnet")
	}

	imageID := cfg.ImageID
	if imageID == "" {
		imageID, err = client.ResolveImage(ctx, compartment, cfg.Shape)
		if err != nil {
			log.Fatal().Err(err).Str("shape", cfg.Shape).Msg("failed to resolve image")
		}
	}

	ads, err := client.ListAvailabilityDomains(ctx, compartment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list availability domains")
	}

	tmpl := allocator.Template{
		CompartmentID: compartment,
		Shape:         cfg.Shape,
		DisplayName:   cfg.DisplayName,
		ImageID:       imageID,
		SubnetID:      subnetID,
		Ocpus:         cfg.Ocpus,
		MemoryInGBs:   cfg.MemoryInGBs,
		SSHPublicKey:  string(sshKey),
	}
	candidates, err := allocator.BuildCandidates(tmpl, ads)
	if err != nil {
		log.Fatal().Err(err).Str("compartment", compartment).Msg("nothing to try")
	}
	log.Info().Int("candidates", len(candidates)).Str("shape", cfg.Shape).Msg("starting acquisition loop")
	ready.Store(true)

	ctrl := allocator.NewController(faillog.New(cfg.FailLogPath), cfg.TransientBackoff, cfg.RejectedBackoff)
	res, err := ctrl.Run(ctx, candidates, client.Launch)
	if err != nil {
		log.Fatal().Err(err).Msg("acquisition loop could not start")
	}

	switch res.Reason {
	case allocator.ReasonAcquired:
		log.Info().
			Str("instanceId", res.InstanceID).
			Str("availabilityDomain", res.AvailabilityDomain).
			Int("attempts", res.Attempts).
			Msg("FINALLY: instance acquired")
		notifyAcquired(cfg, res)
	case allocator.ReasonCancelled:
		log.Info().Int("attempts", res.Attempts).Msg("interrupt received -- exiting")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

// notifyAcquired publishes the success event when a result topic is
// configured. A failed publish is logged only; the instance is already won.
func notifyAcquired(cfg *config.Config, res allocator.Result) {
	if cfg.ResultTopic == "" || cfg.GoogleProjectID == "" {
		return
	}
	pub := npubsub.NewPublisher(cfg.GoogleProjectID, cfg.ResultTopic, cfg.CredentialsFile)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ev := &notify.Event{
		EnvelopeVersion:    "1.0",
		Type:               "instance-acquired",
		InstanceID:         res.InstanceID,
		AvailabilityDomain: res.AvailabilityDomain,
		DisplayName:        cfg.DisplayName,
		AcquiredAt:         time.Now().UTC(),
	}
	if err := pub.PublishAcquired(ctx, ev); err != nil {
		log.Error().Err(err).Str("topic", cfg.ResultTopic).Msg("failed to publish acquisition event")
	}
}
