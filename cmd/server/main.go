// cmd/server is the main entrypoint for one adaptive-replication node.
//
// Configuration is layered: built-in defaults, an optional YAML config
// file, ADPREPLIC_-prefixed environment variables, and flags — see
// internal/config.
//
// Example — single node:
//
//	./server --node-id dc-east --addr :8080 --data-dir /var/adpreplic/dc-east
//
// Example — node in a 3-DC cluster:
//
//	./server --node-id dc-east --addr :8080 --data-dir /tmp/east --dc-list ./dcs.conf
//
// where dcs.conf holds lines of "id=host:port", one per DC including self.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adaptive-replication/internal/api"
	"adaptive-replication/internal/config"
	"adaptive-replication/internal/dctype"
	"adaptive-replication/internal/interdc"
	"adaptive-replication/internal/membership"
	"adaptive-replication/internal/registry"
	"adaptive-replication/internal/replicamgr"
	"adaptive-replication/internal/strategy"
	"adaptive-replication/internal/valuestore"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultStrategyTag = "adaptive"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	self := dctype.DC(cfg.NodeID)

	// ── Membership ─────────────────────────────────────────────────────────
	var mem *membership.Membership
	if cfg.DCListFile != "" {
		mem, err = membership.LoadFile(cfg.DCListFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.DCListFile).Msg("load dc list")
		}
	} else {
		mem = membership.New()
	}
	mem.Join(self, cfg.Addr) // always include self, even if absent from the roster file

	// ── Storage ────────────────────────────────────────────────────────────
	vs, err := valuestore.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open value store")
	}
	defer vs.Close()

	rr := registry.New()

	se := strategy.NewEngine(map[string]strategy.Policy{
		defaultStrategyTag: strategy.AdaptiveDecay{},
	}, defaultStrategyTag)

	// ── Inter-DC manager + Replica Manager ───────────────────────────────────
	// Constructed with a circular reference: IDM's inbound handlers call back
	// into RM, RM's orchestration calls out through IDM. SetCallbacks breaks
	// the construction-order cycle (see internal/interdc.Manager).
	idm := interdc.NewManager(self, mem)
	idm.QueryDeadline = time.Duration(cfg.QueryTimeoutMS) * time.Millisecond
	idm.StateChangeDeadline = time.Duration(cfg.StateChangeTimeoutMS) * time.Millisecond

	rm := replicamgr.New(self, vs, rr, se, idm, mem, defaultStrategyTag)
	idm.SetCallbacks(rm)

	// ── HTTP server ────────────────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery())

	api.NewHandler(rm).Register(router)
	idm.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"node":   cfg.NodeID,
			"status": "ok",
			"peers":  len(mem.All()),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── Background loops ───────────────────────────────────────────────────
	// Snapshot compaction.
	snapshotStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := vs.Snapshot(); err != nil {
					log.Error().Err(err).Msg("snapshot failed")
				}
			case <-snapshotStop:
				return
			}
		}
	}()

	// Decay ticks, driving spec.md §4.3's periodic SHOULD_EVICT evaluation.
	decayStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Default.DecayTime) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rm.Tick(context.Background())
			case <-decayStop:
				return
			}
		}
	}()

	go func() {
		log.Info().Str("node", cfg.NodeID).Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Str("node", cfg.NodeID).Msg("shutting down")
	close(snapshotStop)
	close(decayStop)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := vs.Snapshot(); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
}
