package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httpapi "github.com/accord-app/accord/internal/api/http"
	appDispute "github.com/accord-app/accord/internal/application/dispute"
	appUsage "github.com/accord-app/accord/internal/application/usage"
	"github.com/accord-app/accord/internal/cluster"
	"github.com/accord-app/accord/internal/config"
	domainUsage "github.com/accord-app/accord/internal/domain/usage"
	"github.com/accord-app/accord/internal/infrastructure/engine"
	"github.com/accord-app/accord/internal/infrastructure/identity"
	"github.com/accord-app/accord/internal/infrastructure/postgres"
	"github.com/accord-app/accord/internal/infrastructure/push"
	"github.com/accord-app/accord/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate error: %v", err)
	}

	// infrastructure
	checkpointRepo := postgres.NewCheckpointRepository(pool, logger)
	caseRepo := postgres.NewCaseRepository(pool)
	locker := postgres.NewAdvisoryLocker(pool)
	credRepo := postgres.NewCredentialRepository(pool)
	verifier := identity.NewBcryptVerifier(credRepo.HashFor)
	pusher := push.NewLogPusher(logger)
	engineClient := engine.NewClient(cfg.EngineBaseURL, cfg.PipelineTimeout, logger)

	bus := postgres.NewBus(pool, "accord_state", cfg.NodeID, logger)
	changeBus := postgres.NewBus(pool, "accord_change", cfg.NodeID, logger)

	// coordinator: raft when a bind address is configured, single-node
	// otherwise
	var coord appDispute.Coordinator = cluster.NewSingleNode()
	var raftNode *cluster.Node
	if cfg.RaftBind != "" {
		raftNode, err = cluster.NewNode(cluster.Config{
			NodeID:    cfg.NodeID,
			RaftAddr:  cfg.RaftBind,
			DataDir:   cfg.RaftDir,
			Bootstrap: cfg.RaftBootstrap,
		})
		if err != nil {
			log.Fatalf("cluster error: %v", err)
		}
		defer func() { _ = raftNode.Shutdown() }()
		coord = raftNode
	}

	// services
	usageSvc, err := appUsage.NewService(map[domainUsage.FeatureClass]string{
		domainUsage.FeatureVerdictPipeline:  cfg.UsagePolicy,
		domainUsage.FeatureHybridResolution: cfg.UsagePolicy,
	}, logger)
	if err != nil {
		log.Fatalf("usage policy error: %v", err)
	}

	store := appDispute.NewStore(appDispute.ChangeRelay(changeBus, logger))
	sched := appDispute.NewScheduler()
	defer sched.Stop()

	var disputeSvc *appDispute.Service
	hub := sse.NewHub(func(userID uuid.UUID) {
		if disputeSvc != nil {
			disputeSvc.NotifyPartnerOffline(context.Background(), userID)
		}
	})
	fanout := sse.NewFanout(hub, bus, logger)

	disputeSvc = appDispute.NewService(
		store,
		sched,
		engineClient,
		usageSvc,
		locker,
		checkpointRepo,
		caseRepo,
		fanout,
		pusher,
		coord,
		appDispute.Config{
			PendingTimeout:    cfg.PendingTimeout,
			EvidenceTimeout:   cfg.EvidenceTimeout,
			AnalyzingTimeout:  cfg.AnalyzingTimeout,
			PrimingTimeout:    cfg.PrimingTimeout,
			JointTimeout:      cfg.JointTimeout,
			ResolutionTimeout: cfg.ResolutionTimeout,
			VerdictTimeout:    cfg.VerdictTimeout,
			SettlementTimeout: cfg.SettlementTimeout,
			CleanupDelay:      cfg.CleanupDelay,
			PipelineTimeout:   cfg.PipelineTimeout,
			LockTimeout:       cfg.LockTimeout,
			LockRetryDelay:    cfg.LockRetryDelay,
			AddendumLimit:     cfg.AddendumLimit,
		},
		logger,
	)

	if _, err := disputeSvc.RecoverAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("checkpoint recovery failed; continuing empty")
	}

	// background loops
	busCtx, busCancel := context.WithCancel(ctx)
	defer busCancel()
	go bus.Run(busCtx, fanout.HandleRemote)
	go changeBus.Run(busCtx, disputeSvc.HandleRemoteChange)

	// API server
	var clusterMgr httpapi.ClusterManager
	if raftNode != nil {
		clusterMgr = raftNode
	}
	apiServer := httpapi.NewServer(disputeSvc, hub, verifier, clusterMgr, cfg.RateLimitPerMinute, logger)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: the stream endpoint holds connections open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	if raftNode != nil {
		if cfg.RaftJoinAddr != "" {
			go joinCluster(logger, cfg.RaftJoinAddr, raftNode.ID(), raftNode.RaftAddr())
		} else {
			waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
			leader, err := raftNode.WaitForLeader(waitCtx, 0)
			waitCancel()
			if err != nil {
				logger.Warn().Err(err).Msg("no raft leader yet; timers stay idle until election")
			} else {
				logger.Info().Str("leader", leader).Msg("raft leader elected")
			}
		}
	}

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	hub.Stop()
}

// joinCluster asks an existing peer's API to admit this node as a voter,
// retrying while the cluster elects a leader.
func joinCluster(logger zerolog.Logger, joinAddr, nodeID, raftAddr string) {
	payload, _ := json.Marshal(map[string]string{"nodeId": nodeID, "raftAddr": raftAddr})
	url := fmt.Sprintf("http://%s/v1/cluster/join", joinAddr)
	client := &http.Client{Timeout: 5 * time.Second}
	for attempt := 0; attempt < 30; attempt++ {
		resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				logger.Info().Str("join_addr", joinAddr).Msg("joined raft cluster")
				return
			}
		}
		time.Sleep(2 * time.Second)
	}
	logger.Error().Str("join_addr", joinAddr).Msg("giving up joining raft cluster")
}
