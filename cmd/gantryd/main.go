package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ewbankkit/gantry/internal/blob"
	"github.com/ewbankkit/gantry/internal/catalog"
	"github.com/ewbankkit/gantry/internal/config"
	"github.com/ewbankkit/gantry/internal/health"
	"github.com/ewbankkit/gantry/internal/host"
	"github.com/ewbankkit/gantry/internal/keyvalue"
	"github.com/ewbankkit/gantry/internal/middleware"
	"github.com/ewbankkit/gantry/internal/natsclient"
	"github.com/ewbankkit/gantry/internal/stream"
	"github.com/ewbankkit/gantry/internal/telemetry"
	"github.com/ewbankkit/gantry/internal/token"
)

func main() {
	// --- Structured Logger ---
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// --- Configuration (env + optional Vault overlay) ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration failed", zap.Error(err))
	}

	// --- OpenTelemetry Metrics ---
	if cfg.OTELEndpoint != "" {
		mp, err := telemetry.InitMeterProvider(context.Background(), "gantryd", cfg.OTELEndpoint)
		if err != nil {
			logger.Error("failed to init OTel metrics", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
			logger.Info("OTel metrics initialized", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	// --- NATS ---
	nc, err := natsclient.NewClient(cfg.NATSURL, logger)
	if err != nil {
		logger.Fatal("NATS connection failed", zap.Error(err))
	}
	defer nc.Close()
	broker := natsclient.NewBroker(nc)

	// --- Redis (catalog KV) ---
	kv, err := keyvalue.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Redis configuration failed", zap.Error(err))
	}

	// --- S3 (module blobs) ---
	blobs, err := blob.NewS3(context.Background(), blob.S3Config{
		Endpoint:  cfg.BlobEndpoint,
		Region:    cfg.BlobRegion,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
	})
	if err != nil {
		logger.Fatal("blob store configuration failed", zap.Error(err))
	}

	// --- Operator identity ---
	operator, signers, err := operatorIdentity(cfg)
	if err != nil {
		logger.Fatal("operator identity failed", zap.Error(err))
	}
	logger.Info("operator signer set loaded",
		zap.String("operator", operator), zap.Int("signers", len(signers)))

	// --- Services ---
	catalogSvc := catalog.New(kv, broker, logger, operator, signers)
	streamSvc := stream.New(catalogSvc, blobs, broker, logger)

	h := host.New(broker, logger)
	if err := h.Register(catalogSvc, middleware.NewJWTDecoder(logger)); err != nil {
		logger.Fatal("catalog registration failed", zap.Error(err))
	}
	if err := h.Register(streamSvc); err != nil {
		logger.Fatal("stream registration failed", zap.Error(err))
	}

	hostCtx, hostCancel := context.WithCancel(context.Background())
	go h.Run(hostCtx) //nolint:errcheck // returns ctx.Err on cancel

	// --- Health Endpoint ---
	healthSrv := health.NewServer(logger,
		health.Probe{Name: "broker", Check: func(context.Context) error {
			if !nc.Conn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}},
		health.Probe{Name: "kv", Check: kv.Ping},
		health.Probe{Name: "blob", Check: blobs.Ping},
	)
	go func() {
		if err := healthSrv.Start(cfg.HTTPAddr); err != nil {
			logger.Error("health server failed", zap.Error(err))
		}
	}()

	logger.Info("gantryd started",
		zap.String("nats", cfg.NATSURL), zap.String("http", cfg.HTTPAddr))

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("initiating graceful shutdown")
	hostCancel()
	healthSrv.Shutdown(context.Background()) //nolint:errcheck
	nc.Close()
	logger.Info("gantryd shut down cleanly")
}

// operatorIdentity resolves the signer set: either from a raw operator
// token (its subject plus valid_signers), or from the plain operator key
// and csv signers.
func operatorIdentity(cfg *config.Config) (string, []string, error) {
	if cfg.OperatorToken == "" {
		return cfg.Operator, cfg.Signers, nil
	}

	decoded, err := token.Crack(cfg.OperatorToken)
	if err != nil {
		return "", nil, err
	}
	var claims struct {
		Wascap struct {
			ValidSigners []string `json:"valid_signers"`
		} `json:"wascap"`
	}
	if err := json.Unmarshal([]byte(decoded.CanonicalJSON), &claims); err != nil {
		return "", nil, err
	}
	return decoded.Subject, claims.Wascap.ValidSigners, nil
}
