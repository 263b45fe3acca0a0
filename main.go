package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/CharFranR/Biogestor/cache"
	"github.com/CharFranR/Biogestor/hub"
	"github.com/CharFranR/Biogestor/ingest"
	"github.com/CharFranR/Biogestor/registry"
	"github.com/CharFranR/Biogestor/sampler"
	"github.com/CharFranR/Biogestor/store"
	"github.com/CharFranR/Biogestor/sysmon"
)

const serviceName = "biogestor-telemetry"

func main() {
	cfg := LoadConfig()

	// Bootstrap logger jen na stdout. MQTT tee přijde až po připojení
	// k brokeru — klasický problém slepice-vejce, řešíme ho ve dvou fázích.
	logLevel := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, logLevel))
	slog.SetDefault(logger)

	logger.Info("Spouštím telemetry pipeline", "config", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres pool: roster senzorů (čtení) + trvalé vzorky (zápis).
	// pgxpool je thread-safe, sdílí ho registry i sampler.
	dbPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k DB", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("Kritická chyba: DB není dostupná", "error", err)
		os.Exit(1)
	}

	// Redis: bounded cache posledních hodnot per topic.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Kritická chyba: Redis není dostupný", "error", err)
		os.Exit(1)
	}

	topicCache := cache.New(rdb, cfg.CacheSize)

	// Fan-out na dashboard: broadcast skupina + snapshot broadcaster.
	sessions := hub.New(logger)
	broadcaster := hub.NewBroadcaster(topicCache, sessions, cfg.TopicNamespace, logger)

	// MQTT ingest — jedno vlastněné spojení pro celý proces.
	broker := ingest.New(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicNamespace,
		topicCache, broadcaster, logger)
	if err := broker.Connect(); err != nil {
		logger.Error("Kritická chyba: MQTT broker nedostupný", "error", err)
		os.Exit(1)
	}
	defer broker.Disconnect()

	// Fáze 2: od teď logujeme na stdout i do MQTT.
	multi := io.MultiWriter(os.Stdout, NewMqttLogWriter(broker.Mqtt(), serviceName))
	logger = slog.New(slog.NewJSONHandler(multi, logLevel))
	slog.SetDefault(logger)
	logger.Info("Připojeno k MQTT", "broker", cfg.MQTTBroker)

	// Roster senzorů. První načtení je blokující: bez rosteru nemá
	// sampler co dělat a chyba při startu znamená crash + restart kontejneru.
	sensors := registry.New(dbPool, logger)
	if err := sensors.Load(ctx); err != nil {
		logger.Error("Kritická chyba: Nepodařilo se načíst roster senzorů", "error", err)
		os.Exit(1)
	}
	go sensors.StartAutoRefresh(ctx, cfg.RegistryRefresh)

	// Sampler: periodické trvalé ukládání posledních hodnot.
	samples := store.NewRepository(dbPool)
	saver := sampler.New(topicCache, sensors, samples,
		cfg.TopicNamespace, cfg.SampleInterval, logger)
	saver.Start(ctx)

	// Self-monitoring brány.
	monitor := sysmon.NewPublisher(broker.Mqtt(), cfg.TopicNamespace, logger)
	go monitor.Run(ctx, cfg.SysmonInterval)

	// HTTP: healthcheck pro Docker/K8s + websocket endpoint dashboardu.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /ws/sensors", hub.NewHandler(sessions, broadcaster, logger))

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: mux,
	}
	go func() {
		logger.Info("HTTP server naslouchá", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server spadl", "error", err)
		}
	}()

	// Graceful shutdown: blokujeme, dokud nepřijde SIGINT nebo SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Ukončuji službu...")
	cancel()

	// Sampler musí dojet rozpracovaný tick, pak teprve zavíráme zbytek.
	saver.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server se nepodařilo čistě ukončit", "error", err)
	}
	// Defery: disconnect MQTT, close Redis, close DB pool.
}
