// Package main запускает сервис интеграции признаков и оценки риска техники.
// Сервис реализует:
// - пакетный прогон: агрегация источников, интеграция признаков, обучение модели аномалий
// - онлайн-оценку записи теми же функциями признаков
// - кэширование признаков и оценок в Redis
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"equipment-insight/internal/cache"
	"equipment-insight/internal/config"
	"equipment-insight/internal/handlers"
	"equipment-insight/internal/logger"
	"equipment-insight/internal/pipeline"
	"equipment-insight/internal/synthetic"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "equipment-insight")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting equipment insight service",
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
	)

	// Пробуем подключиться к Redis с повторами
	var redisCache *cache.RedisCache
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		cancel()
		if err == nil {
			log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
			break
		}
		log.Warn("redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	var store handlers.Cache
	if err != nil {
		log.Warn("running without cache", zap.Error(err))
	} else {
		store = redisCache
	}

	orchestrator := pipeline.NewOrchestrator(cfg.Anomaly(), log)
	sources := func(req handlers.TrainRequest) synthetic.Source {
		sc := cfg.Synthetic()
		if req.Equipment > 0 {
			sc.Equipment = req.Equipment
		}
		if req.Seed != 0 {
			sc.Seed = req.Seed
		}
		return synthetic.NewGenerator(sc)
	}
	handler := handlers.NewHandler(orchestrator, sources, store, log)

	if cfg.TrainOnStart {
		if _, err := handler.Train(context.Background(), handlers.TrainRequest{}); err != nil {
			log.Error("initial training failed, serving untrained", zap.Error(err))
		}
	}

	// Настраиваем маршруты
	router := mux.NewRouter()
	handler.Register(router)

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	router.Use(loggingMiddleware(log))

	recovered := ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(zap.NewStdLog(log)),
		ghandlers.PrintRecoveryStack(true),
	)(router)

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      recovered,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("server listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	if redisCache != nil {
		redisCache.Close()
	}

	log.Info("server stopped")
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
