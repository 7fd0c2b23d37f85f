package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gocatalog/config"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/database"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/token"

	"gocatalog/internal/api/attribute"
	"gocatalog/internal/api/importer"
	"gocatalog/internal/api/product"
	"gocatalog/internal/api/respond"
	"gocatalog/internal/api/router"
	"gocatalog/internal/api/variant"
	"gocatalog/internal/repository/attributerepo"
	"gocatalog/internal/repository/productrepo"
	"gocatalog/internal/repository/variantrepo"
	"gocatalog/internal/service/attributeservice"
	"gocatalog/internal/service/importservice"
	"gocatalog/internal/service/productservice"
	"gocatalog/internal/service/variantservice"
)

func main() {
	log.Println("⚡ Inicializando serviço GoCatalog...")
	// O .env é opcional: em containers as variáveis vêm do ambiente.
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	appLog := logger.NewLogger(cfg.LogLevel)
	defer appLog.Sync()
	appLog.Info("Configurações carregadas.", map[string]interface{}{"env": cfg.Environment})

	// 1. Infraestrutura
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	appLog.Info("Conexão PostgreSQL estabelecida.", nil)

	cacheClient, err := cache.NewRedisClient(cfg.RedisAddr, cfg.CacheTimeout)
	if err != nil {
		// Sem Redis o catálogo segue funcionando: cache vira miss e o rate limit libera.
		appLog.Warn("Redis indisponível; seguindo sem cache.", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
	} else {
		appLog.Info("Conexão Redis estabelecida.", nil)
	}

	// 2. Injeção de dependências: Repository -> Service -> Handler
	productRepo := productrepo.NewProductRepository(db, cacheClient, cfg.DBTimeout, cfg.ProductCacheTTL, appLog)
	attributeRepo := attributerepo.NewAttributeRepository(db, cacheClient, cfg.DBTimeout, cfg.AttributeCacheTTL, appLog)
	variantRepo := variantrepo.NewVariantRepository(db, cfg.DBTimeout, appLog)
	appLog.Debug("Repositórios inicializados.", nil)

	aggregates := variantservice.NewAggregateMaintainer(variantRepo, productRepo, appLog)
	reconciler := variantservice.NewReconciler(variantRepo, attributeRepo, aggregates, appLog, cfg.MaxBatchSize)
	variantSvc := variantservice.NewService(productRepo, variantRepo, attributeRepo, reconciler, aggregates, appLog, cfg.MaxCombinations)
	importSvc := importservice.NewService(productRepo, variantRepo, reconciler, appLog, cfg.MaxImportRows)
	productSvc := productservice.NewService(productRepo, appLog)
	attributeSvc := attributeservice.NewService(attributeRepo, appLog)
	appLog.Debug("Serviços inicializados.", nil)

	resp := respond.New(appLog)
	handlers := router.Handlers{
		Product:   product.NewHandler(productSvc, resp),
		Attribute: attribute.NewHandler(attributeSvc, resp),
		Variant:   variant.NewHandler(variantSvc, resp),
		Importer:  importer.NewHandler(importSvc, resp),
	}

	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	limit := router.RateLimit{
		Cache:       cacheClient,
		MaxRequests: cfg.RateLimitMaxRequests,
		Period:      cfg.RateLimitPeriod,
	}

	// 3. Servidor
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(handlers, tokenSvc, limit, appLog),
		ReadTimeout:  30 * time.Second, // uploads de planilha
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLog.Info("Servidor GoCatalog ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Servidor falhou.", err)
		}
	}()

	// 4. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLog.Error("Desligamento do servidor forçado.", err)
	}
	appLog.Info("Servidor encerrado com sucesso.", nil)
}
