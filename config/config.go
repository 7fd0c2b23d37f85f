package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config armazena todas as configurações do serviço de catálogo.
type Config struct {
	// Geral
	Port        string
	Environment string
	LogLevel    string

	// Banco de Dados (PostgreSQL)
	DatabaseURL string
	DBTimeout   time.Duration

	// Cache (Redis)
	RedisAddr         string
	CacheTimeout      time.Duration
	AttributeCacheTTL time.Duration
	ProductCacheTTL   time.Duration

	// Segurança (JWT)
	JWTSecretKey string
	TokenExpiry  time.Duration

	// Rate Limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	// Tetos do motor de variantes
	MaxCombinations int // produto cartesiano máximo por geração
	MaxBatchSize    int // propostas por lote do reconciliador
	MaxImportRows   int // linhas por planilha importada
}

// LoadConfig carrega as configurações a partir das variáveis de ambiente.
// O .env (quando existe) já foi carregado pelo main via godotenv.
func LoadConfig() *Config {
	cfg := &Config{
		// 1. Geral
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// 2. Banco de Dados (PostgreSQL)
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		DBTimeout:   getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,

		// 3. Cache (Redis)
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTimeout:      getDurationEnv("CACHE_TIMEOUT_SEC", 10) * time.Second,
		AttributeCacheTTL: getDurationEnv("ATTRIBUTE_CACHE_TTL_MIN", 30) * time.Minute,
		ProductCacheTTL:   getDurationEnv("PRODUCT_CACHE_TTL_MIN", 5) * time.Minute,

		// 4. Segurança (JWT)
		JWTSecretKey: mustGetEnv("JWT_SECRET_KEY"),
		TokenExpiry:  getDurationEnv("JWT_EXPIRY_MIN", 60) * time.Minute,

		// 5. Rate Limiting
		RateLimitMaxRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitPeriod:      getDurationEnv("RATE_LIMIT_PERIOD_MIN", 1) * time.Minute,

		// 6. Motor de variantes
		MaxCombinations: getIntEnv("MAX_COMBINATIONS", 100),
		MaxBatchSize:    getIntEnv("MAX_BATCH_SIZE", 100),
		MaxImportRows:   getIntEnv("MAX_IMPORT_ROWS", 5000),
	}

	return cfg
}

// getEnv lê a variável de ambiente ou retorna um valor padrão.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// mustGetEnv lê a variável de ambiente, fatal se não estiver presente.
func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Fatalf("❌ Erro de Configuração: A variável de ambiente %s deve ser definida.", key)
	return ""
}

// getDurationEnv lê uma variável numérica e a retorna como time.Duration (sem unidade).
func getDurationEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue))
}

// getIntEnv lê uma variável de ambiente numérica e retorna-a como int.
// Valores inválidos ou não positivos usam o padrão.
func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um inteiro positivo. Usando padrão (%d).", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
