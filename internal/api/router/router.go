package router

import (
	_ "embed"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"gocatalog/internal/api/attribute"
	"gocatalog/internal/api/importer"
	"gocatalog/internal/api/product"
	"gocatalog/internal/api/variant"
	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/middleware"
)

//go:embed openapi.json
var openAPIDoc []byte

// Handlers reúne os handlers já inicializados por injeção de dependências.
type Handlers struct {
	Product   *product.Handler
	Attribute *attribute.Handler
	Variant   *variant.Handler
	Importer  *importer.Handler
}

// RateLimit configura o limitador global. Cache nil desliga o limitador.
type RateLimit struct {
	Cache       cache.Client
	MaxRequests int
	Period      time.Duration
}

// NewRouter configura e retorna o roteador HTTP principal.
func NewRouter(h Handlers, tokenSvc middleware.TokenService, limit RateLimit, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.NewAuthMiddleware(tokenSvc)
	anyRole := func(next http.HandlerFunc) http.HandlerFunc { return auth(next) }
	editors := func(next http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.PermissionMiddleware(domain.RoleAdmin, domain.RoleEditor)(next))
	}
	admins := func(next http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.PermissionMiddleware(domain.RoleAdmin)(next))
	}

	// --- 1. Health check e documentação ---
	mux.HandleFunc("GET /ping", PingHandler)
	mux.HandleFunc("GET /swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(openAPIDoc)
	})
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// --- 2. Catálogo: atributos e produtos ---
	mux.HandleFunc("POST /v1/attributes", admins(h.Attribute.CreateHandler))
	mux.HandleFunc("GET /v1/attributes/{id}", anyRole(h.Attribute.GetHandler))
	mux.HandleFunc("POST /v1/products", editors(h.Product.CreateProductHandler))
	mux.HandleFunc("GET /v1/products/{id}", anyRole(h.Product.GetProductByIDHandler))

	// --- 3. Variantes ---
	mux.HandleFunc("POST /v1/products/{id}/variants/generate", editors(h.Variant.GenerateHandler))
	mux.HandleFunc("PUT /v1/products/{id}/variants/order", editors(h.Variant.ReorderHandler))
	mux.HandleFunc("POST /v1/products/{id}/aggregate", editors(h.Variant.RefreshAggregateHandler))
	mux.HandleFunc("POST /v1/variants/bulk", editors(h.Variant.BulkCreateHandler))
	mux.HandleFunc("PATCH /v1/variants", editors(h.Variant.BulkUpdateHandler))
	mux.HandleFunc("GET /v1/variants/{id}", anyRole(h.Variant.GetHandler))
	mux.HandleFunc("PATCH /v1/variants/{id}", editors(h.Variant.UpdateHandler))
	mux.HandleFunc("DELETE /v1/variants/{id}", editors(h.Variant.DeleteHandler))
	mux.HandleFunc("POST /v1/variants/{id}/stock", editors(h.Variant.AdjustStockHandler))

	// --- 4. Importação ---
	mux.HandleFunc("POST /v1/imports/variants", admins(h.Importer.ImportHandler))
	mux.HandleFunc("GET /v1/imports/template", anyRole(h.Importer.TemplateHandler))

	if limit.Cache == nil {
		return mux
	}
	return middleware.RateLimiter(limit.Cache, limit.MaxRequests, limit.Period, log)(mux)
}

// PingHandler é o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
