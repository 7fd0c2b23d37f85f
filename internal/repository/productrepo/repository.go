package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/database"
	"gocatalog/internal/pkg/logger"
)

// Define a chave de cache para produtos.
const productCacheKey = "product:%s"

const productColumns = `id, name, description, base_price, min_price, max_price, has_variants, is_active, created_at, updated_at`

// ProductRepository acessa a tabela products, com cache-aside no Redis para
// leituras por id.
type ProductRepository struct {
	DB        *sqlx.DB     // Conexão principal com o banco de dados (PostgreSQL)
	Cache     cache.Client // Cliente para operações de cache (Redis)
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewProductRepository(db *sqlx.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, log logger.Logger) *ProductRepository {
	return &ProductRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    log,
	}
}

type productRow struct {
	ID          string              `db:"id"`
	Name        string              `db:"name"`
	Description string              `db:"description"`
	BasePrice   decimal.Decimal     `db:"base_price"`
	MinPrice    decimal.NullDecimal `db:"min_price"`
	MaxPrice    decimal.NullDecimal `db:"max_price"`
	HasVariants bool                `db:"has_variants"`
	IsActive    bool                `db:"is_active"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		BasePrice:   r.BasePrice,
		MinPrice:    fromNull(r.MinPrice),
		MaxPrice:    fromNull(r.MaxPrice),
		HasVariants: r.HasVariants,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Create insere um novo produto. Nome repetido entre produtos ativos vira
// ConflictError.
func (r *ProductRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	const insertSQL = `
		INSERT INTO products (id, name, description, base_price, has_variants, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7)`

	_, err := r.DB.ExecContext(ctxTimeout, insertSQL,
		product.ID, product.Name, product.Description, product.BasePrice, product.IsActive, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			return domain.Product{}, apperror.NewConflictError(fmt.Sprintf("Já existe um produto ativo chamado %q.", product.Name))
		}
		r.logger.Error("Falha ao inserir produto.", err)
		return domain.Product{}, apperror.NewDBError("Falha ao inserir produto", err)
	}

	product.MinPrice, product.MaxPrice, product.HasVariants = nil, nil, false
	r.logger.Info("Produto criado.", map[string]interface{}{"product_id": product.ID, "name": product.Name})
	return product, nil
}

// FindByID busca um produto pelo ID, utilizando a estratégia Cache-Aside.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", id))
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(productCacheKey, id)
	var product domain.Product

	// Cache HIT
	cached, err := r.Cache.Get(ctxTimeout, key)
	if err == nil {
		if json.Unmarshal([]byte(cached), &product) == nil {
			return product, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		// Erro real de cache: segue para o banco.
		r.logger.Warn("Falha ao ler produto do cache.", map[string]interface{}{"product_id": id, "error": err.Error()})
	}

	var row productRow
	err = r.DB.GetContext(ctxTimeout, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar produto no DB.", err)
		return domain.Product{}, apperror.NewDBError("Falha ao buscar produto no DB", err)
	}
	product = row.toDomain()

	if data, marshalErr := json.Marshal(product); marshalErr == nil {
		if setErr := r.Cache.Set(ctxTimeout, key, data, r.CacheTTL); setErr != nil {
			r.logger.Warn("Falha ao gravar produto no cache.", map[string]interface{}{"product_id": id, "error": setErr.Error()})
		}
	}
	return product, nil
}

// FindActiveByName busca o produto ativo com o nome informado, sem
// diferenciar maiúsculas.
func (r *ProductRepository) FindActiveByName(ctx context.Context, name string) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var row productRow
	err := r.DB.GetContext(ctxTimeout, &row,
		`SELECT `+productColumns+` FROM products WHERE LOWER(name) = LOWER($1) AND is_active`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto ativo %q não encontrado.", name))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar produto por nome.", err)
		return domain.Product{}, apperror.NewDBError("Falha ao buscar produto por nome", err)
	}
	return row.toDomain(), nil
}

// UpdateProductAggregate grava min/max de preço e hasVariants e invalida o
// produto no cache.
func (r *ProductRepository) UpdateProductAggregate(ctx context.Context, productID string, minPrice, maxPrice *decimal.Decimal, hasVariants bool) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const updateSQL = `
		UPDATE products
		SET min_price = $1, max_price = $2, has_variants = $3, updated_at = NOW()
		WHERE id = $4`

	result, err := r.DB.ExecContext(ctxTimeout, updateSQL, toNull(minPrice), toNull(maxPrice), hasVariants, productID)
	if err != nil {
		r.logger.Error("Falha ao atualizar agregados do produto.", err)
		return apperror.NewDBError("Falha ao atualizar agregados do produto", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", productID))
	}

	if err := r.Cache.Delete(ctxTimeout, fmt.Sprintf(productCacheKey, productID)); err != nil {
		r.logger.Warn("Falha ao invalidar produto no cache.", map[string]interface{}{"product_id": productID, "error": err.Error()})
	}
	return nil
}

func toNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNull(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}
