package attributerepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/cache"
	"gocatalog/internal/pkg/logger"
)

const attributeCacheKey = "attribute:%s"

// AttributeRepository é o catálogo de atributos. Atributos mudam pouco, então
// cada um fica no cache pelo TTL configurado.
type AttributeRepository struct {
	DB        *sqlx.DB
	Cache     cache.Client
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

// NewAttributeRepository cria e retorna uma nova instância do Repositório de Atributos.
func NewAttributeRepository(db *sqlx.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, log logger.Logger) *AttributeRepository {
	return &AttributeRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    log,
	}
}

type attributeRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	DisplayName string         `db:"display_name"`
	Type        string         `db:"type"`
	Values      pq.StringArray `db:"allowed_values"`
	CategoryID  sql.NullString `db:"category_id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r attributeRow) toDomain() domain.Attribute {
	a := domain.Attribute{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Type:        domain.AttributeType(r.Type),
		Values:      []string(r.Values),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if a.Values == nil {
		a.Values = []string{}
	}
	if r.CategoryID.Valid {
		c := r.CategoryID.String
		a.CategoryID = &c
	}
	return a
}

// FindAttributesByIds resolve os ids em uma única consulta ao banco para os
// que não estão no cache. Ids desconhecidos (inclusive os que nem são UUID)
// são omitidos do resultado, que segue a ordem dos ids pedidos.
func (r *AttributeRepository) FindAttributesByIds(ctx context.Context, ids []string) ([]domain.Attribute, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	found := make(map[string]domain.Attribute, len(ids))
	var misses []string
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		if _, seen := found[id]; seen {
			continue
		}
		cached, err := r.Cache.Get(ctxTimeout, fmt.Sprintf(attributeCacheKey, id))
		if err == nil {
			var a domain.Attribute
			if json.Unmarshal([]byte(cached), &a) == nil {
				found[id] = a
				continue
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("Falha ao ler atributo do cache.", map[string]interface{}{"attribute_id": id, "error": err.Error()})
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		query, args, err := sqlx.In(`
			SELECT id, name, display_name, type, allowed_values, category_id, created_at, updated_at
			FROM attributes
			WHERE id IN (?)`, misses)
		if err != nil {
			return nil, apperror.NewInternalError("Falha ao montar consulta de atributos.", err)
		}

		var rows []attributeRow
		if err := r.DB.SelectContext(ctxTimeout, &rows, r.DB.Rebind(query), args...); err != nil {
			r.logger.Error("Falha ao buscar atributos no DB.", err)
			return nil, apperror.NewDBError("Falha ao buscar atributos", err)
		}
		for _, row := range rows {
			a := row.toDomain()
			found[a.ID] = a
			if data, err := json.Marshal(a); err == nil {
				if err := r.Cache.Set(ctxTimeout, fmt.Sprintf(attributeCacheKey, a.ID), data, r.CacheTTL); err != nil {
					r.logger.Warn("Falha ao gravar atributo no cache.", map[string]interface{}{"attribute_id": a.ID, "error": err.Error()})
				}
			}
		}
	}

	out := make([]domain.Attribute, 0, len(found))
	emitted := make(map[string]bool, len(found))
	for _, id := range ids {
		if a, ok := found[id]; ok && !emitted[id] {
			emitted[id] = true
			out = append(out, a)
		}
	}
	return out, nil
}

// FindByID busca um atributo pelo id.
func (r *AttributeRepository) FindByID(ctx context.Context, id string) (domain.Attribute, error) {
	attrs, err := r.FindAttributesByIds(ctx, []string{id})
	if err != nil {
		return domain.Attribute{}, err
	}
	if len(attrs) == 0 {
		return domain.Attribute{}, apperror.NewNotFoundError(fmt.Sprintf("Atributo %s não encontrado.", id))
	}
	return attrs[0], nil
}

// Create insere um novo atributo e invalida a entrada no cache.
func (r *AttributeRepository) Create(ctx context.Context, a domain.Attribute) (domain.Attribute, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Values == nil {
		a.Values = []string{}
	}

	const insertSQL = `
		INSERT INTO attributes (id, name, display_name, type, allowed_values, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var category sql.NullString
	if a.CategoryID != nil {
		category = sql.NullString{String: *a.CategoryID, Valid: true}
	}

	if _, err := r.DB.ExecContext(ctxTimeout, insertSQL,
		a.ID, a.Name, a.DisplayName, string(a.Type), pq.Array(a.Values), category, a.CreatedAt, a.UpdatedAt); err != nil {
		r.logger.Error("Falha ao inserir atributo.", err)
		return domain.Attribute{}, apperror.NewDBError("Falha ao inserir atributo", err)
	}

	if err := r.Cache.Delete(ctxTimeout, fmt.Sprintf(attributeCacheKey, a.ID)); err != nil {
		r.logger.Warn("Falha ao invalidar atributo no cache.", map[string]interface{}{"attribute_id": a.ID, "error": err.Error()})
	}

	r.logger.Info("Atributo criado.", map[string]interface{}{"attribute_id": a.ID, "name": a.Name})
	return a, nil
}
