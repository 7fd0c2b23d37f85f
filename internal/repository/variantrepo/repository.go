package variantrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/database"
	"gocatalog/internal/pkg/logger"
)

const variantColumns = `id, product_id, sku, price, compare_price, cost_price, stock, reserved_stock, images,
	is_default, is_active, display_order, version, created_at, updated_at`

// VariantRepository acessa product_variants e variant_attributes.
type VariantRepository struct {
	DB        *sqlx.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewVariantRepository cria e retorna uma nova instância do Repositório de Variantes.
func NewVariantRepository(db *sqlx.DB, dbTimeout time.Duration, log logger.Logger) *VariantRepository {
	return &VariantRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    log,
	}
}

type variantRow struct {
	ID            string              `db:"id"`
	ProductID     string              `db:"product_id"`
	SKU           string              `db:"sku"`
	Price         decimal.Decimal     `db:"price"`
	ComparePrice  decimal.NullDecimal `db:"compare_price"`
	CostPrice     decimal.NullDecimal `db:"cost_price"`
	Stock         int                 `db:"stock"`
	ReservedStock int                 `db:"reserved_stock"`
	Images        pq.StringArray      `db:"images"`
	IsDefault     bool                `db:"is_default"`
	IsActive      bool                `db:"is_active"`
	DisplayOrder  int                 `db:"display_order"`
	Version       int                 `db:"version"`
	CreatedAt     time.Time           `db:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at"`
}

type assignmentRow struct {
	VariantID    string         `db:"variant_id"`
	AttributeID  string         `db:"attribute_id"`
	Value        string         `db:"value"`
	DisplayValue sql.NullString `db:"display_value"`
}

func fromDomain(v domain.Variant) variantRow {
	images := v.Images
	if images == nil {
		images = []string{}
	}
	return variantRow{
		ID:            v.ID,
		ProductID:     v.ProductID,
		SKU:           v.SKU,
		Price:         v.Price,
		ComparePrice:  toNull(v.ComparePrice),
		CostPrice:     toNull(v.CostPrice),
		Stock:         v.Stock,
		ReservedStock: v.ReservedStock,
		Images:        pq.StringArray(images),
		IsDefault:     v.IsDefault,
		IsActive:      v.IsActive,
		DisplayOrder:  v.DisplayOrder,
		Version:       v.Version,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func (r variantRow) toDomain() domain.Variant {
	images := []string(r.Images)
	if images == nil {
		images = []string{}
	}
	return domain.Variant{
		ID:            r.ID,
		ProductID:     r.ProductID,
		SKU:           r.SKU,
		Price:         r.Price,
		ComparePrice:  fromNull(r.ComparePrice),
		CostPrice:     fromNull(r.CostPrice),
		Stock:         r.Stock,
		ReservedStock: r.ReservedStock,
		Images:        images,
		IsDefault:     r.IsDefault,
		IsActive:      r.IsActive,
		DisplayOrder:  r.DisplayOrder,
		Version:       r.Version,
		Attributes:    []domain.AttributeAssignment{},
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// FindExistingSKUs devolve, em uma única consulta, quais dos SKUs já existem.
func (r *VariantRepository) FindExistingSKUs(ctx context.Context, skus []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(skus) == 0 {
		return existing, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var found []string
	if err := r.DB.SelectContext(ctxTimeout, &found, `SELECT sku FROM product_variants WHERE sku = ANY($1)`, pq.Array(skus)); err != nil {
		r.logger.Error("Falha ao consultar SKUs existentes.", err)
		return nil, apperror.NewDBError("Falha ao consultar SKUs existentes", err)
	}
	for _, sku := range found {
		existing[sku] = struct{}{}
	}
	return existing, nil
}

// FindExistingProductIDs devolve quais dos ids pertencem a produtos
// cadastrados, na mesma grafia recebida. Ids que não são UUID nunca existem e
// não chegam ao banco.
func (r *VariantRepository) FindExistingProductIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	byCanonical := canonicalUUIDs(ids)
	if len(byCanonical) == 0 {
		return existing, nil
	}

	candidates := make([]string, 0, len(byCanonical))
	for id := range byCanonical {
		candidates = append(candidates, id)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var found []string
	if err := r.DB.SelectContext(ctxTimeout, &found, `SELECT id::text FROM products WHERE id = ANY($1::uuid[])`, pq.Array(candidates)); err != nil {
		r.logger.Error("Falha ao consultar produtos do lote.", err)
		return nil, apperror.NewDBError("Falha ao consultar produtos", err)
	}
	for _, id := range found {
		for _, original := range byCanonical[id] {
			existing[original] = struct{}{}
		}
	}
	return existing, nil
}

// canonicalUUIDs agrupa os ids válidos pela forma canônica do UUID.
func canonicalUUIDs(ids []string) map[string][]string {
	out := make(map[string][]string)
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		key := parsed.String()
		out[key] = append(out[key], id)
	}
	return out
}

// CreateVariantsAtomically grava todas as variantes e suas atribuições em uma
// única transação. Uma variante padrão nova tira a marca das anteriores do
// mesmo produto.
func (r *VariantRepository) CreateVariantsAtomically(ctx context.Context, variants []domain.Variant) ([]domain.Variant, error) {
	if len(variants) == 0 {
		return []domain.Variant{}, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctxTimeout, nil)
	if err != nil {
		r.logger.Error("Falha ao iniciar transação de criação de variantes.", err)
		return nil, apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback() // Rollback em caso de erro

	cleared := make(map[string]bool)
	for _, v := range variants {
		if v.IsDefault && !cleared[v.ProductID] {
			cleared[v.ProductID] = true
			if err := clearDefault(ctxTimeout, tx, v.ProductID, ""); err != nil {
				return nil, err
			}
		}
	}

	const insertVariantSQL = `
		INSERT INTO product_variants (` + variantColumns + `)
		VALUES (:id, :product_id, :sku, :price, :compare_price, :cost_price, :stock, :reserved_stock, :images,
			:is_default, :is_active, :display_order, :version, :created_at, :updated_at)`

	const insertAssignmentSQL = `
		INSERT INTO variant_attributes (variant_id, attribute_id, value, display_value)
		VALUES (:variant_id, :attribute_id, :value, :display_value)`

	for _, v := range variants {
		if _, err := tx.NamedExecContext(ctxTimeout, insertVariantSQL, fromDomain(v)); err != nil {
			return nil, r.translateWriteError("Falha ao inserir variante", v.SKU, err)
		}
		for _, a := range v.Attributes {
			row := assignmentRow{VariantID: v.ID, AttributeID: a.AttributeID, Value: a.Value}
			if a.DisplayValue != nil {
				row.DisplayValue = sql.NullString{String: *a.DisplayValue, Valid: true}
			}
			if _, err := tx.NamedExecContext(ctxTimeout, insertAssignmentSQL, row); err != nil {
				return nil, r.translateWriteError("Falha ao inserir atributo da variante", v.SKU, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Falha ao commitar transação de criação de variantes.", err)
		return nil, apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.logger.Info("Variantes criadas.", map[string]interface{}{"count": len(variants)})
	return append([]domain.Variant(nil), variants...), nil
}

// FindActiveVariantsByProduct lista as variantes ativas do produto com suas atribuições.
func (r *VariantRepository) FindActiveVariantsByProduct(ctx context.Context, productID string) ([]domain.Variant, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return []domain.Variant{}, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var rows []variantRow
	err := r.DB.SelectContext(ctxTimeout, &rows, `
		SELECT `+variantColumns+`
		FROM product_variants
		WHERE product_id = $1 AND is_active
		ORDER BY display_order, created_at`, productID)
	if err != nil {
		r.logger.Error("Falha ao listar variantes ativas.", err)
		return nil, apperror.NewDBError("Falha ao listar variantes ativas", err)
	}

	variants := make([]domain.Variant, 0, len(rows))
	for _, row := range rows {
		variants = append(variants, row.toDomain())
	}
	if err := r.loadAssignments(ctxTimeout, r.DB, variants); err != nil {
		return nil, err
	}
	return variants, nil
}

// CountVariantsByProduct conta todas as variantes do produto, ativas ou não.
func (r *VariantRepository) CountVariantsByProduct(ctx context.Context, productID string) (int, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return 0, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var n int
	if err := r.DB.GetContext(ctxTimeout, &n, `SELECT COUNT(*) FROM product_variants WHERE product_id = $1`, productID); err != nil {
		r.logger.Error("Falha ao contar variantes.", err)
		return 0, apperror.NewDBError("Falha ao contar variantes", err)
	}
	return n, nil
}

// FindVariantByID busca uma variante com suas atribuições.
func (r *VariantRepository) FindVariantByID(ctx context.Context, id string) (domain.Variant, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	v, err := r.selectVariant(ctxTimeout, r.DB, id, false)
	if err != nil {
		return domain.Variant{}, err
	}
	variants := []domain.Variant{v}
	if err := r.loadAssignments(ctxTimeout, r.DB, variants); err != nil {
		return domain.Variant{}, err
	}
	return variants[0], nil
}

// UpdateVariant aplica o patch utilizando transação e controle de concorrência
// otimista (OCC). Sem versão no patch, a versão lida na transação é a esperada.
func (r *VariantRepository) UpdateVariant(ctx context.Context, id string, patch domain.VariantPatch) (domain.Variant, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctxTimeout, nil)
	if err != nil {
		r.logger.Error("Falha ao iniciar transação para atualização de variante.", err)
		return domain.Variant{}, apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	// 1. Variante atual, com FOR UPDATE para bloquear a linha na transação
	current, err := r.selectVariant(ctxTimeout, tx, id, true)
	if err != nil {
		return domain.Variant{}, err
	}
	if patch.Version != nil && *patch.Version != current.Version {
		r.logger.Warn("Versão da variante desatualizada.", map[string]interface{}{
			"variant_id":       id,
			"expected_version": *patch.Version,
			"current_version":  current.Version,
		})
		return domain.Variant{}, apperror.NewConflictError("A variante foi modificada por outra operação. Tente novamente.")
	}

	// 2. Aplicar o patch
	next := applyPatch(current, patch)
	if next.Stock < next.ReservedStock {
		return domain.Variant{}, apperror.NewValidationError(fmt.Sprintf("O estoque (%d) não pode ficar abaixo do reservado (%d).", next.Stock, next.ReservedStock))
	}
	if patch.IsDefault != nil && *patch.IsDefault && !current.IsDefault {
		if err := clearDefault(ctxTimeout, tx, current.ProductID, current.ID); err != nil {
			return domain.Variant{}, err
		}
	}

	// 3. Atualizar com OCC
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now().UTC()
	row := fromDomain(next)
	result, err := tx.ExecContext(ctxTimeout, `
		UPDATE product_variants
		SET price = $1, compare_price = $2, cost_price = $3, stock = $4, images = $5,
			is_default = $6, is_active = $7, display_order = $8, version = $9, updated_at = $10
		WHERE id = $11 AND version = $12`,
		row.Price, row.ComparePrice, row.CostPrice, row.Stock, row.Images,
		row.IsDefault, row.IsActive, row.DisplayOrder, row.Version, row.UpdatedAt,
		id, current.Version)
	if err != nil {
		return domain.Variant{}, r.translateWriteError("Falha ao atualizar variante", current.SKU, err)
	}
	if err := expectOneRow(result); err != nil {
		r.logger.Warn("Falha no controle de concorrência otimista (OCC).", map[string]interface{}{"variant_id": id})
		return domain.Variant{}, err
	}

	variants := []domain.Variant{next}
	if err := r.loadAssignments(ctxTimeout, tx, variants); err != nil {
		return domain.Variant{}, err
	}

	// 4. Commitar a transação
	if err := tx.Commit(); err != nil {
		r.logger.Error("Falha ao commitar transação de atualização de variante.", err)
		return domain.Variant{}, apperror.NewDBError("Falha ao commitar transação", err)
	}

	r.logger.Info("Variante atualizada com sucesso.", map[string]interface{}{"variant_id": id, "new_version": next.Version})
	return variants[0], nil
}

// DeleteVariant remove a variante; as atribuições saem em cascata.
func (r *VariantRepository) DeleteVariant(ctx context.Context, id string) (domain.Variant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Variant{}, notFound(id)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var row variantRow
	err := r.DB.GetContext(ctxTimeout, &row, `DELETE FROM product_variants WHERE id = $1 RETURNING `+variantColumns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Variant{}, notFound(id)
	}
	if err != nil {
		r.logger.Error("Falha ao remover variante.", err)
		return domain.Variant{}, apperror.NewDBError("Falha ao remover variante", err)
	}

	r.logger.Info("Variante removida.", map[string]interface{}{"variant_id": id, "product_id": row.ProductID})
	return row.toDomain(), nil
}

// AdjustStock aplica um ajuste relativo ao estoque, utilizando transação e
// controle de concorrência otimista (OCC).
func (r *VariantRepository) AdjustStock(ctx context.Context, id string, delta int) (domain.Variant, error) {
	r.logger.Debug("Iniciando ajuste de estoque no repositório.", map[string]interface{}{"variant_id": id, "delta": delta})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctxTimeout, nil)
	if err != nil {
		r.logger.Error("Falha ao iniciar transação para ajuste de estoque.", err)
		return domain.Variant{}, apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	current, err := r.selectVariant(ctxTimeout, tx, id, true)
	if err != nil {
		return domain.Variant{}, err
	}

	newQuantity := current.Stock + delta
	if newQuantity < current.ReservedStock {
		r.logger.Warn("Tentativa de ajustar estoque abaixo do reservado.", map[string]interface{}{
			"variant_id":       id,
			"current_quantity": current.Stock,
			"reserved":         current.ReservedStock,
			"delta":            delta,
		})
		return domain.Variant{}, apperror.NewValidationError("Ajuste resultaria em estoque abaixo do reservado.")
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctxTimeout, `
		UPDATE product_variants
		SET stock = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5`,
		newQuantity, current.Version+1, now, id, current.Version)
	if err != nil {
		r.logger.Error("Falha ao atualizar estoque.", err)
		return domain.Variant{}, apperror.NewDBError("Falha ao atualizar estoque", err)
	}
	if err := expectOneRow(result); err != nil {
		return domain.Variant{}, err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Falha ao commitar transação de ajuste de estoque.", err)
		return domain.Variant{}, apperror.NewDBError("Falha ao commitar transação", err)
	}

	current.Stock = newQuantity
	current.Version++
	current.UpdatedAt = now
	return current, nil
}

// ReorderVariants grava display_order pela posição na lista, em uma transação.
func (r *VariantRepository) ReorderVariants(ctx context.Context, productID string, orderedIDs []string) error {
	for _, id := range orderedIDs {
		if _, err := uuid.Parse(id); err != nil {
			return apperror.NewValidationError(fmt.Sprintf("Variante %s não pertence ao produto %s.", id, productID))
		}
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctxTimeout, nil)
	if err != nil {
		return apperror.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	var owned []string
	if err := tx.SelectContext(ctxTimeout, &owned,
		`SELECT id FROM product_variants WHERE product_id = $1 AND id = ANY($2) FOR UPDATE`, productID, pq.Array(orderedIDs)); err != nil {
		return apperror.NewDBError("Falha ao validar variantes do produto", err)
	}
	if len(owned) != len(orderedIDs) {
		ownedSet := make(map[string]bool, len(owned))
		for _, id := range owned {
			ownedSet[id] = true
		}
		for _, id := range orderedIDs {
			if !ownedSet[id] {
				return apperror.NewValidationError(fmt.Sprintf("Variante %s não pertence ao produto %s.", id, productID))
			}
		}
	}

	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctxTimeout,
			`UPDATE product_variants SET display_order = $1, version = version + 1, updated_at = NOW() WHERE id = $2`, i, id); err != nil {
			return apperror.NewDBError("Falha ao reordenar variantes", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperror.NewDBError("Falha ao commitar transação", err)
	}
	r.logger.Info("Variantes reordenadas.", map[string]interface{}{"product_id": productID, "count": len(orderedIDs)})
	return nil
}

// selectVariant busca uma variante (sem atribuições), opcionalmente com FOR UPDATE.
func (r *VariantRepository) selectVariant(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (domain.Variant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Variant{}, notFound(id)
	}

	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row variantRow
	err := sqlx.GetContext(ctx, q, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Variant{}, notFound(id)
	}
	if err != nil {
		r.logger.Error("Falha ao buscar variante.", err)
		return domain.Variant{}, apperror.NewDBError("Falha ao buscar variante", err)
	}
	return row.toDomain(), nil
}

// loadAssignments carrega as atribuições de todas as variantes em uma consulta.
func (r *VariantRepository) loadAssignments(ctx context.Context, q sqlx.QueryerContext, variants []domain.Variant) error {
	if len(variants) == 0 {
		return nil
	}

	ids := make([]string, 0, len(variants))
	index := make(map[string]int, len(variants))
	for i, v := range variants {
		ids = append(ids, v.ID)
		index[v.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT variant_id, attribute_id, value, display_value
		FROM variant_attributes
		WHERE variant_id IN (?)
		ORDER BY variant_id, attribute_id`, ids)
	if err != nil {
		return apperror.NewInternalError("Falha ao montar consulta de atributos de variantes.", err)
	}

	var rows []assignmentRow
	if err := sqlx.SelectContext(ctx, q, &rows, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		r.logger.Error("Falha ao carregar atributos das variantes.", err)
		return apperror.NewDBError("Falha ao carregar atributos das variantes", err)
	}

	for _, row := range rows {
		a := domain.AttributeAssignment{VariantID: row.VariantID, AttributeID: row.AttributeID, Value: row.Value}
		if row.DisplayValue.Valid {
			dv := row.DisplayValue.String
			a.DisplayValue = &dv
		}
		i := index[row.VariantID]
		variants[i].Attributes = append(variants[i].Attributes, a)
	}
	return nil
}

// translateWriteError converte violações de unicidade em ConflictError.
func (r *VariantRepository) translateWriteError(msg, sku string, err error) error {
	if constraint, dup := database.UniqueViolation(err); dup {
		switch constraint {
		case "uq_product_variants_sku":
			return apperror.NewConflictError(fmt.Sprintf("SKU %s já existe", sku))
		case "ux_product_variants_default":
			return apperror.NewConflictError("o produto já tem uma variante padrão")
		case "uq_variant_attributes":
			return apperror.NewConflictError(fmt.Sprintf("atributo repetido na variante %s", sku))
		default:
			return apperror.NewConflictError(fmt.Sprintf("violação de unicidade (%s)", constraint))
		}
	}
	r.logger.Error(msg+".", err)
	return apperror.NewDBError(msg, err)
}

func clearDefault(ctx context.Context, tx *sqlx.Tx, productID, exceptID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE product_variants
		SET is_default = FALSE, version = version + 1, updated_at = NOW()
		WHERE product_id = $1 AND is_default AND id::text <> $2`, productID, exceptID)
	if err != nil {
		return apperror.NewDBError("Falha ao limpar variante padrão", err)
	}
	return nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if n == 0 {
		// Erro de concorrência otimista: o registro foi modificado por outra transação.
		return apperror.NewConflictError("A variante foi modificada por outra operação. Tente novamente.")
	}
	return nil
}

func applyPatch(v domain.Variant, p domain.VariantPatch) domain.Variant {
	if p.Price != nil {
		v.Price = *p.Price
	}
	if p.ComparePrice != nil {
		v.ComparePrice = p.ComparePrice
	}
	if p.CostPrice != nil {
		v.CostPrice = p.CostPrice
	}
	if p.Stock != nil {
		v.Stock = *p.Stock
	}
	if p.IsActive != nil {
		v.IsActive = *p.IsActive
	}
	if p.IsDefault != nil {
		v.IsDefault = *p.IsDefault
	}
	if p.DisplayOrder != nil {
		v.DisplayOrder = *p.DisplayOrder
	}
	if p.Images != nil {
		v.Images = p.Images
	}
	return v
}

func notFound(id string) error {
	return apperror.NewNotFoundError(fmt.Sprintf("Variante %s não encontrada.", id))
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
