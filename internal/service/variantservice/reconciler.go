package variantservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
)

// DefaultMaxBatchSize é o tamanho máximo de um lote quando nada é configurado.
const DefaultMaxBatchSize = 100

// VariantStore define o que o reconciliador espera da camada de Persistência.
type VariantStore interface {
	FindExistingSKUs(ctx context.Context, skus []string) (map[string]struct{}, error)
	CreateVariantsAtomically(ctx context.Context, variants []domain.Variant) ([]domain.Variant, error)
	FindActiveVariantsByProduct(ctx context.Context, productID string) ([]domain.Variant, error)
	// FindExistingProductIDs devolve o subconjunto de ids que corresponde a
	// produtos cadastrados.
	FindExistingProductIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// AttributeCatalog resolve ids de atributos. Ids desconhecidos simplesmente
// não aparecem no resultado.
type AttributeCatalog interface {
	FindAttributesByIds(ctx context.Context, ids []string) ([]domain.Attribute, error)
}

// AggregateRefresher recalcula os agregados de um produto.
type AggregateRefresher interface {
	Refresh(ctx context.Context, productID string) error
}

// Reconciler valida um lote de propostas contra si mesmo, contra o que já
// está persistido e contra o catálogo de atributos, e grava o que sobrar em
// uma única transação.
type Reconciler struct {
	store      VariantStore
	catalog    AttributeCatalog
	aggregates AggregateRefresher
	logger     logger.Logger
	validate   *validator.Validate
	maxBatch   int
	newID      func() string
	now        func() time.Time
}

// NewReconciler cria o reconciliador. maxBatch <= 0 usa DefaultMaxBatchSize.
func NewReconciler(store VariantStore, catalog AttributeCatalog, aggregates AggregateRefresher, log logger.Logger, maxBatch int) *Reconciler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Reconciler{
		store:      store,
		catalog:    catalog,
		aggregates: aggregates,
		logger:     log,
		validate:   newValidator(),
		maxBatch:   maxBatch,
		newID:      func() string { return uuid.New().String() },
		now:        time.Now,
	}
}

// MaxBatch devolve o teto de propostas por chamada.
func (r *Reconciler) MaxBatch() int {
	return r.maxBatch
}

// candidate é uma proposta que ainda não falhou, já com os campos convertidos.
type candidate struct {
	position     int
	proposal     domain.VariantProposal
	price        decimal.Decimal
	comparePrice *decimal.Decimal
	costPrice    *decimal.Decimal
	stock        int
}

// Reconcile processa um lote e devolve {created, failed}.
//
// Problemas de uma proposta viram entradas em Failed e nunca derrubam o lote.
// Só retornam erro: lote acima do teto (LimitError) e falhas de
// infraestrutura na consulta de SKUs existentes ou no catálogo.
func (r *Reconciler) Reconcile(ctx context.Context, proposals []domain.VariantProposal) (*domain.BatchReport, error) {
	if len(proposals) > r.maxBatch {
		return nil, apperror.NewLimitError(fmt.Sprintf("o lote tem %d propostas, o máximo é %d", len(proposals), r.maxBatch))
	}

	report := domain.NewBatchReport()
	if len(proposals) == 0 {
		return report, nil
	}

	r.logger.Debug("Iniciando reconciliação de lote.", map[string]interface{}{"proposals": len(proposals)})

	fail := func(c candidate, reason string) {
		report.Failed = append(report.Failed, domain.FailedProposal{
			Position:  c.position,
			SKU:       c.proposal.SKU,
			ProductID: c.proposal.ProductID,
			Reason:    reason,
		})
	}

	// 1. Validação de campos
	survivors := make([]candidate, 0, len(proposals))
	for i, p := range proposals {
		c, reason := r.checkFields(i, p)
		if reason != "" {
			fail(c, reason)
			continue
		}
		survivors = append(survivors, c)
	}

	// 2. SKUs repetidos dentro do lote: a primeira ocorrência vence
	firstSeen := make(map[string]int, len(survivors))
	kept := survivors[:0]
	for _, c := range survivors {
		if pos, dup := firstSeen[c.proposal.SKU]; dup {
			fail(c, fmt.Sprintf("SKU duplicado neste lote (primeira ocorrência na posição %d)", pos))
			continue
		}
		firstSeen[c.proposal.SKU] = c.position
		kept = append(kept, c)
	}
	survivors = kept

	// 3. SKUs já persistidos, em uma única consulta
	if len(survivors) > 0 {
		skus := make([]string, 0, len(survivors))
		for _, c := range survivors {
			skus = append(skus, c.proposal.SKU)
		}
		existing, err := r.store.FindExistingSKUs(ctx, skus)
		if err != nil {
			r.logger.Error("Falha ao consultar SKUs existentes.", err)
			return nil, err
		}
		kept = survivors[:0]
		for _, c := range survivors {
			if _, found := existing[c.proposal.SKU]; found {
				fail(c, fmt.Sprintf("SKU %s já existe", c.proposal.SKU))
				continue
			}
			kept = append(kept, c)
		}
		survivors = kept
	}

	// 4. Integridade referencial dos produtos, dos atributos e combinações repetidas
	survivors, err := r.checkProducts(ctx, survivors, fail)
	if err != nil {
		return nil, err
	}
	survivors, err = r.checkAttributes(ctx, survivors, fail)
	if err != nil {
		return nil, err
	}

	// 5. No máximo uma variante padrão por produto, pela ordem das posições
	sort.SliceStable(survivors, func(i, j int) bool { return survivors[i].position < survivors[j].position })
	hasDefault := make(map[string]bool)
	for i := range survivors {
		p := &survivors[i].proposal
		if !p.IsDefault {
			continue
		}
		if hasDefault[p.ProductID] {
			p.IsDefault = false
			continue
		}
		hasDefault[p.ProductID] = true
	}

	// 6. Criação atômica
	if len(survivors) > 0 {
		variants := make([]domain.Variant, 0, len(survivors))
		for _, c := range survivors {
			variants = append(variants, r.toVariant(c))
		}

		created, err := r.store.CreateVariantsAtomically(ctx, variants)
		if err != nil {
			r.logger.Error("Falha na transação de criação do lote.", err)
			for _, c := range survivors {
				fail(c, fmt.Sprintf("falha na transação do lote: %s", err.Error()))
			}
		} else {
			report.Created = append(report.Created, created...)
		}
	}

	// 7. Agregados de cada produto que recebeu variantes
	refreshed := make(map[string]bool)
	for _, v := range report.Created {
		if refreshed[v.ProductID] {
			continue
		}
		refreshed[v.ProductID] = true
		if err := r.aggregates.Refresh(ctx, v.ProductID); err != nil {
			r.logger.Warn("Falha ao atualizar agregados após criação do lote.", map[string]interface{}{
				"product_id": v.ProductID,
				"error":      err.Error(),
			})
			report.Warnings = append(report.Warnings, fmt.Sprintf("falha ao atualizar agregados do produto %s: %s", v.ProductID, err.Error()))
		}
	}

	sort.SliceStable(report.Failed, func(i, j int) bool { return report.Failed[i].Position < report.Failed[j].Position })

	r.logger.Info("Lote reconciliado.", map[string]interface{}{
		"proposals": len(proposals),
		"created":   len(report.Created),
		"failed":    len(report.Failed),
	})
	return report, nil
}

// checkProducts descarta as propostas cujo produto não existe, com uma única
// consulta para todos os produtos do lote.
func (r *Reconciler) checkProducts(ctx context.Context, survivors []candidate, fail func(candidate, string)) ([]candidate, error) {
	if len(survivors) == 0 {
		return survivors, nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, c := range survivors {
		if !seen[c.proposal.ProductID] {
			seen[c.proposal.ProductID] = true
			ids = append(ids, c.proposal.ProductID)
		}
	}
	existing, err := r.store.FindExistingProductIDs(ctx, ids)
	if err != nil {
		r.logger.Error("Falha ao consultar produtos do lote.", err)
		return nil, err
	}
	kept := survivors[:0]
	for _, c := range survivors {
		if _, found := existing[c.proposal.ProductID]; !found {
			fail(c, fmt.Sprintf("produto %s não existe", c.proposal.ProductID))
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// checkFields normaliza e valida uma proposta isolada.
func (r *Reconciler) checkFields(index int, p domain.VariantProposal) (candidate, string) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.ProductID = strings.TrimSpace(p.ProductID)
	c := candidate{position: p.Position, proposal: p}
	if c.position <= 0 {
		c.position = index + 1
	}

	var problems []string
	if err := r.validate.Struct(p); err != nil {
		problems = append(problems, describeValidation(err))
	}

	if p.Price != "" {
		price, msg := parseMoney("price", p.Price)
		if msg != "" {
			problems = append(problems, msg)
		} else {
			c.price = *price
		}
	}
	if p.ComparePrice != "" {
		cp, msg := parseMoney("compare_price", p.ComparePrice)
		if msg != "" {
			problems = append(problems, msg)
		}
		c.comparePrice = cp
	}
	if p.CostPrice != "" {
		cp, msg := parseMoney("cost_price", p.CostPrice)
		if msg != "" {
			problems = append(problems, msg)
		}
		c.costPrice = cp
	}
	if p.Stock != "" {
		stock, err := json.Number(strings.TrimSpace(p.Stock.String())).Int64()
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("stock deve ser um inteiro (recebido %q)", p.Stock.String()))
		case stock < 0:
			problems = append(problems, "stock não pode ser negativo")
		default:
			c.stock = int(stock)
		}
	}
	if p.DisplayOrder < 0 {
		problems = append(problems, "display_order não pode ser negativo")
	}

	return c, strings.Join(problems, "; ")
}

// checkAttributes resolve todos os atributos referenciados com uma única
// chamada ao catálogo e descarta propostas com atributos desconhecidos,
// valores ilegais ou combinações repetidas.
func (r *Reconciler) checkAttributes(ctx context.Context, survivors []candidate, fail func(candidate, string)) ([]candidate, error) {
	var ids []string
	seenID := make(map[string]bool)
	for _, c := range survivors {
		for _, av := range c.proposal.Attributes {
			if !seenID[av.AttributeID] {
				seenID[av.AttributeID] = true
				ids = append(ids, av.AttributeID)
			}
		}
	}

	known := make(map[string]domain.Attribute, len(ids))
	if len(ids) > 0 {
		attrs, err := r.catalog.FindAttributesByIds(ctx, ids)
		if err != nil {
			r.logger.Error("Falha ao consultar o catálogo de atributos.", err)
			return nil, err
		}
		for _, a := range attrs {
			known[a.ID] = a
		}
	}

	kept := survivors[:0]
	for _, c := range survivors {
		if reason := attributeProblems(c.proposal.Attributes, known); reason != "" {
			fail(c, reason)
			continue
		}
		kept = append(kept, c)
	}
	survivors = kept

	// Combinações: só propostas ativas com ao menos um atributo.
	bySignature := make(map[string]map[string]int)
	persisted := make(map[string]map[string]string)
	kept = survivors[:0]
	for _, c := range survivors {
		p := c.proposal
		if len(p.Attributes) == 0 || !p.Active() {
			kept = append(kept, c)
			continue
		}

		if _, loaded := persisted[p.ProductID]; !loaded {
			existing, err := r.store.FindActiveVariantsByProduct(ctx, p.ProductID)
			if err != nil {
				r.logger.Error("Falha ao buscar variantes ativas do produto.", err)
				return nil, err
			}
			sigs := make(map[string]string, len(existing))
			for _, v := range existing {
				if len(v.Attributes) > 0 {
					sigs[v.Combination().Signature()] = v.SKU
				}
			}
			persisted[p.ProductID] = sigs
			bySignature[p.ProductID] = make(map[string]int)
		}

		sig := domain.Combination(p.Attributes).Signature()
		if sku, found := persisted[p.ProductID][sig]; found {
			fail(c, fmt.Sprintf("combinação de atributos já existe no produto (SKU %s)", sku))
			continue
		}
		if pos, dup := bySignature[p.ProductID][sig]; dup {
			fail(c, fmt.Sprintf("combinação de atributos duplicada neste lote (posição %d)", pos))
			continue
		}
		bySignature[p.ProductID][sig] = c.position
		kept = append(kept, c)
	}
	return kept, nil
}

func attributeProblems(values []domain.AttributeValue, known map[string]domain.Attribute) string {
	var problems []string
	var unknown []string
	seen := make(map[string]bool, len(values))
	for _, av := range values {
		if seen[av.AttributeID] {
			problems = append(problems, fmt.Sprintf("atributo %s repetido na mesma variante", av.AttributeID))
			continue
		}
		seen[av.AttributeID] = true

		attr, ok := known[av.AttributeID]
		if !ok {
			unknown = append(unknown, av.AttributeID)
			continue
		}
		if msg := attr.CheckValue(av.Value); msg != "" {
			problems = append(problems, msg)
		}
	}
	if len(unknown) > 0 {
		problems = append([]string{fmt.Sprintf("atributo(s) desconhecido(s): %s", strings.Join(unknown, ", "))}, problems...)
	}
	return strings.Join(problems, "; ")
}

func (r *Reconciler) toVariant(c candidate) domain.Variant {
	now := r.now()
	p := c.proposal
	id := r.newID()

	images := p.Images
	if images == nil {
		images = []string{}
	}

	attrs := make([]domain.AttributeAssignment, 0, len(p.Attributes))
	for _, av := range p.Attributes {
		attrs = append(attrs, domain.AttributeAssignment{VariantID: id, AttributeID: av.AttributeID, Value: av.Value})
	}

	return domain.Variant{
		ID:           id,
		ProductID:    p.ProductID,
		SKU:          p.SKU,
		Price:        c.price,
		ComparePrice: c.comparePrice,
		CostPrice:    c.costPrice,
		Stock:        c.stock,
		Images:       images,
		IsDefault:    p.IsDefault,
		IsActive:     p.Active(),
		DisplayOrder: p.DisplayOrder,
		Version:      1,
		Attributes:   attrs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func parseMoney(field string, raw json.Number) (*decimal.Decimal, string) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw.String()))
	if err != nil {
		return nil, fmt.Sprintf("%s não é um valor numérico (recebido %q)", field, raw.String())
	}
	if d.IsNegative() {
		return nil, fmt.Sprintf("%s não pode ser negativo", field)
	}
	return &d, ""
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// describeValidation transforma os erros do validator em uma frase legível.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s é obrigatório", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s excede %s caracteres", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s inválido (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
