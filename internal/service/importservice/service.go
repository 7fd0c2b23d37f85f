package importservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/variantgen"
)

// DefaultMaxRows é o número máximo de linhas de dados por arquivo.
const DefaultMaxRows = 5000

// Colunas reconhecidas. Colunas "attr:<id>" trazem o valor do atributo <id>.
const (
	columnName         = "name"
	columnSKU          = "sku"
	columnPrice        = "price"
	columnComparePrice = "compare_price"
	columnCostPrice    = "cost_price"
	columnStock        = "stock"
	columnIsDefault    = "is_default"
	columnIsActive     = "is_active"
	columnImages       = "images"
	attributePrefix    = "attr:"
	imageSeparator     = "|"
)

// ProductStore resolve e cria os produtos referenciados pela planilha.
type ProductStore interface {
	FindActiveByName(ctx context.Context, name string) (domain.Product, error)
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
}

// VariantCounter conta as variantes já gravadas de um produto.
type VariantCounter interface {
	CountVariantsByProduct(ctx context.Context, productID string) (int, error)
}

// BatchReconciler é o reconciliador de lotes de propostas.
type BatchReconciler interface {
	Reconcile(ctx context.Context, proposals []domain.VariantProposal) (*domain.BatchReport, error)
	MaxBatch() int
}

// RowError é uma falha reportada com as linhas da planilha que a causaram.
// Unmapped indica uma falha cuja posição não pôde ser ligada a nenhuma linha.
type RowError struct {
	Rows     []int  `json:"rows"`
	Position int    `json:"position,omitempty"`
	SKU      string `json:"sku,omitempty"`
	Reason   string `json:"reason"`
	Unmapped bool   `json:"unmapped,omitempty"`
}

// ImportReport é o resultado de uma importação.
type ImportReport struct {
	TotalRows       int              `json:"total_rows"`
	LogicalProducts int              `json:"logical_products"`
	CreatedCount    int              `json:"created_count"`
	FailedCount     int              `json:"failed_count"`
	Created         []domain.Variant `json:"created"`
	Errors          []RowError       `json:"errors"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// Service transforma linhas de planilha em propostas de variantes e as
// reconcilia em lotes.
type Service struct {
	products   ProductStore
	variants   VariantCounter
	reconciler BatchReconciler
	logger     logger.Logger
	maxRows    int
	newSKU     func(productName string, attrs []domain.AttributeValue, row int) string
	now        func() time.Time
}

// NewService cria o serviço de importação. maxRows <= 0 usa DefaultMaxRows.
func NewService(products ProductStore, variants VariantCounter, reconciler BatchReconciler, log logger.Logger, maxRows int) *Service {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Service{
		products:   products,
		variants:   variants,
		reconciler: reconciler,
		logger:     log,
		maxRows:    maxRows,
		newSKU:     variantgen.NewImportSKU,
		now:        time.Now,
	}
}

// Import lê o arquivo (CSV ou XLSX, pela extensão) e importa suas linhas.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) (*ImportReport, error) {
	sheet, err := ParseFile(filename, r)
	if err != nil {
		return nil, err
	}
	return s.ImportRows(ctx, sheet)
}

// ImportRows importa as linhas já lidas.
//
// Em caso de erro de infraestrutura num lote, o relatório parcial (com o que
// já foi gravado pelos lotes anteriores) é devolvido junto com o erro.
func (s *Service) ImportRows(ctx context.Context, sheet *Sheet) (*ImportReport, error) {
	if sheet == nil || len(sheet.Rows) == 0 {
		return nil, apperror.NewValidationError("o arquivo não tem linhas de dados")
	}
	if len(sheet.Rows) > s.maxRows {
		return nil, apperror.NewLimitError(fmt.Sprintf("o arquivo tem %d linhas, o máximo é %d", len(sheet.Rows), s.maxRows))
	}
	if !sheet.HasColumn(columnName) {
		return nil, apperror.NewValidationError("coluna obrigatória ausente: name")
	}

	groups, nameless := GroupByProduct(sheet.Rows)
	report := &ImportReport{
		TotalRows:       len(sheet.Rows),
		LogicalProducts: len(groups),
		Created:         []domain.Variant{},
		Errors:          []RowError{},
	}

	s.logger.Info("Iniciando importação de variantes.", map[string]interface{}{
		"rows":     len(sheet.Rows),
		"products": len(groups),
	})

	for _, row := range nameless {
		report.Errors = append(report.Errors, RowError{Rows: []int{row.Number}, Reason: "a coluna name é obrigatória"})
	}

	attrColumns := attributeColumns(sheet.Columns)
	mapper := NewRowMapper()
	var proposals []domain.VariantProposal
	var byProduct [][]int

	for _, group := range groups {
		product, empty, err := s.resolveProduct(ctx, group)
		if err != nil {
			if isRowLevel(err) {
				report.Errors = append(report.Errors, RowError{Rows: rowNumbers(group.Rows), Reason: fmt.Sprintf("produto %q: %s", group.Name, err.Error())})
				continue
			}
			return s.finish(report), err
		}

		var indexes []int
		explicitDefault := false
		for _, row := range group.Rows {
			p, reason := s.buildProposal(product, row, attrColumns)
			if reason != "" {
				report.Errors = append(report.Errors, RowError{Rows: []int{row.Number}, SKU: row.Get(columnSKU), Reason: reason})
				continue
			}
			p.Position = len(proposals) + 1
			mapper.Record(p.Position, row.Number)
			explicitDefault = explicitDefault || p.IsDefault
			indexes = append(indexes, len(proposals))
			proposals = append(proposals, p)
		}
		if empty && !explicitDefault && len(indexes) > 0 {
			proposals[indexes[0]].IsDefault = true
		}
		if len(indexes) > 0 {
			byProduct = append(byProduct, indexes)
		}
	}

	for _, batch := range chunk(byProduct, s.reconciler.MaxBatch()) {
		chunkProposals := make([]domain.VariantProposal, 0, len(batch))
		for _, i := range batch {
			chunkProposals = append(chunkProposals, proposals[i])
		}

		result, err := s.reconciler.Reconcile(ctx, chunkProposals)
		if err != nil {
			s.logger.Error("Falha de infraestrutura durante a importação.", err)
			return s.finish(report), err
		}
		report.Created = append(report.Created, result.Created...)
		report.Errors = append(report.Errors, MapFailures(result.Failed, mapper)...)
		report.Warnings = append(report.Warnings, result.Warnings...)
	}

	s.finish(report)
	s.logger.Info("Importação concluída.", map[string]interface{}{
		"created": report.CreatedCount,
		"failed":  report.FailedCount,
	})
	return report, nil
}

// MapFailures converte falhas do reconciliador em erros por linha. Falhas sem
// linha registrada viram erros "não mapeados".
func MapFailures(failed []domain.FailedProposal, mapper *RowMapper) []RowError {
	out := make([]RowError, 0, len(failed))
	for _, f := range failed {
		rows := mapper.Resolve(f.Position)
		if len(rows) == 0 {
			out = append(out, RowError{
				Rows:     rows,
				Position: f.Position,
				SKU:      f.SKU,
				Reason:   fmt.Sprintf("erro não mapeado: %s", f.Reason),
				Unmapped: true,
			})
			continue
		}
		out = append(out, RowError{Rows: rows, Position: f.Position, SKU: f.SKU, Reason: f.Reason})
	}
	return out
}

// resolveProduct encontra o produto ativo pelo nome ou cria um novo com o
// preço da primeira linha como preço base. O booleano indica que o produto
// ainda não tem nenhuma variante, o que vale também para um produto criado
// por uma importação anterior que falhou por inteiro.
func (s *Service) resolveProduct(ctx context.Context, group LogicalProduct) (domain.Product, bool, error) {
	product, err := s.products.FindActiveByName(ctx, group.Name)
	if err == nil {
		n, err := s.variants.CountVariantsByProduct(ctx, product.ID)
		if err != nil {
			return domain.Product{}, false, err
		}
		return product, n == 0, nil
	}
	if !apperror.IsNotFound(err) {
		return domain.Product{}, false, err
	}

	base := decimal.Zero
	if raw := group.Rows[0].Get(columnPrice); raw != "" {
		if d, perr := decimal.NewFromString(raw); perr == nil && !d.IsNegative() {
			base = d
		}
	}

	now := s.now().UTC()
	product, err = s.products.Create(ctx, domain.Product{
		ID:        uuid.New().String(),
		Name:      group.Name,
		BasePrice: base,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Product{}, false, err
	}
	s.logger.Debug("Produto criado pela importação.", map[string]interface{}{"product_id": product.ID, "name": product.Name})
	return product, true, nil
}

// buildProposal monta a proposta de uma linha. Valores numéricos seguem crus
// para o reconciliador; aqui só se rejeita o que não tem como ser proposto.
func (s *Service) buildProposal(product domain.Product, row Row, attrColumns []string) (domain.VariantProposal, string) {
	p := domain.VariantProposal{ProductID: product.ID}

	for _, col := range attrColumns {
		if v := row.Get(col); v != "" {
			p.Attributes = append(p.Attributes, domain.AttributeValue{AttributeID: strings.TrimPrefix(col, attributePrefix), Value: v})
		}
	}

	p.SKU = row.Get(columnSKU)
	if p.SKU == "" {
		p.SKU = s.newSKU(product.Name, p.Attributes, row.Number)
	}

	p.Price = json.Number(row.Get(columnPrice))
	if p.Price == "" {
		p.Price = json.Number(product.BasePrice.String())
	}
	p.ComparePrice = json.Number(row.Get(columnComparePrice))
	p.CostPrice = json.Number(row.Get(columnCostPrice))
	p.Stock = json.Number(row.Get(columnStock))
	if p.Stock == "" {
		p.Stock = "0"
	}

	if raw := row.Get(columnIsDefault); raw != "" {
		b, err := parseBool(raw)
		if err != nil {
			return p, fmt.Sprintf("is_default inválido: %q", raw)
		}
		p.IsDefault = b
	}
	if raw := row.Get(columnIsActive); raw != "" {
		b, err := parseBool(raw)
		if err != nil {
			return p, fmt.Sprintf("is_active inválido: %q", raw)
		}
		p.IsActive = &b
	}

	if raw := row.Get(columnImages); raw != "" {
		for _, img := range strings.Split(raw, imageSeparator) {
			if img = strings.TrimSpace(img); img != "" {
				p.Images = append(p.Images, img)
			}
		}
	}
	return p, ""
}

// finish ordena os erros pela primeira linha e preenche os contadores.
func (s *Service) finish(report *ImportReport) *ImportReport {
	sort.SliceStable(report.Errors, func(i, j int) bool {
		a, b := report.Errors[i], report.Errors[j]
		if a.Unmapped != b.Unmapped {
			return !a.Unmapped
		}
		if len(a.Rows) == 0 || len(b.Rows) == 0 {
			return false
		}
		return a.Rows[0] < b.Rows[0]
	})

	failedRows := make(map[int]bool)
	unmapped := 0
	for _, e := range report.Errors {
		if e.Unmapped {
			unmapped++
		}
		for _, r := range e.Rows {
			failedRows[r] = true
		}
	}
	report.CreatedCount = len(report.Created)
	report.FailedCount = len(failedRows) + unmapped
	return report
}

func attributeColumns(columns []string) []string {
	var out []string
	for _, c := range columns {
		if strings.HasPrefix(c, attributePrefix) && len(c) > len(attributePrefix) {
			out = append(out, c)
		}
	}
	return out
}

func rowNumbers(rows []Row) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Number)
	}
	return out
}

// isRowLevel informa se o erro pertence aos dados (e vai para o relatório)
// em vez da infraestrutura.
func isRowLevel(err error) bool {
	status, _, _ := apperror.MapToHTTPStatus(err)
	return status >= 400 && status < 500
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sim", "s", "yes", "y", "x":
		return true, nil
	case "não", "nao", "n", "no":
		return false, nil
	}
	return strconv.ParseBool(raw)
}
