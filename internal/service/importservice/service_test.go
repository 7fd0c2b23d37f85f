package importservice_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/service/importservice"
	"gocatalog/internal/variantgen"
)

type fakeProducts struct {
	byName    map[string]domain.Product
	createErr error
	created   []domain.Product
}

func newFakeProducts(existing ...domain.Product) *fakeProducts {
	f := &fakeProducts{byName: map[string]domain.Product{}}
	for _, p := range existing {
		f.byName[strings.ToLower(p.Name)] = p
	}
	return f
}

func (f *fakeProducts) FindActiveByName(_ context.Context, name string) (domain.Product, error) {
	p, ok := f.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto %q não encontrado.", name))
	}
	return p, nil
}

func (f *fakeProducts) Create(_ context.Context, p domain.Product) (domain.Product, error) {
	if f.createErr != nil {
		return domain.Product{}, f.createErr
	}
	f.byName[strings.ToLower(p.Name)] = p
	f.created = append(f.created, p)
	return p, nil
}

// fakeReconciler cria tudo, exceto os SKUs configurados para falhar e as
// propostas com preço inválido. Também conta as variantes gravadas por produto.
type fakeReconciler struct {
	max       int
	failSKUs  map[string]string
	errOnCall int
	calls     [][]domain.VariantProposal
	persisted map[string]int
}

func (f *fakeReconciler) CountVariantsByProduct(_ context.Context, productID string) (int, error) {
	return f.persisted[productID], nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, proposals []domain.VariantProposal) (*domain.BatchReport, error) {
	f.calls = append(f.calls, proposals)
	if f.errOnCall == len(f.calls) {
		return nil, apperror.NewDBError("Falha ao consultar SKUs", errors.New("connection reset"))
	}
	report := domain.NewBatchReport()
	for _, p := range proposals {
		if reason, ok := f.failSKUs[p.SKU]; ok {
			report.Failed = append(report.Failed, domain.FailedProposal{Position: p.Position, SKU: p.SKU, Reason: reason})
			continue
		}
		if _, err := decimal.NewFromString(p.Price.String()); err != nil {
			report.Failed = append(report.Failed, domain.FailedProposal{Position: p.Position, SKU: p.SKU, Reason: "price inválido"})
			continue
		}
		if f.persisted == nil {
			f.persisted = map[string]int{}
		}
		f.persisted[p.ProductID]++
		report.Created = append(report.Created, domain.Variant{ID: "v-" + p.SKU, ProductID: p.ProductID, SKU: p.SKU, IsDefault: p.IsDefault})
	}
	return report, nil
}

func (f *fakeReconciler) MaxBatch() int { return f.max }

func row(n int, fields ...string) importservice.Row {
	r := importservice.Row{Number: n, Fields: map[string]string{}}
	for i := 0; i+1 < len(fields); i += 2 {
		r.Fields[fields[i]] = fields[i+1]
	}
	return r
}

func sheet(rows ...importservice.Row) *importservice.Sheet {
	return &importservice.Sheet{
		Columns: []string{"name", "sku", "price", "stock", "is_default", "attr:color"},
		Rows:    rows,
	}
}

func TestImportRows_GroupsByNameAndMapsFailuresToRows(t *testing.T) {
	products := newFakeProducts(domain.Product{ID: "p-tee", Name: "Tee", IsActive: true})
	rec := &fakeReconciler{
		max:       100,
		failSKUs:  map[string]string{"T-2": "SKU T-2 já existe"},
		persisted: map[string]int{"p-tee": 1},
	}
	svc := importservice.NewService(products, rec, rec, logger.NewLogger("debug"), 100)

	report, err := svc.ImportRows(context.Background(), sheet(
		row(2, "name", "Tee", "sku", "T-1", "price", "10", "attr:color", "red"),
		row(3, "name", " TEE ", "sku", "T-2", "price", "12"),
		row(4, "name", "Mug", "sku", "M-1", "price", "5"),
		row(5, "name", "", "sku", "X-1"),
		row(6, "name", "Mug", "sku", "M-2", "is_default", "talvez"),
	))

	require.NoError(t, err)
	assert.Equal(t, 5, report.TotalRows)
	assert.Equal(t, 2, report.LogicalProducts)
	assert.Equal(t, 2, report.CreatedCount)
	assert.Equal(t, 3, report.FailedCount)

	require.Len(t, report.Errors, 3)
	assert.Equal(t, []int{3}, report.Errors[0].Rows)
	assert.Contains(t, report.Errors[0].Reason, "já existe")
	assert.Equal(t, []int{5}, report.Errors[1].Rows)
	assert.Equal(t, []int{6}, report.Errors[2].Rows)
	assert.Contains(t, report.Errors[2].Reason, "is_default")

	require.Len(t, products.created, 1)
	assert.Equal(t, "Mug", products.created[0].Name)
	assert.Equal(t, "5", products.created[0].BasePrice.String())

	require.Len(t, rec.calls, 1)
	sent := rec.calls[0]
	require.Len(t, sent, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{sent[0].Position, sent[1].Position, sent[2].Position})
	assert.Equal(t, "p-tee", sent[0].ProductID)
	assert.Equal(t, []domain.AttributeValue{{AttributeID: "color", Value: "red"}}, sent[0].Attributes)
	assert.False(t, sent[0].IsDefault, "produto que já tem variantes não ganha padrão automático")
	assert.True(t, sent[2].IsDefault, "primeira variante de produto novo vira padrão")
	assert.Equal(t, "0", sent[2].Stock.String())
}

func TestImportRows_GeneratesSKUWhenMissing(t *testing.T) {
	products := newFakeProducts(domain.Product{ID: "p-tee", Name: "Classic Tee", IsActive: true})
	rec := &fakeReconciler{max: 100}
	svc := importservice.NewService(products, rec, rec, logger.NewNop(), 100)

	report, err := svc.ImportRows(context.Background(), sheet(
		row(2, "name", "Classic Tee", "price", "10", "attr:color", "red"),
	))

	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	sku := report.Created[0].SKU
	assert.True(t, strings.HasPrefix(sku, "classic-tee-color-red-2-"), sku)
	assert.LessOrEqual(t, len(sku), variantgen.MaxSKULength)
}

// TestImportRows_RetryAfterFailedImportStillSetsDefault reimporta um produto
// que a primeira tentativa criou sem conseguir gravar nenhuma variante.
func TestImportRows_RetryAfterFailedImportStillSetsDefault(t *testing.T) {
	products := newFakeProducts()
	rec := &fakeReconciler{max: 100}
	svc := importservice.NewService(products, rec, rec, logger.NewNop(), 100)

	first, err := svc.ImportRows(context.Background(), sheet(
		row(2, "name", "Mug", "sku", "M-1", "price", "x"),
	))
	require.NoError(t, err)
	assert.Equal(t, 0, first.CreatedCount)
	require.Len(t, products.created, 1)

	second, err := svc.ImportRows(context.Background(), sheet(
		row(2, "name", "Mug", "sku", "M-1", "price", "5"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, second.CreatedCount)
	assert.Len(t, products.created, 1, "o produto da primeira tentativa é reaproveitado")

	require.Len(t, rec.calls, 2)
	require.Len(t, rec.calls[1], 1)
	assert.Equal(t, products.created[0].ID, rec.calls[1][0].ProductID)
	assert.True(t, rec.calls[1][0].IsDefault, "única variante do produto vira padrão")
	assert.True(t, second.Created[0].IsDefault)
}

func TestImportRows_ChunksOnProductBoundariesWithGlobalPositions(t *testing.T) {
	rec := &fakeReconciler{max: 3}
	svc := importservice.NewService(newFakeProducts(), rec, rec, logger.NewNop(), 100)

	_, err := svc.ImportRows(context.Background(), sheet(
		row(2, "name", "A", "sku", "A-1", "price", "1"),
		row(3, "name", "A", "sku", "A-2", "price", "1"),
		row(4, "name", "B", "sku", "B-1", "price", "1"),
		row(5, "name", "B", "sku", "B-2", "price", "1"),
		row(6, "name", "C", "sku", "C-1", "price", "1"),
	))

	require.NoError(t, err)
	require.Len(t, rec.calls, 2)
	assert.Len(t, rec.calls[0], 2)
	require.Len(t, rec.calls[1], 3)
	assert.Equal(t, 3, rec.calls[1][0].Position)
	assert.Equal(t, 5, rec.calls[1][2].Position)
}

func TestImportRows_InfrastructureErrorReturnsPartialReport(t *testing.T) {
	rec := &fakeReconciler{max: 1, errOnCall: 2}
	svc := importservice.NewService(newFakeProducts(), rec, rec, logger.NewNop(), 100)

	report, err := svc.ImportRows(context.Background(), sheet(
		row(2, "name", "A", "sku", "A-1", "price", "1"),
		row(3, "name", "B", "sku", "B-1", "price", "1"),
	))

	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.CreatedCount)
	assert.Equal(t, "A-1", report.Created[0].SKU)
}

func TestImportRows_ProductFailureCoversAllItsRows(t *testing.T) {
	products := newFakeProducts()
	products.createErr = apperror.NewConflictError("já existe um produto ativo com esse nome")
	rec := &fakeReconciler{max: 100}
	svc := importservice.NewService(products, rec, rec, logger.NewNop(), 100)

	report, err := svc.ImportRows(context.Background(), sheet(
		row(2, "name", "Mug", "sku", "M-1"),
		row(3, "name", "mug", "sku", "M-2"),
	))

	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, []int{2, 3}, report.Errors[0].Rows)
	assert.Equal(t, 2, report.FailedCount)
}

func TestImportRows_Limits(t *testing.T) {
	rec := &fakeReconciler{max: 100}
	svc := importservice.NewService(newFakeProducts(), rec, rec, logger.NewNop(), 1)

	_, err := svc.ImportRows(context.Background(), sheet(row(2, "name", "A"), row(3, "name", "B")))
	assert.IsType(t, &apperror.LimitError{}, err)

	_, err = svc.ImportRows(context.Background(), &importservice.Sheet{Columns: []string{"sku"}, Rows: []importservice.Row{row(2, "sku", "X")}})
	assert.IsType(t, &apperror.ValidationError{}, err)

	_, err = svc.ImportRows(context.Background(), &importservice.Sheet{Columns: []string{"name"}})
	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestImport_ReadsCSV(t *testing.T) {
	rec := &fakeReconciler{max: 100}
	svc := importservice.NewService(newFakeProducts(), rec, rec, logger.NewNop(), 100)

	report, err := svc.Import(context.Background(), "variantes.CSV", strings.NewReader("name,sku,price\nMug,M-1,5\n"))

	require.NoError(t, err)
	assert.Equal(t, 1, report.CreatedCount)
}
