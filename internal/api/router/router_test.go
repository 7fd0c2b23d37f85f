package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocatalog/internal/api/attribute"
	"gocatalog/internal/api/importer"
	"gocatalog/internal/api/product"
	"gocatalog/internal/api/respond"
	"gocatalog/internal/api/router"
	"gocatalog/internal/api/variant"
	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/token"
	"gocatalog/internal/service/importservice"
)

type fakeVariants struct {
	lastGenerate domain.GenerateRequest
	lastBulk     []domain.VariantProposal
	lastPatch    domain.VariantPatch
	updateErr    error
}

func (f *fakeVariants) GenerateVariants(_ context.Context, req domain.GenerateRequest) (*domain.BatchReport, error) {
	f.lastGenerate = req
	report := domain.NewBatchReport()
	report.Created = append(report.Created, domain.Variant{SKU: "tee-1"})
	return report, nil
}

func (f *fakeVariants) BulkCreate(_ context.Context, proposals []domain.VariantProposal) (*domain.BatchReport, error) {
	f.lastBulk = proposals
	report := domain.NewBatchReport()
	for _, p := range proposals {
		report.Failed = append(report.Failed, domain.FailedProposal{Position: p.Position, SKU: p.SKU, Reason: "SKU já existe"})
	}
	return report, nil
}

func (f *fakeVariants) GetVariant(_ context.Context, id string) (domain.Variant, error) {
	return domain.Variant{}, apperror.NewNotFoundError("Variante " + id + " não encontrada.")
}

func (f *fakeVariants) UpdateVariant(_ context.Context, id string, patch domain.VariantPatch) (*domain.VariantMutation, error) {
	f.lastPatch = patch
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &domain.VariantMutation{Variant: domain.Variant{ID: id, Price: *patch.Price}}, nil
}

func (f *fakeVariants) BulkUpdateFields(context.Context, []string, domain.VariantPatch) (*domain.BulkUpdateReport, error) {
	return &domain.BulkUpdateReport{Updated: []domain.Variant{}, Failed: []domain.BulkUpdateFailure{}}, nil
}

func (f *fakeVariants) DeleteVariant(_ context.Context, id string) (*domain.VariantMutation, error) {
	return &domain.VariantMutation{Variant: domain.Variant{ID: id}}, nil
}

func (f *fakeVariants) AdjustStock(_ context.Context, id string, delta int) (domain.Variant, error) {
	return domain.Variant{ID: id, Stock: delta}, nil
}

func (f *fakeVariants) ReorderVariants(context.Context, string, []string) error { return nil }

func (f *fakeVariants) RefreshAggregate(_ context.Context, id string) (domain.Product, error) {
	return domain.Product{ID: id}, nil
}

type fakeProducts struct{}

func (fakeProducts) CreateProduct(_ context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	return domain.Product{ID: "p1", Name: req.Name, BasePrice: req.BasePrice}, nil
}

func (fakeProducts) GetProductByID(_ context.Context, id string) (domain.Product, error) {
	return domain.Product{ID: id}, nil
}

type fakeAttributes struct{}

func (fakeAttributes) CreateAttribute(_ context.Context, req domain.CreateAttributeRequest) (domain.Attribute, error) {
	return domain.Attribute{ID: "a1", Name: req.Name, Type: req.Type}, nil
}

func (fakeAttributes) GetAttribute(_ context.Context, id string) (domain.Attribute, error) {
	return domain.Attribute{ID: id}, nil
}

type fakeImports struct {
	err error
}

func (f fakeImports) Import(_ context.Context, filename string, r io.Reader) (*importservice.ImportReport, error) {
	data, _ := io.ReadAll(r)
	report := &importservice.ImportReport{TotalRows: strings.Count(string(data), "\n") - 1, Created: []domain.Variant{}, Errors: []importservice.RowError{}}
	return report, f.err
}

type harness struct {
	handler  http.Handler
	variants *fakeVariants
	tokens   *token.Service
}

func newHarness(imports fakeImports) *harness {
	log := logger.NewNop()
	resp := respond.New(log)
	variants := &fakeVariants{}
	tokens := token.NewService("segredo", time.Hour)

	h := router.NewRouter(router.Handlers{
		Product:   product.NewHandler(fakeProducts{}, resp),
		Attribute: attribute.NewHandler(fakeAttributes{}, resp),
		Variant:   variant.NewHandler(variants, resp),
		Importer:  importer.NewHandler(imports, resp),
	}, tokens, router.RateLimit{}, log)

	return &harness{handler: h, variants: variants, tokens: tokens}
}

func (h *harness) do(t *testing.T, role domain.UserRole, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if role != "" {
		signed, err := h.tokens.GenerateToken("u-1", string(role))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+signed)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestPingAndSwaggerDoc(t *testing.T) {
	h := newHarness(fakeImports{})

	rec := h.do(t, "", http.MethodGet, "/ping", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	rec = h.do(t, "", http.MethodGet, "/swagger/doc.json", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, json.Valid(rec.Body.Bytes()))
}

func TestGenerate_UsesPathProductAndReturnsCreated(t *testing.T) {
	h := newHarness(fakeImports{})

	rec := h.do(t, domain.RoleEditor, http.MethodPost, "/v1/products/p-123/variants/generate",
		strings.NewReader(`{"groups":[{"attribute_id":"color","values":["red"]}],"stock":3}`), "application/json")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "p-123", h.variants.lastGenerate.ProductID)
	assert.Equal(t, 3, h.variants.lastGenerate.Stock)
}

func TestBulkCreate_AllFailedIsStillOK(t *testing.T) {
	h := newHarness(fakeImports{})

	rec := h.do(t, domain.RoleEditor, http.MethodPost, "/v1/variants/bulk",
		strings.NewReader(`{"proposals":[{"product_id":"p1","sku":"A","price":10.5,"stock":2}]}`), "application/json")

	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.BatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "A", report.Failed[0].SKU)
	assert.Equal(t, "10.5", h.variants.lastBulk[0].Price.String())
}

func TestBulkCreate_EmptyProposalsIsValidationError(t *testing.T) {
	h := newHarness(fakeImports{})

	rec := h.do(t, domain.RoleEditor, http.MethodPost, "/v1/variants/bulk", strings.NewReader(`{"proposals":[]}`), "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Category)
	assert.Contains(t, body.Message, "proposals")
}

func TestUpdateVariant_MapsErrors(t *testing.T) {
	h := newHarness(fakeImports{})

	rec := h.do(t, domain.RoleEditor, http.MethodPatch, "/v1/variants/v1", strings.NewReader(`{"price":"12.00","version":2}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.variants.lastPatch.Price.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 2, *h.variants.lastPatch.Version)

	h.variants.updateErr = apperror.NewConflictError("A variante foi modificada por outra operação.")
	rec = h.do(t, domain.RoleEditor, http.MethodPatch, "/v1/variants/v1", strings.NewReader(`{"price":"12.00"}`), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, domain.RoleEditor, http.MethodPatch, "/v1/variants/v1", strings.NewReader(`{"price":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes_RequireRoles(t *testing.T) {
	h := newHarness(fakeImports{})

	assert.Equal(t, http.StatusUnauthorized, h.do(t, "", http.MethodGet, "/v1/variants/v1", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, domain.RoleViewer, http.MethodGet, "/v1/variants/v1", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, domain.RoleViewer, http.MethodDelete, "/v1/variants/v1", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, domain.RoleEditor, http.MethodPost, "/v1/attributes",
		strings.NewReader(`{"name":"Cor","type":"COLOR"}`), "application/json").Code)
	assert.Equal(t, http.StatusCreated, h.do(t, domain.RoleAdmin, http.MethodPost, "/v1/attributes",
		strings.NewReader(`{"name":"Cor","type":"COLOR"}`), "application/json").Code)
}

func TestReorder_NoContent(t *testing.T) {
	h := newHarness(fakeImports{})

	rec := h.do(t, domain.RoleEditor, http.MethodPut, "/v1/products/p1/variants/order", strings.NewReader(`{"variant_ids":["a","b"]}`), "application/json")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func multipartFile(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImport_UploadAndPartialFailure(t *testing.T) {
	h := newHarness(fakeImports{})
	body, ct := multipartFile(t, "v.csv", "name,sku\nTee,T-1\nTee,T-2\n")

	rec := h.do(t, domain.RoleAdmin, http.MethodPost, "/v1/imports/variants", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	var report importservice.ImportReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalRows)

	broken := newHarness(fakeImports{err: apperror.NewDBError("Falha", errors.New("connection reset"))})
	body, ct = multipartFile(t, "v.csv", "name,sku\nTee,T-1\n")
	rec = broken.do(t, domain.RoleAdmin, http.MethodPost, "/v1/imports/variants", body, ct)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"report"`)

	rec = h.do(t, domain.RoleAdmin, http.MethodPost, "/v1/imports/variants", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplate_ServesWorkbook(t *testing.T) {
	h := newHarness(fakeImports{})

	rec := h.do(t, domain.RoleViewer, http.MethodGet, "/v1/imports/template?attr=color,size", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	sheet, err := importservice.ParseXLSX(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.True(t, sheet.HasColumn("attr:size"))
}
