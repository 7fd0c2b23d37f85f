package attributeservice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/service/attributeservice"
)

type MockAttributeRepository struct {
	mock.Mock
}

func (m *MockAttributeRepository) Create(ctx context.Context, a domain.Attribute) (domain.Attribute, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(domain.Attribute), args.Error(1)
}

func (m *MockAttributeRepository) FindByID(ctx context.Context, id string) (domain.Attribute, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Attribute), args.Error(1)
}

func TestCreateAttribute_NormalizesInput(t *testing.T) {
	mockRepo := new(MockAttributeRepository)
	svc := attributeservice.NewService(mockRepo, logger.NewLogger("debug"))

	var attr domain.Attribute
	mockRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { attr = args.Get(1).(domain.Attribute) }).
		Return(domain.Attribute{}, nil)

	_, err := svc.CreateAttribute(context.Background(), domain.CreateAttributeRequest{
		Name:   " Cor ",
		Type:   "color",
		Values: []string{" Red", "Blue "},
	})

	require.NoError(t, err)
	assert.Equal(t, "Cor", attr.Name)
	assert.Equal(t, domain.AttributeColor, attr.Type)
	assert.Equal(t, []string{"Red", "Blue"}, attr.Values)
	assert.NotEmpty(t, attr.ID)
}

func TestCreateAttribute_Fail_Validation(t *testing.T) {
	cases := map[string]domain.CreateAttributeRequest{
		"sem nome":          {Type: "SELECT"},
		"tipo desconhecido": {Name: "Cor", Type: "GRADIENT"},
		"valor vazio":       {Name: "Cor", Type: "SELECT", Values: []string{"a", " "}},
		"valor repetido":    {Name: "Cor", Type: "SELECT", Values: []string{"a", "a"}},
		"número inválido":   {Name: "Peso", Type: "NUMBER", Values: []string{"1.5", "pesado"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			mockRepo := new(MockAttributeRepository)
			svc := attributeservice.NewService(mockRepo, logger.NewNop())

			_, err := svc.CreateAttribute(context.Background(), req)

			assert.IsType(t, &apperror.ValidationError{}, err)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestGetAttribute(t *testing.T) {
	mockRepo := new(MockAttributeRepository)
	svc := attributeservice.NewService(mockRepo, logger.NewNop())

	id := uuid.New().String()
	mockRepo.On("FindByID", mock.Anything, id).Return(domain.Attribute{ID: id, Name: "Cor"}, nil)

	attr, err := svc.GetAttribute(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Cor", attr.Name)

	_, err = svc.GetAttribute(context.Background(), "cor")
	assert.IsType(t, &apperror.ValidationError{}, err)
}
