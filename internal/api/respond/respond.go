// Package respond concentra a serialização de respostas e a tradução de
// erros de serviço para HTTP, compartilhada por todos os handlers.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
)

// maxBodyBytes limita o corpo JSON (1MB).
const maxBodyBytes = 1_048_576

// Responder escreve respostas padronizadas e registra as falhas.
type Responder struct {
	Logger   logger.Logger
	validate *validator.Validate
}

func New(log logger.Logger) *Responder {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Responder{Logger: log, validate: v}
}

// Handle processa erros de serviço e envia respostas padronizadas ao cliente.
func (rs *Responder) Handle(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		rs.Logger.Info("Requisição concluída com sucesso", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": successStatus,
		})
		rs.JSON(w, successStatus, data)
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)
	if status >= 500 {
		rs.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		rs.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	rs.JSON(w, status, domain.ErrorResponse{Code: status, Category: category, Message: message})
}

// JSON escreve data com o status informado. Um data nil gera corpo vazio.
func (rs *Responder) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.Logger.Error("Falha ao codificar JSON de resposta", err)
	}
}

// Decode lê o corpo JSON em dst e roda as tags validate. Qualquer falha vira
// ValidationError.
func (rs *Responder) Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		return apperror.NewValidationError("Payload inválido. Verifique o formato JSON.")
	}
	if err := rs.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return apperror.NewValidationError(describe(err))
	}
	return nil
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s é obrigatório", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s excede %s caracteres", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s requer ao menos %s item(ns)", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s é inválido (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
