package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifica de forma estável o tipo de erro exposto na fronteira (JSON).
type Code string

// Códigos de erro expostos ao front end.
const (
	CodeSheetNotFound  Code = "SHEET_NOT_FOUND"
	CodeHeaderNotFound Code = "HEADER_NOT_FOUND"
	CodeColumnMissing  Code = "COLUMN_MISSING"
	CodeDuplicateBlock Code = "DUPLICATE_BLOCK"
	CodeInvalidValue   Code = "INVALID_VALUE"
	CodeInvalidDate    Code = "INVALID_DATE"
	CodeOutputDir      Code = "OUTPUT_DIR_ERROR"
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeInputFile      Code = "INPUT_FILE_ERROR"
	CodeGeneration     Code = "GENERATION_ERROR"
	CodeInternal       Code = "INTERNAL_ERROR"

	// CodeIncompleteRow marca linhas descartadas por falta de um dos três valores.
	CodeIncompleteRow Code = "INCOMPLETE_ROW"
	// CodeZeroValue marca linhas com Valor zero ignoradas por configuração.
	CodeZeroValue Code = "ZERO_VALUE"
)

// Error é o erro estruturado do motor. Compara-se por código com errors.Is.
type Error struct {
	Code    Code
	Message string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ". Detalhes: " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is permite errors.Is(err, domain.ErrSheetNotFound) independentemente da mensagem.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinelas para comparação com errors.Is.
var (
	ErrSheetNotFound  = &Error{Code: CodeSheetNotFound}
	ErrHeaderNotFound = &Error{Code: CodeHeaderNotFound}
	ErrColumnMissing  = &Error{Code: CodeColumnMissing}
	ErrDuplicateBlock = &Error{Code: CodeDuplicateBlock}
	ErrInvalidValue   = &Error{Code: CodeInvalidValue}
	ErrInvalidDate    = &Error{Code: CodeInvalidDate}
	ErrOutputDir      = &Error{Code: CodeOutputDir}
	ErrValidation     = &Error{Code: CodeValidation}
	ErrInputFile      = &Error{Code: CodeInputFile}
	ErrGeneration     = &Error{Code: CodeGeneration}
)

// CodeOf devolve o código do primeiro *Error na cadeia, ou INTERNAL_ERROR.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsStructural indica erros que abortam a execução inteira.
func IsStructural(err error) bool {
	switch CodeOf(err) {
	case CodeSheetNotFound, CodeHeaderNotFound, CodeColumnMissing, CodeDuplicateBlock:
		return true
	}
	return false
}

func SheetNotFoundError(name string, available []string) *Error {
	return &Error{
		Code:    CodeSheetNotFound,
		Message: fmt.Sprintf("Planilha '%s' não encontrada", name),
		Details: "Planilhas disponíveis: " + strings.Join(available, ", "),
	}
}

func HeaderNotFoundError(sheet string) *Error {
	return &Error{
		Code:    CodeHeaderNotFound,
		Message: fmt.Sprintf("Nenhum bloco com cabeçalho Contrato/Valor/Data Crédito e metadados Documento/Plano Financeiro encontrado na planilha '%s'", sheet),
	}
}

func ColumnMissingError(column string, row int, found []string) *Error {
	return &Error{
		Code:    CodeColumnMissing,
		Message: fmt.Sprintf("Coluna '%s' não encontrada no cabeçalho da linha %d", column, row+1),
		Details: "Colunas encontradas: " + strings.Join(found, ", "),
	}
}

// AmbiguousHeaderError reporta uma sequência de cabeçalhos que admite mais de um
// alinhamento de Contrato, Valor e Data Crédito.
func AmbiguousHeaderError(row int, found []string) *Error {
	return &Error{
		Code:    CodeColumnMissing,
		Message: fmt.Sprintf("Cabeçalho ambíguo na linha %d: não foi possível separar Contrato, Valor e Data Crédito", row+1),
		Details: "Colunas encontradas: " + strings.Join(found, ", "),
	}
}

func DuplicateBlockError(key string, firstCol, secondCol int) *Error {
	return &Error{
		Code:    CodeDuplicateBlock,
		Message: fmt.Sprintf("Bloco '%s' aparece mais de uma vez na planilha", key),
		Details: fmt.Sprintf("colunas %d e %d", firstCol+1, secondCol+1),
	}
}

func InvalidValueError(raw string) *Error {
	return &Error{
		Code:    CodeInvalidValue,
		Message: fmt.Sprintf("Valor inválido: %q", raw),
	}
}

func InvalidDateError(raw string) *Error {
	return &Error{
		Code:    CodeInvalidDate,
		Message: fmt.Sprintf("Data inválida: %q", raw),
	}
}

func OutputDirError(path string, cause error) *Error {
	return &Error{
		Code:    CodeOutputDir,
		Message: fmt.Sprintf("Não foi possível preparar a pasta de saída '%s'", path),
		Cause:   cause,
	}
}

func InputFileError(message string, cause error) *Error {
	return &Error{Code: CodeInputFile, Message: message, Cause: cause}
}

func GenerationError(blockKey string, cause error) *Error {
	return &Error{
		Code:    CodeGeneration,
		Message: fmt.Sprintf("Erro ao gerar arquivo do bloco '%s'", blockKey),
		Cause:   cause,
	}
}

// UsageError reporta parâmetros de linha de comando ausentes ou inválidos.
func UsageError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// ValidationError descreve seleções do usuário ausentes no arquivo de origem.
type ValidationError struct {
	InvalidDocuments []string
	InvalidDates     []string
	InvalidPlans     []string
	Suggestions      map[string]string
}

// AsError converte para o erro codificado, ou nil se não houver seleções inválidas.
func (v ValidationError) AsError() error {
	if len(v.InvalidDocuments) == 0 && len(v.InvalidDates) == 0 && len(v.InvalidPlans) == 0 {
		return nil
	}
	var parts []string
	if len(v.InvalidDocuments) > 0 {
		docs := make([]string, 0, len(v.InvalidDocuments))
		for _, d := range v.InvalidDocuments {
			if s, ok := v.Suggestions[d]; ok {
				docs = append(docs, fmt.Sprintf("%s (você quis dizer %s?)", d, s))
				continue
			}
			docs = append(docs, d)
		}
		parts = append(parts, "documentos inválidos: "+strings.Join(docs, ", "))
	}
	if len(v.InvalidPlans) > 0 {
		parts = append(parts, "planos inválidos: "+strings.Join(v.InvalidPlans, ", "))
	}
	if len(v.InvalidDates) > 0 {
		parts = append(parts, "datas inválidas: "+strings.Join(v.InvalidDates, ", "))
	}
	return &Error{
		Code:    CodeValidation,
		Message: "Seleções não encontradas no arquivo de entrada",
		Details: strings.Join(parts, "; "),
	}
}
