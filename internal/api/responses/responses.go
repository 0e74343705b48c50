// internal/api/responses/responses.go
package responses

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// Status values of the envelope.
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusError   = "error"
)

// APIResponse defines the standard envelope written to stdout for the front end.
type APIResponse struct {
	Status   string      `json:"status"` // "success", "empty" or "error"
	Code     string      `json:"code,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
	RunID    string      `json:"run_id"`
}

// ProgressEvent is one NDJSON line emitted while generating.
type ProgressEvent struct {
	Event    string `json:"event"`
	Msg      string `json:"msg"`
	Progress int    `json:"progress"`
	File     string `json:"file,omitempty"`
	RunID    string `json:"run_id"`
}

// Writer serializes envelopes and events, one JSON document per line.
type Writer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	runID  string
	logger *zap.Logger
}

func NewWriter(out io.Writer, runID string, logger *zap.Logger) *Writer {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc, runID: runID, logger: logger}
}

func (w *Writer) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// Success sends a successful response with the provided data and message.
func (w *Writer) Success(data interface{}, message string, warnings []string) error {
	w.logger.Info("resposta de sucesso", zap.String("message", message), zap.Int("warnings", len(warnings)))
	return w.write(APIResponse{Status: StatusSuccess, Data: data, Message: message, Warnings: warnings, RunID: w.runID})
}

// Empty reports a run that found no data for the filters. It is not an error.
func (w *Writer) Empty(data interface{}, message string, warnings []string) error {
	w.logger.Warn("resultado vazio", zap.String("message", message), zap.Strings("warnings", warnings))
	return w.write(APIResponse{Status: StatusEmpty, Data: data, Message: message, Warnings: warnings, RunID: w.runID})
}

// Error sends an error response carrying the stable code of err.
func (w *Writer) Error(err error, data interface{}) error {
	code := domain.CodeOf(err)
	resp := APIResponse{
		Status:  StatusError,
		Code:    string(code),
		Message: err.Error(),
		Data:    data,
		Errors:  errorList(err),
		RunID:   w.runID,
	}
	w.logger.Error("resposta de erro", zap.String("code", resp.Code), zap.Strings("errors", resp.Errors))
	return w.write(resp)
}

// Event emits one progress line.
func (w *Writer) Event(event, msg string, progress int, file string) error {
	return w.write(ProgressEvent{Event: event, Msg: msg, Progress: progress, File: file, RunID: w.runID})
}

// errorList flattens errors.Join trees into one message per leaf.
func errorList(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, errorList(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
