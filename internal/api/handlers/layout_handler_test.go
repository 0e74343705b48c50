package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rikelmyso7/br-service-cli/internal/api/responses"
	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/core/converter"
)

func writeLayout(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Layout"))

	rows := [][]any{
		{"Documento", "AZ", nil, nil, "Documento", "REG"},
		{"Plano Financeiro", "1.01.02.01", nil, nil, "Plano Financeiro", "1.04.01.08"},
		{"Contrato", "Valor", "Data Crédito", nil, "Contrato", "Valor", "Data Crédito"},
		{"C-1", "1.234,56", "05/05/2025", nil, "R-1", 10.5, "06/05/2025"},
		{"C-2", 628.91, "27/05/2025"},
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Layout", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "Layout Maio.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func newHandler(buf *bytes.Buffer) *LayoutHandler {
	logger := zap.NewNop()
	return NewLayoutHandler(converter.NewService(config.Default(), logger), responses.NewWriter(buf, "run-test", logger), logger)
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"AZ-1.01.02.01", "REG"}, splitList(" AZ-1.01.02.01 , ,REG,"))
}

func TestDestinationFrom(t *testing.T) {
	base := Params{Input: filepath.Join("in", "Layout Maio.xlsx"), Output: "out"}
	assert.Equal(t, "Layout Maio", destinationFrom(base).Subfolder)

	p := base
	p.NomePasta = " Lote 1 "
	assert.Equal(t, "Lote 1", destinationFrom(p).Subfolder)

	p = base
	p.PorDocumento = true
	d := destinationFrom(p)
	assert.Empty(t, d.Subfolder)
	assert.True(t, d.PerDocument)

	p = base
	p.SemPasta = true
	assert.Empty(t, destinationFrom(p).Subfolder)
}

func TestHandleOptions(t *testing.T) {
	var buf bytes.Buffer
	code := newHandler(&buf).HandleOptions(Params{Input: writeLayout(t)})
	require.Equal(t, ExitOK, code)

	resp := lines(t, &buf)[0]
	assert.Equal(t, responses.StatusSuccess, resp["status"])
	assert.Equal(t, "run-test", resp["run_id"])
	opcoes := resp["data"].(map[string]any)["opcoes"].(map[string]any)
	assert.Equal(t, []any{"AZ-1.01.02.01", "REG-1.04.01.08"}, opcoes["documentos"])
}

func TestHandleDatas(t *testing.T) {
	var buf bytes.Buffer
	require.Equal(t, ExitOK, newHandler(&buf).HandleDatas(Params{Input: writeLayout(t)}))

	data := lines(t, &buf)[0]["data"].(map[string]any)
	porDoc := data["datas_por_documento"].(map[string]any)
	assert.Equal(t, []any{"05/05/2025", "27/05/2025"}, porDoc["AZ-1.01.02.01"])
	assert.NotContains(t, data, "documentos")
}

func TestHandleExtract(t *testing.T) {
	var buf bytes.Buffer
	code := newHandler(&buf).HandleExtract(Params{Input: writeLayout(t), Datas: "27/05/2025"})
	require.Equal(t, ExitOK, code)

	blocos := lines(t, &buf)[0]["data"].(map[string]any)["blocos"].([]any)
	require.Len(t, blocos, 1)
	assert.Equal(t, "AZ-1.01.02.01", blocos[0].(map[string]any)["bloco"])
}

func TestHandleGenerate_WithProgress(t *testing.T) {
	input := writeLayout(t)
	out := t.TempDir()

	var buf bytes.Buffer
	code := newHandler(&buf).HandleGenerate(Params{Input: input, Output: out, Documentos: "REG", Progress: true})
	require.Equal(t, ExitOK, code)

	all := lines(t, &buf)
	require.GreaterOrEqual(t, len(all), 2)
	assert.Equal(t, "start", all[0]["event"])
	assert.Equal(t, "done", all[len(all)-2]["event"])
	assert.Equal(t, responses.StatusSuccess, all[len(all)-1]["status"])

	_, err := os.Stat(filepath.Join(out, "Layout Maio", "REG-1.04.01.08.xls"))
	assert.NoError(t, err)
}

func TestHandleGenerate_Empty(t *testing.T) {
	var buf bytes.Buffer
	code := newHandler(&buf).HandleGenerate(Params{Input: writeLayout(t), Output: t.TempDir(), Documentos: "REG", Datas: "05/05/2025"})
	require.Equal(t, ExitOK, code)
	assert.Equal(t, responses.StatusEmpty, lines(t, &buf)[0]["status"])
}

func TestHandleGenerate_Errors(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf)

	assert.Equal(t, ExitUsage, h.HandleGenerate(Params{Input: "x.xlsx"}))
	resp := lines(t, &buf)[0]
	assert.Equal(t, responses.StatusError, resp["status"])
	assert.Equal(t, "VALIDATION_ERROR", resp["code"])

	buf.Reset()
	assert.Equal(t, ExitError, h.HandleGenerate(Params{Input: writeLayout(t), Output: t.TempDir(), Documentos: "XYZ-1"}))
	resp = lines(t, &buf)[0]
	assert.Equal(t, "VALIDATION_ERROR", resp["code"])
	assert.Contains(t, resp["message"], "XYZ-1")

	buf.Reset()
	assert.Equal(t, ExitError, h.HandleOptions(Params{Input: filepath.Join(t.TempDir(), "falta.xlsx")}))
	assert.Equal(t, "INPUT_FILE_ERROR", lines(t, &buf)[0]["code"])
}

type brokenStdout struct{}

func (brokenStdout) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestHandle_WriteFailureIsAnError(t *testing.T) {
	logger := zap.NewNop()
	h := NewLayoutHandler(converter.NewService(config.Default(), logger), responses.NewWriter(brokenStdout{}, "run-test", logger), logger)
	input := writeLayout(t)

	assert.Equal(t, ExitError, h.HandleOptions(Params{Input: input}))
	assert.Equal(t, ExitError, h.HandleGenerate(Params{Input: input, Output: t.TempDir(), Progress: true}))
	assert.Equal(t, ExitError, h.HandleGenerate(Params{Input: input}))
}

func TestHandle_LogLevelFollowsErrorKind(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	var buf bytes.Buffer
	h := NewLayoutHandler(converter.NewService(config.Default(), logger), responses.NewWriter(&buf, "run-test", logger), logger)

	h.HandleOptions(Params{Input: filepath.Join(t.TempDir(), "falta.xlsx")})
	require.Equal(t, 1, logs.FilterMessage("entrada rejeitada").Len())
	assert.Equal(t, zapcore.WarnLevel, logs.FilterMessage("entrada rejeitada").All()[0].Level)

	f := excelize.NewFile()
	path := filepath.Join(t.TempDir(), "sem_layout.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	h.HandleOptions(Params{Input: path})
	structural := logs.FilterMessage("planilha fora do layout esperado").All()
	require.Len(t, structural, 1)
	assert.Equal(t, zapcore.ErrorLevel, structural[0].Level)
}
