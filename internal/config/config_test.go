package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadWith_DefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := LoadWith(filepath.Join(t.TempDir(), "nope.json"), false, mapLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "Layout", cfg.SheetName)
	assert.Equal(t, ".xls", cfg.OutputExtension)
	assert.Equal(t, []string{"Contrato", "Valor", "Emissão", "Vencimento", "Competência"}, cfg.OutputColumns)
	assert.True(t, cfg.IgnoreZeroValues)
}

func TestLoadWith_RequiredFileMissing(t *testing.T) {
	_, err := LoadWith(filepath.Join(t.TempDir(), "nope.json"), true, mapLookup(nil))
	require.Error(t, err)
}

func TestLoadWith_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"log_level":"DEBUG","output_extension":".xlsx","synonyms":{"valor":["valor","amount"]}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadWith(path, true, mapLookup(map[string]string{
		"BR_SERVICE_OUTPUT_EXTENSION":   ".csv",
		"BR_SERVICE_OUTPUT_COLUMNS":     "Contrato, Valor",
		"BR_SERVICE_IGNORE_ZERO_VALUES": "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, ".csv", cfg.OutputExtension)
	assert.Equal(t, []string{"Contrato", "Valor"}, cfg.OutputColumns)
	assert.False(t, cfg.IgnoreZeroValues)
	assert.Equal(t, []string{"valor", "amount"}, cfg.Synonyms.Valor)
	assert.Equal(t, []string{"contrato", "contract"}, cfg.Synonyms.Contrato)
}

func TestLoadWith_InvalidEnvInt(t *testing.T) {
	_, err := LoadWith("", false, mapLookup(map[string]string{"BR_SERVICE_METADATA_LOOKBACK": "abc"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "METADATA_LOOKBACK")
}

func TestLookupChain_EnvWinsOverDotEnv(t *testing.T) {
	lookup := lookupChain(mapLookup(map[string]string{"BR_SERVICE_LOG_DIR": "/env"}),
		map[string]string{"BR_SERVICE_LOG_DIR": "/dotenv", "BR_SERVICE_LOG_LEVEL": "WARN"})

	v, ok := lookup("BR_SERVICE_LOG_DIR")
	assert.True(t, ok)
	assert.Equal(t, "/env", v)

	v, ok = lookup("BR_SERVICE_LOG_LEVEL")
	assert.True(t, ok)
	assert.Equal(t, "WARN", v)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty sheet", func(c *Config) { c.SheetName = " " }, true},
		{"unknown column", func(c *Config) { c.OutputColumns = []string{"Contrato", "Saldo"} }, true},
		{"column without accent", func(c *Config) { c.OutputColumns = []string{"Emissao", "competencia"} }, false},
		{"bad extension", func(c *Config) { c.OutputExtension = ".ods" }, true},
		{"no lookback", func(c *Config) { c.MetadataLookback = 0 }, true},
		{"empty synonyms", func(c *Config) { c.Synonyms.Documento = nil }, true},
		{"iso date format", func(c *Config) { c.DateFormat = "2006-01-02" }, false},
		{"date format without year", func(c *Config) { c.DateFormat = "02/01" }, true},
		{"date format with time", func(c *Config) { c.DateFormat = "02/01/2006 15:04" }, true},
		{"empty date format", func(c *Config) { c.DateFormat = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExcelDateFormat(t *testing.T) {
	tests := []struct {
		layout string
		want   string
	}{
		{"02/01/2006", "dd/mm/yyyy"},
		{"2006-01-02", "yyyy-mm-dd"},
		{"2.1.06", "d.m.yy"},
		{"02 Jan 2006", "dd mmm yyyy"},
	}
	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			got, err := ExcelDateFormat(tt.layout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ExcelDateFormat("02/01/2006 15:04")
	assert.Error(t, err)
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, ".xls", NormalizeExtension("XLS"))
	assert.Equal(t, ".csv", NormalizeExtension(" .csv "))
	assert.Equal(t, "", NormalizeExtension(""))
}
