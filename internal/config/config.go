package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// EnvPrefix prefixes every environment override (BR_SERVICE_LOG_LEVEL, ...).
const EnvPrefix = "BR_SERVICE_"

// Config is passed explicitly to every component constructor.
type Config struct {
	SheetName        string   `json:"sheet_name"`
	LogDir           string   `json:"log_dir"`
	LogLevel         string   `json:"log_level"`
	DateFormat       string   `json:"date_format"`
	OutputColumns    []string `json:"output_columns"`
	OutputExtension  string   `json:"output_extension"`
	OutputSheetName  string   `json:"output_sheet_name"`
	MetadataLookback int      `json:"metadata_lookback"`
	IgnoreZeroValues bool     `json:"ignore_zero_values"`
	MaxInputSizeMB   int      `json:"max_input_size_mb"`
	Synonyms         Synonyms `json:"synonyms"`
}

// Synonyms holds the accepted labels for header columns and metadata rows.
// Matching is case and diacritic insensitive.
type Synonyms struct {
	Contrato        []string `json:"contrato"`
	Valor           []string `json:"valor"`
	DataCredito     []string `json:"data_credito"`
	Documento       []string `json:"documento"`
	PlanoFinanceiro []string `json:"plano_financeiro"`
}

// Output column names understood by the generator.
const (
	ColContrato    = "Contrato"
	ColValor       = "Valor"
	ColEmissao     = "Emissão"
	ColVencimento  = "Vencimento"
	ColCompetencia = "Competência"
)

var supportedExtensions = []string{".xls", ".xlsx", ".csv"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SheetName:        "Layout",
		LogDir:           "logs",
		LogLevel:         "INFO",
		DateFormat:       "02/01/2006",
		OutputColumns:    []string{ColContrato, ColValor, ColEmissao, ColVencimento, ColCompetencia},
		OutputExtension:  ".xls",
		OutputSheetName:  "Dados",
		MetadataLookback: 6,
		IgnoreZeroValues: true,
		MaxInputSizeMB:   100,
		Synonyms: Synonyms{
			Contrato:        []string{"contrato", "contract"},
			Valor:           []string{"valor", "value", "montante"},
			DataCredito:     []string{"data credito", "dt credito", "data", "date"},
			Documento:       []string{"documento", "document", "doc"},
			PlanoFinanceiro: []string{"plano financeiro", "plano", "financial plan"},
		},
	}
}

// DefaultPath returns {UserConfigDir}/BR_SERVICE/config.json.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "BR_SERVICE", "config.json")
}

// Load builds the configuration from defaults, the JSON file at path (DefaultPath when
// empty, ignored if absent), a .env file in the working directory and the process environment.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	dotenv, err := readDotEnv(".env")
	if err != nil {
		return nil, err
	}
	return LoadWith(path, explicit, lookupChain(os.LookupEnv, dotenv))
}

// LoadWith is Load with an injected environment lookup. When required is true a
// missing config file is an error.
func LoadWith(path string, required bool, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || required {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("erro ao ler arquivo de configuração '%s': %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("erro ao interpretar arquivo de configuração '%s': %w", path, err)
	}
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("erro ao ler %s: %w", path, err)
	}
	return values, nil
}

// lookupChain gives the real environment precedence over .env values.
func lookupChain(env func(string) (string, bool), dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	c.SheetName = getEnvOrDefault(lookup, "SHEET_NAME", c.SheetName)
	c.LogDir = getEnvOrDefault(lookup, "LOG_DIR", c.LogDir)
	c.LogLevel = getEnvOrDefault(lookup, "LOG_LEVEL", c.LogLevel)
	c.DateFormat = getEnvOrDefault(lookup, "DATE_FORMAT", c.DateFormat)
	c.OutputExtension = getEnvOrDefault(lookup, "OUTPUT_EXTENSION", c.OutputExtension)
	c.OutputSheetName = getEnvOrDefault(lookup, "OUTPUT_SHEET_NAME", c.OutputSheetName)
	c.OutputColumns = getEnvListOrDefault(lookup, "OUTPUT_COLUMNS", c.OutputColumns)

	var err error
	if c.MetadataLookback, err = getEnvIntOrDefault(lookup, "METADATA_LOOKBACK", c.MetadataLookback); err != nil {
		return err
	}
	if c.MaxInputSizeMB, err = getEnvIntOrDefault(lookup, "MAX_INPUT_SIZE_MB", c.MaxInputSizeMB); err != nil {
		return err
	}
	if c.IgnoreZeroValues, err = getEnvBoolOrDefault(lookup, "IGNORE_ZERO_VALUES", c.IgnoreZeroValues); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SheetName) == "" {
		return fmt.Errorf("configuração inválida: sheet_name vazio")
	}
	if len(c.OutputColumns) == 0 {
		return fmt.Errorf("configuração inválida: output_columns vazio")
	}
	for _, col := range c.OutputColumns {
		if !KnownColumn(col) {
			return fmt.Errorf("configuração inválida: coluna de saída desconhecida '%s'", col)
		}
	}
	if !SupportedExtension(c.OutputExtension) {
		return fmt.Errorf("configuração inválida: extensão de saída '%s' não suportada (use %s)",
			c.OutputExtension, strings.Join(supportedExtensions, ", "))
	}
	if err := ValidateDateFormat(c.DateFormat); err != nil {
		return fmt.Errorf("configuração inválida: date_format: %w", err)
	}
	if c.MetadataLookback < 1 {
		return fmt.Errorf("configuração inválida: metadata_lookback deve ser >= 1")
	}
	s := c.Synonyms
	if len(s.Contrato) == 0 || len(s.Valor) == 0 || len(s.DataCredito) == 0 ||
		len(s.Documento) == 0 || len(s.PlanoFinanceiro) == 0 {
		return fmt.Errorf("configuração inválida: todas as listas de sinônimos devem ter ao menos um item")
	}
	return nil
}

// excelDateTokens maps Go layout elements to Excel number format codes, longest first.
var excelDateTokens = []struct{ layout, excel string }{
	{"January", "mmmm"},
	{"2006", "yyyy"},
	{"Jan", "mmm"},
	{"01", "mm"},
	{"02", "dd"},
	{"06", "yy"},
	{"1", "m"},
	{"2", "d"},
}

// ExcelDateFormat translates a Go date layout such as "02/01/2006" into the
// Excel number format "dd/mm/yyyy". Only day, month and year elements are allowed.
func ExcelDateFormat(layout string) (string, error) {
	var b strings.Builder
	for rest := layout; rest != ""; {
		matched := false
		for _, tok := range excelDateTokens {
			if strings.HasPrefix(rest, tok.layout) {
				b.WriteString(tok.excel)
				rest = rest[len(tok.layout):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		switch ch := rest[0]; ch {
		case '/', '-', '.', ' ':
			b.WriteByte(ch)
			rest = rest[1:]
		default:
			return "", fmt.Errorf("elemento não suportado em '%s' a partir de '%s'", layout, rest)
		}
	}
	return b.String(), nil
}

// ValidateDateFormat requires a layout that writes and reads back a full date.
func ValidateDateFormat(layout string) error {
	if strings.TrimSpace(layout) == "" {
		return errors.New("formato vazio")
	}
	if _, err := ExcelDateFormat(layout); err != nil {
		return err
	}
	sample := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	back, err := time.Parse(layout, sample.Format(layout))
	if err != nil || !back.Equal(sample) {
		return fmt.Errorf("'%s' não preserva dia, mês e ano", layout)
	}
	return nil
}

// KnownColumn reports whether name is one of the generator's output columns.
func KnownColumn(name string) bool {
	folded := domain.FoldText(name)
	for _, col := range []string{ColContrato, ColValor, ColEmissao, ColVencimento, ColCompetencia} {
		if domain.FoldText(col) == folded {
			return true
		}
	}
	return false
}

func SupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range supportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// NormalizeExtension accepts "xls" or ".XLS" and returns ".xls".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func getEnvOrDefault(lookup func(string) (string, bool), key, defaultValue string) string {
	if value, ok := lookup(EnvPrefix + key); ok {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(lookup func(string) (string, bool), key string, defaultValue int) (int, error) {
	value, ok := lookup(EnvPrefix + key)
	if !ok {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("configuração inválida: %s%s=%q não é um inteiro", EnvPrefix, key, value)
	}
	return n, nil
}

func getEnvBoolOrDefault(lookup func(string) (string, bool), key string, defaultValue bool) (bool, error) {
	value, ok := lookup(EnvPrefix + key)
	if !ok {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("configuração inválida: %s%s=%q não é booleano", EnvPrefix, key, value)
	}
	return b, nil
}

func getEnvListOrDefault(lookup func(string) (string, bool), key string, defaultValue []string) []string {
	value, ok := lookup(EnvPrefix + key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
