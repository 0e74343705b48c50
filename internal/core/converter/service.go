package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/core/generator"
	"github.com/rikelmyso7/br-service-cli/internal/core/layout"
	"github.com/rikelmyso7/br-service-cli/internal/core/processor"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// Service define a interface do motor Layout -> arquivos por bloco.
type Service interface {
	Options(inputPath string) (*OptionsResult, error)
	Extract(inputPath string, sel processor.Selection) (*ExtractResult, error)
	Generate(req GenerateRequest, progress ProgressFunc) (*GenerateResult, error)
}

// Estágios reportados nos eventos de progresso.
const (
	StageStart    = "start"
	StageRead     = "read"
	StageValidate = "validate"
	StageProcess  = "process"
	StageGenerate = "generate"
	StageDone     = "done"
)

// Event é um passo de progresso da geração.
type Event struct {
	Stage    string
	Message  string
	Progress int
	File     string
}

type ProgressFunc func(Event)

// GenerateRequest reúne entrada, filtros e destino de uma geração.
type GenerateRequest struct {
	InputPath   string
	Selection   processor.Selection
	Destination generator.Destination
}

// Status do resultado da geração.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusEmpty     Status = "empty"
)

type GenerateResult struct {
	Status   Status              `json:"status"`
	Files    []domain.OutputFile `json:"arquivos"`
	Warnings []string            `json:"-"`
	Issues   []domain.RowIssue   `json:"linhas_descartadas"`
}

type OptionsResult struct {
	Options  domain.Options    `json:"opcoes"`
	Warnings []string          `json:"-"`
	Issues   []domain.RowIssue `json:"linhas_descartadas"`
}

// ExtractResult são os registros normalizados e filtrados, sem gravar arquivos.
type ExtractResult struct {
	Blocks   []BlockView       `json:"blocos"`
	Warnings []string          `json:"-"`
	Issues   []domain.RowIssue `json:"linhas_descartadas"`
}

type BlockView struct {
	Key           string       `json:"bloco"`
	Document      string       `json:"documento"`
	FinancialPlan string       `json:"plano_financeiro"`
	Records       []RecordView `json:"registros"`
}

type RecordView struct {
	Row         int    `json:"linha"`
	Contrato    string `json:"contrato"`
	Valor       string `json:"valor"`
	DataCredito string `json:"data_credito"`
}

type service struct {
	maxInputBytes int64
	reader        *layout.Reader
	processor     *processor.Processor
	generator     *generator.Generator
	logger        *zap.Logger
}

// NewService cria o serviço com a configuração e o logger explícitos.
func NewService(cfg *config.Config, logger *zap.Logger) Service {
	return &service{
		maxInputBytes: int64(cfg.MaxInputSizeMB) * 1024 * 1024,
		reader:        layout.NewReader(cfg, logger),
		processor:     processor.NewProcessor(cfg, logger),
		generator:     generator.NewGenerator(cfg, logger),
		logger:        logger,
	}
}

// Options lista documentos, planos e datas do arquivo.
func (svc *service) Options(inputPath string) (*OptionsResult, error) {
	normalized, warnings, err := svc.load(inputPath)
	if err != nil {
		return nil, err
	}
	return &OptionsResult{
		Options:  svc.processor.BuildOptions(normalized),
		Warnings: warnings,
		Issues:   normalized.Issues,
	}, nil
}

// Extract lê, normaliza e filtra. Nunca toca o sistema de arquivos além da entrada.
func (svc *service) Extract(inputPath string, sel processor.Selection) (*ExtractResult, error) {
	normalized, warnings, err := svc.load(inputPath)
	if err != nil {
		return nil, err
	}
	spec, err := svc.processor.ValidateSelections(normalized, sel)
	if err != nil {
		return nil, err
	}
	filtered := processor.Filter(normalized, spec)

	out := &ExtractResult{
		Blocks:   make([]BlockView, 0, len(filtered.Blocks)),
		Warnings: append(warnings, filtered.Warnings...),
		Issues:   filtered.Issues,
	}
	for _, b := range filtered.Blocks {
		view := BlockView{
			Key:           b.Key(),
			Document:      b.Descriptor.Document,
			FinancialPlan: b.Descriptor.FinancialPlan,
			Records:       make([]RecordView, 0, len(b.Records)),
		}
		for _, r := range b.Records {
			view.Records = append(view.Records, RecordView{
				Row:         r.Row,
				Contrato:    r.Contrato,
				Valor:       processor.FormatValue(r.Valor),
				DataCredito: svc.processor.FormatDate(r.DataCredito),
			})
		}
		out.Blocks = append(out.Blocks, view)
	}
	return out, nil
}

// Generate executa Leitor -> Processador -> Gerador. A pasta de saída é validada antes
// da leitura; seleções inválidas falham antes de qualquer arquivo ser gravado.
func (svc *service) Generate(req GenerateRequest, progress ProgressFunc) (*GenerateResult, error) {
	emit := func(stage, msg string, pct int, file string) {
		if progress != nil {
			progress(Event{Stage: stage, Message: msg, Progress: pct, File: file})
		}
	}

	emit(StageStart, "Iniciando processamento", 0, "")
	if err := generator.PrepareDir(req.Destination.Dir); err != nil {
		return nil, err
	}

	emit(StageRead, "Lendo planilha Layout", 10, req.InputPath)
	normalized, warnings, err := svc.load(req.InputPath)
	if err != nil {
		return nil, err
	}

	emit(StageValidate, "Validando seleções", 40, "")
	spec, err := svc.processor.ValidateSelections(normalized, req.Selection)
	if err != nil {
		return nil, err
	}

	emit(StageProcess, "Aplicando filtros", 60, "")
	filtered := processor.Filter(normalized, spec)
	warnings = append(warnings, filtered.Warnings...)

	result := &GenerateResult{Status: StatusGenerated, Issues: filtered.Issues, Files: []domain.OutputFile{}}
	if len(filtered.Blocks) == 0 {
		result.Status = StatusEmpty
		result.Warnings = append(warnings, "Nenhum dado encontrado para os filtros informados")
		svc.logger.Warn("nenhum dado para os filtros", zap.Strings("avisos", result.Warnings))
		emit(StageDone, "Nenhum dado para os filtros informados", 100, "")
		return result, nil
	}

	files, genErr := svc.generator.Generate(filtered, req.Destination, func(done, total int, file domain.OutputFile, err error) {
		msg := fmt.Sprintf("Arquivo %d de %d gerado", done, total)
		if err != nil {
			msg = fmt.Sprintf("Falha no arquivo %d de %d", done, total)
		}
		emit(StageGenerate, msg, 60+35*done/total, file.Path)
	})
	result.Files = append(result.Files, files...)
	result.Warnings = warnings
	if genErr != nil {
		return result, genErr
	}

	emit(StageDone, fmt.Sprintf("%d arquivo(s) gerado(s)", len(files)), 100, "")
	return result, nil
}

// load valida a entrada, lê a planilha e normaliza os registros.
func (svc *service) load(inputPath string) (domain.ExtractionResult, []string, error) {
	warnings, err := svc.validateInput(inputPath)
	if err != nil {
		return domain.ExtractionResult{}, nil, err
	}

	wb, err := layout.LoadWorkbook(inputPath)
	if err != nil {
		return domain.ExtractionResult{}, nil, err
	}
	ext, err := svc.reader.Read(wb)
	if err != nil {
		svc.logger.Error("erro estrutural na planilha", zap.String("arquivo", inputPath), zap.Error(err))
		return domain.ExtractionResult{}, nil, err
	}

	normalized := svc.processor.Normalize(ext)
	if n := len(normalized.Issues); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d linha(s) descartada(s) na leitura", n))
	}
	svc.logger.Info("planilha lida",
		zap.String("arquivo", inputPath),
		zap.Int("blocos", len(normalized.Blocks)),
		zap.Int("registros", normalized.TotalRecords()),
		zap.Int("descartadas", len(normalized.Issues)))
	return normalized, warnings, nil
}

// validateInput confere existência e extensão e avisa sobre arquivos muito grandes.
func (svc *service) validateInput(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.InputFileError("Arquivo de entrada não informado", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.InputFileError(fmt.Sprintf("Arquivo não encontrado: '%s'", path), nil)
		}
		return nil, domain.InputFileError(fmt.Sprintf("Não foi possível acessar '%s'", path), err)
	}
	if info.IsDir() {
		return nil, domain.InputFileError(fmt.Sprintf("'%s' é uma pasta, não um arquivo", path), nil)
	}
	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, e := range layout.SupportedInputExtensions {
		if e == ext {
			supported = true
		}
	}
	if !supported {
		return nil, domain.InputFileError(
			fmt.Sprintf("Formato de arquivo inválido '%s'. Use %s", ext, strings.Join(layout.SupportedInputExtensions, ", ")), nil)
	}

	var warnings []string
	if svc.maxInputBytes > 0 && info.Size() > svc.maxInputBytes {
		warnings = append(warnings, fmt.Sprintf("Arquivo muito grande (%.1fMB). Pode demorar para processar", float64(info.Size())/(1024*1024)))
	}
	return warnings, nil
}
