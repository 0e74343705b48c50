package generator

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// maxCreateAttempts limita as tentativas de criação exclusiva quando outro
// processo ocupa o nome entre a listagem e a criação.
const maxCreateAttempts = 5

// Destination diz onde e em que formato gravar os arquivos.
type Destination struct {
	Dir         string
	Subfolder   string
	PerDocument bool
	Extension   string
}

// ProgressFunc é chamada após cada bloco, gravado ou não.
type ProgressFunc func(done, total int, file domain.OutputFile, err error)

// Generator grava um arquivo por bloco com as colunas configuradas.
type Generator struct {
	columns         []string
	extension       string
	sheetName       string
	dateLayout      string
	excelDateFormat string
	list            ListFunc
	logger          *zap.Logger
}

func NewGenerator(cfg *config.Config, logger *zap.Logger) *Generator {
	layout := cfg.DateFormat
	excelFmt, err := config.ExcelDateFormat(layout)
	if layout == "" || err != nil {
		layout, excelFmt = "02/01/2006", "dd/mm/yyyy"
	}
	return &Generator{
		columns:         cfg.OutputColumns,
		extension:       cfg.OutputExtension,
		sheetName:       cfg.OutputSheetName,
		dateLayout:      layout,
		excelDateFormat: excelFmt,
		list:            ListDir,
		logger:          logger,
	}
}

// PrepareDir cria o diretório, se preciso, e confirma que é gravável.
func PrepareDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return domain.OutputDirError(dir, errors.New("caminho vazio"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.OutputDirError(dir, err)
	}
	probe, err := os.CreateTemp(dir, ".br_service_probe_*")
	if err != nil {
		return domain.OutputDirError(dir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return domain.OutputDirError(dir, err)
	}
	return nil
}

// BuildRows mapeia os registros 1:1; Emissão, Vencimento e Competência repetem a Data Crédito.
func BuildRows(b domain.Block) []domain.OutputRow {
	rows := make([]domain.OutputRow, 0, len(b.Records))
	for _, r := range b.Records {
		rows = append(rows, domain.OutputRow{
			Contrato:    r.Contrato,
			Valor:       r.Valor,
			Emissao:     r.DataCredito,
			Vencimento:  r.DataCredito,
			Competencia: r.DataCredito,
		})
	}
	return rows
}

// Generate grava os blocos em sequência. A falha de um bloco não impede os demais;
// as falhas voltam juntas como GENERATION_ERROR ao lado dos arquivos gerados.
func (g *Generator) Generate(result domain.ExtractionResult, dest Destination, progress ProgressFunc) ([]domain.OutputFile, error) {
	ext := dest.Extension
	if ext == "" {
		ext = g.extension
	}
	ext = config.NormalizeExtension(ext)
	if !config.SupportedExtension(ext) {
		return nil, &domain.Error{Code: domain.CodeValidation, Message: fmt.Sprintf("Formato de saída não suportado: '%s'", ext)}
	}
	cols, err := resolveColumns(g.columns, g.dateLayout)
	if err != nil {
		return nil, err
	}
	if err := PrepareDir(dest.Dir); err != nil {
		return nil, err
	}

	var files []domain.OutputFile
	var errs []error
	total := len(result.Blocks)

	for i, b := range result.Blocks {
		file, err := g.generateBlock(b, g.blockDir(dest, b), ext, cols)
		if err != nil {
			err = domain.GenerationError(b.Key(), err)
			errs = append(errs, err)
			g.logger.Error("falha ao gerar arquivo", zap.String("bloco", b.Key()), zap.Error(err))
		} else {
			files = append(files, file)
			g.logger.Info("arquivo gerado",
				zap.String("bloco", file.BlockKey),
				zap.String("arquivo", file.Path),
				zap.Int("linhas", len(file.Rows)))
		}
		if progress != nil {
			progress(i+1, total, file, err)
		}
	}

	return files, errors.Join(errs...)
}

func (g *Generator) blockDir(dest Destination, b domain.Block) string {
	switch {
	case dest.PerDocument:
		return filepath.Join(dest.Dir, SanitizeFileName(b.Descriptor.Document))
	case dest.Subfolder != "":
		return filepath.Join(dest.Dir, SanitizeFileName(dest.Subfolder))
	}
	return dest.Dir
}

func (g *Generator) generateBlock(b domain.Block, dir, ext string, cols []column) (domain.OutputFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.OutputFile{}, fmt.Errorf("erro ao criar pasta '%s': %w", dir, err)
	}
	rows := BuildRows(b)

	f, path, err := g.createExclusive(dir, SanitizeFileName(b.Key()), ext)
	if err != nil {
		return domain.OutputFile{}, err
	}

	if werr := g.write(f, ext, cols, rows); werr != nil {
		f.Close()
		os.Remove(path)
		return domain.OutputFile{}, fmt.Errorf("erro ao gravar '%s': %w", path, werr)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return domain.OutputFile{}, fmt.Errorf("erro ao fechar '%s': %w", path, err)
	}
	return domain.OutputFile{Path: path, BlockKey: b.Key(), Rows: rows}, nil
}

// createExclusive escolhe o próximo nome livre e cria o arquivo com O_EXCL, de modo
// que um arquivo existente nunca é sobrescrito.
func (g *Generator) createExclusive(dir, stem, ext string) (*os.File, string, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		name, err := NextAvailableName(dir, stem, ext, g.list)
		if err != nil {
			return nil, "", err
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("não foi possível reservar um nome livre para '%s%s'", stem, ext)
}

func (g *Generator) write(w io.Writer, ext string, cols []column, rows []domain.OutputRow) error {
	if ext == ".csv" {
		return writeCSV(w, cols, rows)
	}
	return writeExcel(w, g.sheetName, g.excelDateFormat, cols, rows)
}
