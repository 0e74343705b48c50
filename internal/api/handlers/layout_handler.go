package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rikelmyso7/br-service-cli/internal/api/responses"
	"github.com/rikelmyso7/br-service-cli/internal/core/converter"
	"github.com/rikelmyso7/br-service-cli/internal/core/generator"
	"github.com/rikelmyso7/br-service-cli/internal/core/processor"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// Códigos de saída do processo.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Params são os parâmetros de uma execução, já lidos da linha de comando.
type Params struct {
	Input        string
	Output       string
	Documentos   string
	Datas        string
	Planos       string
	DataInicial  string
	DataFinal    string
	NomePasta    string
	PorDocumento bool
	SemPasta     bool
	Formato      string
	Progress     bool
}

// LayoutHandler lida com os comandos relacionados à planilha Layout.
type LayoutHandler struct {
	service converter.Service
	out     *responses.Writer
	logger  *zap.Logger
}

// NewLayoutHandler cria um novo handler.
func NewLayoutHandler(service converter.Service, out *responses.Writer, logger *zap.Logger) *LayoutHandler {
	return &LayoutHandler{service: service, out: out, logger: logger}
}

// splitList extrai e limpa os itens de uma lista separada por vírgulas.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func selectionFrom(p Params) processor.Selection {
	return processor.Selection{
		Documents: splitList(p.Documentos),
		Plans:     splitList(p.Planos),
		Dates:     splitList(p.Datas),
		From:      strings.TrimSpace(p.DataInicial),
		To:        strings.TrimSpace(p.DataFinal),
	}
}

// destinationFrom resolve a pasta de saída. Sem --nome-pasta nem --por-documento
// os arquivos vão para uma subpasta com o nome do arquivo de entrada.
func destinationFrom(p Params) generator.Destination {
	dest := generator.Destination{
		Dir:         p.Output,
		PerDocument: p.PorDocumento,
		Extension:   p.Formato,
	}
	switch {
	case strings.TrimSpace(p.NomePasta) != "":
		dest.Subfolder = strings.TrimSpace(p.NomePasta)
	case p.PorDocumento || p.SemPasta:
	default:
		base := filepath.Base(p.Input)
		dest.Subfolder = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return dest
}

// HandleOptions lista documentos, planos e datas.
func (h *LayoutHandler) HandleOptions(p Params) int {
	res, err := h.service.Options(p.Input)
	if err != nil {
		return h.fail(err, nil)
	}
	return h.done(ExitOK, h.out.Success(res, fmt.Sprintf("%d bloco(s) encontrado(s)", len(res.Options.Documentos)), res.Warnings))
}

// HandleDatas devolve só as datas por documento.
func (h *LayoutHandler) HandleDatas(p Params) int {
	res, err := h.service.Options(p.Input)
	if err != nil {
		return h.fail(err, nil)
	}
	data := map[string]map[string][]string{"datas_por_documento": res.Options.DatasPorDocumento}
	return h.done(ExitOK, h.out.Success(data, "Datas por documento", res.Warnings))
}

// HandleExtract devolve os registros normalizados sem gravar arquivos.
func (h *LayoutHandler) HandleExtract(p Params) int {
	res, err := h.service.Extract(p.Input, selectionFrom(p))
	if err != nil {
		return h.fail(err, nil)
	}
	if len(res.Blocks) == 0 {
		return h.done(ExitOK, h.out.Empty(res, "Nenhum dado encontrado para os filtros informados", res.Warnings))
	}
	return h.done(ExitOK, h.out.Success(res, fmt.Sprintf("%d bloco(s) extraído(s)", len(res.Blocks)), res.Warnings))
}

// HandleGenerate gera um arquivo por bloco selecionado.
func (h *LayoutHandler) HandleGenerate(p Params) int {
	if strings.TrimSpace(p.Output) == "" {
		return h.Usage("Pasta de saída não informada (--output)")
	}

	var eventErr error
	var progress converter.ProgressFunc
	if p.Progress {
		progress = func(e converter.Event) {
			if err := h.out.Event(e.Stage, e.Message, e.Progress, e.File); err != nil && eventErr == nil {
				eventErr = err
			}
		}
	}

	res, err := h.service.Generate(converter.GenerateRequest{
		InputPath:   p.Input,
		Selection:   selectionFrom(p),
		Destination: destinationFrom(p),
	}, progress)
	if err != nil {
		if p.Progress {
			h.out.Event("error", err.Error(), 100, "")
		}
		if res == nil {
			return h.fail(err, nil)
		}
		return h.fail(err, res)
	}
	if eventErr != nil {
		return h.done(ExitError, eventErr)
	}

	if res.Status == converter.StatusEmpty {
		return h.done(ExitOK, h.out.Empty(res, "Nenhum dado encontrado para os filtros informados", res.Warnings))
	}
	return h.done(ExitOK, h.out.Success(res, fmt.Sprintf("%d arquivo(s) gerado(s)", len(res.Files)), res.Warnings))
}

// Usage reporta erro de uso da linha de comando.
func (h *LayoutHandler) Usage(message string) int {
	return h.done(ExitUsage, h.out.Error(domain.UsageError(message), nil))
}

// fail registra e responde o erro. Seleções e arquivos de entrada inválidos são
// erros do usuário e vão como aviso; planilha fora do layout e falhas de gravação, como erro.
func (h *LayoutHandler) fail(err error, data interface{}) int {
	switch {
	case domain.IsStructural(err):
		h.logger.Error("planilha fora do layout esperado", zap.String("codigo", string(domain.CodeOf(err))), zap.Error(err))
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInputFile):
		h.logger.Warn("entrada rejeitada", zap.String("codigo", string(domain.CodeOf(err))), zap.Error(err))
	default:
		h.logger.Error("execução falhou", zap.String("codigo", string(domain.CodeOf(err))), zap.Error(err))
	}
	return h.done(ExitError, h.out.Error(err, data))
}

// done troca o código de saída por ExitError quando a resposta não chegou ao stdout.
func (h *LayoutHandler) done(exit int, writeErr error) int {
	if writeErr != nil {
		h.logger.Error("falha ao escrever resposta", zap.Error(writeErr))
		return ExitError
	}
	return exit
}
