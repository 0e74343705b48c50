// cmd/brservice/main.go
package main

import (
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rikelmyso7/br-service-cli/internal/api/handlers"
	"github.com/rikelmyso7/br-service-cli/internal/api/responses"
	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/core/converter"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
	"github.com/rikelmyso7/br-service-cli/internal/logging"
)

var (
	params      handlers.Params
	getOptions  bool
	getDatas    bool
	extractOnly bool
	quiet       bool
	configPath  string
)

// errUsage marca erros de parâmetros já reportados ao stdout.
var errUsage = errors.New("uso inválido")

func main() {
	runID := uuid.NewString()
	exitCode := handlers.ExitOK

	rootCmd := &cobra.Command{
		Use:   "brservice --input <arquivo> [flags]",
		Short: "Converte a planilha Layout em um arquivo por bloco Documento-Plano",
		Long: `brservice lê a aba Layout de uma planilha (.xlsx, .xlsm, .xls), normaliza
valores e datas e gera um arquivo por bloco Documento-Plano Financeiro.
A resposta é sempre um JSON no stdout; logs vão para stderr e para a pasta de logs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = run(runID)
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&params.Input, "input", "i", "", "Planilha de entrada (.xlsx, .xlsm, .xls)")
	flags.StringVarP(&params.Output, "output", "o", "", "Pasta de destino dos arquivos gerados")
	flags.BoolVar(&getOptions, "get-options", false, "Lista documentos, planos e datas do arquivo")
	flags.BoolVar(&getDatas, "get-datas", false, "Lista só as datas por documento")
	flags.StringVar(&params.Documentos, "documentos", "", "Blocos a gerar, separados por vírgula (ex.: AZ-1.01.02.01,REG)")
	flags.StringVar(&params.Datas, "datas", "", "Datas de crédito, separadas por vírgula (DD/MM/AAAA)")
	flags.StringVar(&params.Planos, "planos", "", "Planos financeiros, separados por vírgula")
	flags.StringVar(&params.DataInicial, "data-inicial", "", "Data de crédito inicial (inclusiva)")
	flags.StringVar(&params.DataFinal, "data-final", "", "Data de crédito final (inclusiva)")
	flags.StringVar(&params.NomePasta, "nome-pasta", "", "Subpasta de destino (padrão: nome do arquivo de entrada)")
	flags.BoolVar(&params.PorDocumento, "por-documento", false, "Cria uma subpasta por documento")
	flags.BoolVar(&params.SemPasta, "sem-pasta", false, "Grava direto na pasta de destino")
	flags.StringVar(&params.Formato, "formato", "", "Formato de saída: xls, xlsx ou csv")
	flags.BoolVar(&extractOnly, "extract-only", false, "Devolve os registros normalizados sem gravar arquivos")
	flags.BoolVar(&params.Progress, "progress", false, "Emite eventos de progresso (NDJSON) no stdout")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Sem logs no console")
	flags.StringVar(&configPath, "config", "", "Arquivo de configuração JSON")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		usage(runID, err.Error())
		return errUsage
	})

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUsage) {
			usage(runID, err.Error())
		}
		os.Exit(handlers.ExitUsage)
	}
	os.Exit(exitCode)
}

func run(runID string) int {
	if msg := validateFlags(); msg != "" {
		return usage(runID, msg)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		out := responses.NewWriter(os.Stdout, runID, zap.NewNop())
		out.Error(&domain.Error{Code: domain.CodeValidation, Message: "Configuração inválida", Cause: err}, nil)
		return handlers.ExitError
	}
	if params.Formato != "" {
		params.Formato = config.NormalizeExtension(params.Formato)
	}

	logger, closeLog, err := logging.New(cfg, quiet)
	if err != nil {
		out := responses.NewWriter(os.Stdout, runID, zap.NewNop())
		out.Error(&domain.Error{Code: domain.CodeInternal, Message: "Falha ao iniciar o log", Cause: err}, nil)
		return handlers.ExitError
	}
	defer closeLog()
	logger = logger.With(zap.String("run_id", runID))

	logger.Info("execução iniciada",
		zap.String("input", params.Input),
		zap.String("output", params.Output),
		zap.Bool("get_options", getOptions),
		zap.Bool("get_datas", getDatas),
		zap.Bool("extract_only", extractOnly))

	service := converter.NewService(cfg, logger)
	handler := handlers.NewLayoutHandler(service, responses.NewWriter(os.Stdout, runID, logger), logger)

	switch {
	case getOptions:
		return handler.HandleOptions(params)
	case getDatas:
		return handler.HandleDatas(params)
	case extractOnly:
		return handler.HandleExtract(params)
	default:
		return handler.HandleGenerate(params)
	}
}

// validateFlags confere combinações de flags antes de qualquer leitura.
func validateFlags() string {
	if strings.TrimSpace(params.Input) == "" {
		return "Arquivo de entrada não informado (--input)"
	}
	modes := 0
	for _, on := range []bool{getOptions, getDatas, extractOnly} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return "Use apenas um entre --get-options, --get-datas e --extract-only"
	}
	if modes == 0 && strings.TrimSpace(params.Output) == "" {
		return "Pasta de saída não informada (--output)"
	}
	if params.Formato != "" && !config.SupportedExtension(config.NormalizeExtension(params.Formato)) {
		return "Formato de saída inválido '" + params.Formato + "'. Use xls, xlsx ou csv"
	}
	if params.NomePasta != "" && (params.PorDocumento || params.SemPasta) {
		return "--nome-pasta não pode ser usado com --por-documento ou --sem-pasta"
	}
	return ""
}

func usage(runID, msg string) int {
	out := responses.NewWriter(os.Stdout, runID, zap.NewNop())
	out.Error(domain.UsageError(msg), nil)
	return handlers.ExitUsage
}
