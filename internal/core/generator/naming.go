package generator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// maxVersions limita o laço de versionamento de nomes.
const maxVersions = 10000

// ListFunc lista os nomes de arquivo de um diretório.
type ListFunc func(dir string) ([]string, error)

// ListDir é a ListFunc do sistema de arquivos; diretório inexistente conta como vazio.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// NextAvailableName devolve "{stem}{ext}" ou, se já existir, "{stem}-v2{ext}",
// "{stem}-v3{ext}"... A comparação ignora maiúsculas, como no Windows.
func NextAvailableName(dir, stem, ext string, list ListFunc) (string, error) {
	names, err := list(dir)
	if err != nil {
		return "", fmt.Errorf("erro ao listar '%s': %w", dir, err)
	}
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[strings.ToLower(n)] = true
	}

	candidate := stem + ext
	for v := 2; taken[strings.ToLower(candidate)]; v++ {
		if v > maxVersions {
			return "", fmt.Errorf("nenhum nome livre para '%s%s' em '%s'", stem, ext, dir)
		}
		candidate = fmt.Sprintf("%s-v%d%s", stem, v, ext)
	}
	return candidate, nil
}

var invalidFileChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFileName troca os caracteres proibidos em nomes de arquivo por "_".
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(invalidFileChars.Replace(name))
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return "_"
	}
	return name
}
