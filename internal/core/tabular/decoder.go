// Package tabular transforma bytes de arquivo em uma matriz de células sem
// tipo e infere os papéis de coluna das duas famílias de planilha (interna e
// externa) sem esquema fixo.
package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"conciliation-service/internal/domain"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnreadableWorkbook indica payload binário corrompido ou em formato não
// reconhecido. Fatal para o arquivo: nenhuma matriz parcial é devolvida.
var ErrUnreadableWorkbook = errors.New("planilha binária ilegível")

// Decode converte os bytes de um arquivo em linhas de células. A extensão do
// nome decide entre leitor binário (.xls/.xlsx) e texto delimitado.
func Decode(data []byte, fileName string) ([]domain.RawRow, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".xls" || ext == ".xlsx" {
		return decodeWorkbook(data)
	}
	return decodeDelimited(data), nil
}

// decodeWorkbook lê a primeira aba de um arquivo Excel. Tenta xlsx primeiro
// e cai para o leitor de .xls legado, como os bytes nem sempre condizem com
// a extensão.
func decodeWorkbook(data []byte) ([]domain.RawRow, error) {
	if f, err := excelize.OpenReader(bytes.NewReader(data)); err == nil {
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: arquivo sem abas", ErrUnreadableWorkbook)
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
		}
		return stringsToCells(rows), nil
	}

	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	if len(workbook.GetSheets()) == 0 {
		return nil, fmt.Errorf("%w: arquivo sem abas", ErrUnreadableWorkbook)
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}

	var out []domain.RawRow
	for _, row := range sheet.GetRows() {
		var cells domain.RawRow
		for _, col := range row.GetCols() {
			cells = append(cells, workbookCell(col.GetString()))
		}
		out = append(out, cells)
	}
	return out, nil
}

func stringsToCells(rows [][]string) []domain.RawRow {
	out := make([]domain.RawRow, len(rows))
	for i, row := range rows {
		cells := make(domain.RawRow, len(row))
		for j, s := range row {
			cells[j] = workbookCell(s)
		}
		out[i] = cells
	}
	return out
}

// workbookCell reconstrói a célula tipada: planilhas binárias carregam
// números de verdade, então texto puramente numérico volta a ser número.
func workbookCell(s string) domain.Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return domain.EmptyCell
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return domain.NumberCell(f, trimmed)
	}
	return domain.TextCell(trimmed)
}

// decodeDelimited divide texto delimitado em células. Linhas em branco são
// descartadas antes da divisão; campos entre aspas duplas preservam o
// separador embutido e perdem as aspas.
func decodeDelimited(data []byte) []domain.RawRow {
	text := decodeText(data)
	lines := splitLines(text)

	sep := detectSeparator(lines)

	var out []domain.RawRow
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, splitLine(line, sep))
	}
	return out
}

// decodeText trata bytes que não são UTF-8 válido como ISO-8859-1, encoding
// usual dos exports financeiros brasileiros.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// detectSeparator conta ocorrências de ';', ',' e tab nas 5 primeiras linhas
// não triviais. Empates favorecem ';', depois tab, depois ','.
func detectSeparator(lines []string) rune {
	var semicolons, commas, tabs int
	sampled := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if sampled == 5 {
			break
		}
		sampled++
		semicolons += strings.Count(line, ";")
		commas += strings.Count(line, ",")
		tabs += strings.Count(line, "\t")
	}

	if semicolons >= commas && semicolons >= tabs {
		return ';'
	}
	if tabs >= commas {
		return '\t'
	}
	return ','
}

func splitLine(line string, sep rune) domain.RawRow {
	var cells domain.RawRow
	var cur strings.Builder
	inQuote := false

	flush := func() {
		field := strings.TrimSpace(cur.String())
		field = strings.TrimPrefix(field, `"`)
		field = strings.TrimSuffix(field, `"`)
		cells = append(cells, domain.TextCell(strings.TrimSpace(field)))
		cur.Reset()
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == sep && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return cells
}
