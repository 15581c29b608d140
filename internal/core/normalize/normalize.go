// Package normalize contém as funções puras de normalização de moeda, data e
// número de CT-e. Todas são totais: entrada inanalisável degrada para o
// sentinela (0.0, string vazia) em vez de falhar.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"conciliation-service/internal/domain"
)

// Offset entre o serial de planilha (base 1900, com o bug do ano bissexto) e
// o epoch Unix, em dias.
const serialEpochOffset = 25569

// Seriais abaixo disso não são datas plausíveis.
const minDateSerial = 1000

var monthMap = map[string]string{
	"jan": "01", "fev": "02", "mar": "03", "abr": "04", "mai": "05", "jun": "06",
	"jul": "07", "ago": "08", "set": "09", "out": "10", "nov": "11", "dez": "12",
	"janeiro": "01", "fevereiro": "02", "março": "03", "abril": "04", "maio": "05", "junho": "06",
	"julho": "07", "agosto": "08", "setembro": "09", "outubro": "10", "novembro": "11", "dezembro": "12",
}

var (
	currencyJunkRegex = regexp.MustCompile(`[^\d.,-]`)
	verboseDateRegex  = regexp.MustCompile(`^(\d{1,2})\s*de\s*([a-zç.]+?)\.?\s*de\s*(\d{4})`)
	isoDateRegex      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	nonDigitRegex     = regexp.MustCompile(`\D`)
	leadingZeroRegex  = regexp.MustCompile(`^0+`)
	digitRunRegex     = regexp.MustCompile(`\d+`)
	idSplitRegex      = regexp.MustCompile(`[-/]`)
)

// ParseCurrency converte uma célula em valor monetário. Formato brasileiro
// ("1.234,56") e anglo ("1234.56") são aceitos; o separador decimal é
// decidido pela posição mais à direita entre vírgula e ponto.
func ParseCurrency(c domain.Cell) float64 {
	switch c.Kind {
	case domain.CellNumber:
		return c.Number
	case domain.CellEmpty:
		return 0
	}
	return currencyFromString(c.Text)
}

func currencyFromString(val string) float64 {
	clean := currencyJunkRegex.ReplaceAllString(val, "")
	if clean == "" {
		return 0
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")
	if lastComma > lastDot {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseDate converte uma célula em data ISO (YYYY-MM-DD) ou vazio. Formas
// reconhecidas: serial de planilha (numérico ou texto numérico), forma
// portuguesa por extenso ("26 de nov. de 2025"), D/M/Y com barra e ISO.
func ParseDate(c domain.Cell) string {
	switch c.Kind {
	case domain.CellEmpty:
		return ""
	case domain.CellNumber:
		return serialToISO(c.Number)
	}
	return dateFromString(c.Text)
}

func serialToISO(serial float64) string {
	if serial < minDateSerial {
		return ""
	}
	sec := int64((serial - serialEpochOffset) * 86400)
	return time.Unix(sec, 0).UTC().Format("2006-01-02")
}

func dateFromString(input string) string {
	clean := strings.NewReplacer(`"`, "", "'", "").Replace(input)
	clean = strings.ToLower(strings.TrimSpace(clean))
	if clean == "" {
		return ""
	}

	// "26 de nov. de 2025", "26 de novembro de 2025"
	if m := verboseDateRegex.FindStringSubmatch(clean); m != nil {
		day := padTwo(m[1])
		month := monthMap[strings.ReplaceAll(m[2], ".", "")]
		if month != "" {
			return m[3] + "-" + month + "-" + day
		}
	}

	// serial de planilha gravado como texto
	if !strings.ContainsAny(clean, "/-") {
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			return serialToISO(f)
		}
	}

	if parts := strings.Split(clean, "/"); len(parts) == 3 {
		year := parts[2]
		if len(year) == 2 {
			year = "20" + year
		}
		if len(year) > 4 {
			year = year[:4]
		}
		iso := year + "-" + padTwo(parts[1]) + "-" + padTwo(parts[0])
		if _, err := time.Parse("2006-01-02", iso); err == nil {
			return iso
		}
		return ""
	}

	if isoDateRegex.MatchString(clean) {
		return clean
	}
	return ""
}

func padTwo(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeCte limpa um número de CT-e. Sufixos de revisão ("3057-1") e
// prefixos de etiqueta ("A-1042") são descartados; zeros à esquerda também.
// Devolve a forma de exibição e a forma normalizada (só dígitos).
func NormalizeCte(cte string) (raw string, normalized string) {
	raw = strings.TrimSpace(cte)
	if raw == "" {
		return "", ""
	}

	mainPart := idSplitRegex.Split(raw, 2)[0]
	normalized = nonDigitRegex.ReplaceAllString(mainPart, "")
	normalized = leadingZeroRegex.ReplaceAllString(normalized, "")

	// Se a parte principal não tinha dígitos, qualquer sequência de dígitos
	// do texto original serve.
	if normalized == "" {
		if run := digitRunRegex.FindString(raw); run != "" {
			normalized = leadingZeroRegex.ReplaceAllString(run, "")
		}
	}
	return raw, normalized
}
