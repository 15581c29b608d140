package tabular

import (
	"strings"
	"unicode"

	"conciliation-service/internal/core/normalize"
	"conciliation-service/internal/domain"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Papel não atribuído a nenhuma coluna.
const Unassigned = -1

// InternalRoles mapeia os papéis semânticos da família interna (planilhas
// operacionais) para índices de coluna. Imutável depois da inferência.
type InternalRoles struct {
	Cte        int
	Transporte int
	Date       int
	Val        int
	Type       int
}

// ExternalRoles mapeia os papéis da família externa (exports financeiros).
type ExternalRoles struct {
	Val  int
	Ref  int
	Date int
	Doc  int
}

// foldHeader baixa a caixa e descarta acentos para a comparação de palavras-
// chave de cabeçalho.
func foldHeader(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

func headerStrings(row domain.RawRow) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = foldHeader(c.String())
	}
	return out
}

func findIndex(headers []string, match func(string) bool) int {
	for i, h := range headers {
		if match(h) {
			return i
		}
	}
	return Unassigned
}

// InferInternalRoles localiza a linha de cabeçalho da família interna e
// atribui papéis por palavra-chave. Sem cabeçalho reconhecível, planilhas
// com 4+ colunas caem no layout posicional fixo (cte, transporte, data,
// valor). Devolve o índice efetivo do cabeçalho; os dados começam na linha
// seguinte.
func InferInternalRoles(rows []domain.RawRow) (int, InternalRoles) {
	headerIdx := Unassigned
	for i, row := range rows {
		for _, c := range row {
			if c.Kind != domain.CellText {
				continue
			}
			h := foldHeader(c.Text)
			if strings.Contains(h, "numero") || strings.Contains(h, "ct-e") ||
				strings.Contains(h, "cte") || strings.Contains(h, "transporte") {
				headerIdx = i
				break
			}
		}
		if headerIdx != Unassigned {
			break
		}
	}

	effective := headerIdx
	if effective == Unassigned {
		effective = 0
	}
	if effective >= len(rows) {
		return effective, InternalRoles{Cte: Unassigned, Transporte: Unassigned, Date: Unassigned, Val: Unassigned, Type: Unassigned}
	}
	headers := headerStrings(rows[effective])

	roles := InternalRoles{
		Cte: findIndex(headers, func(h string) bool {
			return strings.Contains(h, "numero") || strings.Contains(h, "ct-e") || strings.Contains(h, "cte")
		}),
		Val: findIndex(headers, func(h string) bool {
			return strings.Contains(h, "valor") || strings.Contains(h, "r$")
		}),
		Date: findIndex(headers, func(h string) bool {
			return strings.Contains(h, "emiss") || strings.Contains(h, "dt") || strings.Contains(h, "data")
		}),
		Type: findIndex(headers, func(h string) bool {
			return strings.Contains(h, "tipo") || strings.Contains(h, "categ")
		}),
		Transporte: findIndex(headers, func(h string) bool {
			return strings.Contains(h, "transporte")
		}),
	}

	if roles.Cte == Unassigned && roles.Val == Unassigned && len(rows[effective]) >= 4 {
		roles.Cte = 0
		roles.Transporte = 1
		roles.Date = 2
		roles.Val = 3
	}

	return effective, roles
}

// InferExternalRoles atribui papéis à família externa. Quando o cabeçalho
// não resolve os papéis obrigatórios (valor, data e referência ou documento),
// amostra até 5 linhas de dados e pontua cada coluna pela forma do conteúdo:
// data, moeda ou referência alfanumérica curta. Empates resolvem para o menor
// índice de coluna.
func InferExternalRoles(rows []domain.RawRow) (int, ExternalRoles) {
	roles := ExternalRoles{Val: Unassigned, Ref: Unassigned, Date: Unassigned, Doc: Unassigned}

	headerIdx := Unassigned
	for i, row := range rows {
		for _, c := range row {
			h := foldHeader(c.String())
			if strings.Contains(h, "documento") || strings.Contains(h, "valor") ||
				strings.Contains(h, "empresa") || strings.Contains(h, "refer") {
				headerIdx = i
				break
			}
		}
		if headerIdx != Unassigned {
			break
		}
	}

	if headerIdx != Unassigned {
		headers := headerStrings(rows[headerIdx])
		roles.Val = findIndex(headers, func(h string) bool { return strings.Contains(h, "valor") })
		roles.Ref = findIndex(headers, func(h string) bool {
			return strings.Contains(h, "refer") || (strings.Contains(h, "ref") && !strings.Contains(h, "data"))
		})
		roles.Date = findIndex(headers, func(h string) bool {
			return strings.Contains(h, "data") && (strings.Contains(h, "doc") || strings.Contains(h, "emis"))
		})
		roles.Doc = findIndex(headers, func(h string) bool {
			return strings.Contains(h, "n") && strings.Contains(h, "doc")
		})
	}

	needsScoring := headerIdx == Unassigned || roles.Val == Unassigned || roles.Date == Unassigned ||
		(roles.Ref == Unassigned && roles.Doc == Unassigned)
	if needsScoring && len(rows) > 0 {
		scoreColumns(rows, headerIdx, &roles)
	}

	return headerIdx, roles
}

type columnScore struct {
	date     int
	currency int
	ref      int
}

func scoreColumns(rows []domain.RawRow, headerIdx int, roles *ExternalRoles) {
	start := 0
	if headerIdx != Unassigned {
		start = headerIdx + 1
	}
	end := start + 5
	if end > len(rows) {
		end = len(rows)
	}

	scores := make([]columnScore, len(rows[0]))
	for _, row := range rows[start:end] {
		for idx, cell := range row {
			if idx >= len(scores) {
				break
			}
			s := cell.String()
			isDate := normalize.ParseDate(domain.TextCell(s)) != ""
			if isDate {
				scores[idx].date++
			}
			if !isDate && strings.ContainsAny(s, "0123456789") && strings.ContainsAny(s, ",.") {
				scores[idx].currency++
			}
			if !isDate && strings.ContainsAny(s, "0123456789") && len(s) < 20 &&
				!strings.Contains(s, "R$") && !strings.Contains(s, "$") {
				scores[idx].ref++
			}
		}
	}

	if roles.Date == Unassigned {
		best := 0
		for i, s := range scores {
			if s.date > best {
				best = s.date
				roles.Date = i
			}
		}
	}
	if roles.Val == Unassigned {
		best := 0
		for i, s := range scores {
			if s.currency > best {
				best = s.currency
				roles.Val = i
			}
		}
	}
	if roles.Ref == Unassigned && roles.Doc == Unassigned {
		best := 0
		for i, s := range scores {
			if i != roles.Val && i != roles.Date && s.ref > best {
				best = s.ref
				roles.Ref = i
			}
		}
	}
}
