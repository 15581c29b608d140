package domain

import "strconv"

// CellKind discrimina o conteúdo de uma célula bruta.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell é uma célula de planilha sem tipagem implícita: vazia, texto ou
// número. Planilhas binárias produzem células numéricas; texto delimitado
// produz apenas texto e vazio.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// EmptyCell é a célula vazia.
var EmptyCell = Cell{Kind: CellEmpty}

// TextCell cria uma célula de texto; texto em branco vira célula vazia.
func TextCell(s string) Cell {
	if s == "" {
		return EmptyCell
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell cria uma célula numérica preservando a forma original do texto.
func NumberCell(f float64, raw string) Cell {
	return Cell{Kind: CellNumber, Number: f, Text: raw}
}

// IsEmpty informa se a célula não tem conteúdo.
func (c Cell) IsEmpty() bool { return c.Kind == CellEmpty }

// String devolve a forma de exibição da célula.
func (c Cell) String() string {
	switch c.Kind {
	case CellEmpty:
		return ""
	case CellNumber:
		if c.Text != "" {
			return c.Text
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return c.Text
	}
}

// RawRow é uma linha de células brutas, de comprimento variável.
type RawRow = []Cell
