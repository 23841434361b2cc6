package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxColumn bounds ranges whose right edge is open. It is column ZZZ, the
// widest address A1 notation can spell with three letters.
const MaxColumn = 18278

// Range is a rectangle of cells. Rows and columns are 1-based and inclusive;
// a zero bound is open (first/last row or column of the sheet).
type Range struct {
	FromRow, FromCol int
	ToRow, ToCol     int
}

// Cell is the single-cell range at row, col.
func Cell(row, col int) Range {
	return Range{FromRow: row, FromCol: col, ToRow: row, ToCol: col}
}

// Rows spans whole rows from..to starting at column col. to may be 0.
func Rows(from, to, col int) Range {
	return Range{FromRow: from, FromCol: col, ToRow: to}
}

// ColumnRange spans column col from row onwards.
func ColumnRange(col, fromRow int) Range {
	return Range{FromRow: fromRow, FromCol: col, ToCol: col}
}

// Origin returns the top-left cell, treating open bounds as 1.
func (r Range) Origin() (row, col int) {
	return max(r.FromRow, 1), max(r.FromCol, 1)
}

// Contains reports whether the cell lies inside the range.
func (r Range) Contains(row, col int) bool {
	fr, fc := r.Origin()
	if row < fr || col < fc {
		return false
	}
	if r.ToRow > 0 && row > r.ToRow {
		return false
	}
	if r.ToCol > 0 && col > r.ToCol {
		return false
	}
	return true
}

// A1 renders the range in A1 notation, prefixed by the quoted sheet name
// when sheet is not empty.
func (r Range) A1(sheet string) string {
	var b strings.Builder
	if sheet != "" {
		b.WriteString(QuoteSheet(sheet))
		b.WriteByte('!')
	}
	fr, fc := r.Origin()
	b.WriteString(CellA1(fr, fc))
	b.WriteByte(':')
	switch {
	case r.ToRow > 0 && r.ToCol > 0:
		b.WriteString(CellA1(r.ToRow, r.ToCol))
	case r.ToCol > 0:
		b.WriteString(ColumnName(r.ToCol))
	case r.ToRow > 0:
		b.WriteString(strconv.Itoa(r.ToRow))
	default:
		b.WriteString(ColumnName(MaxColumn))
	}
	return b.String()
}

func (r Range) String() string {
	return r.A1("")
}

// QuoteSheet quotes a sheet title for use in a range.
func QuoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// ColumnName converts a 1-based column number to its letters: 1 is A, 27 is AA.
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// ColumnNumber is the inverse of ColumnName.
func ColumnNumber(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}
	n := 0
	for _, c := range strings.ToUpper(name) {
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("invalid column name %q", name)
		}
		n = n*26 + int(c-'A'+1)
	}
	return n, nil
}

// CellA1 renders a single cell address such as B3.
func CellA1(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row)
}

// ParseCell parses an address such as B3, optionally prefixed by a sheet
// name, into its row and column.
func ParseCell(a1 string) (row, col int, err error) {
	if i := strings.LastIndexByte(a1, '!'); i >= 0 {
		a1 = a1[i+1:]
	}
	a1 = strings.ReplaceAll(a1, "$", "")
	split := strings.IndexFunc(a1, func(r rune) bool { return r >= '0' && r <= '9' })
	if split <= 0 {
		return 0, 0, fmt.Errorf("invalid cell address %q", a1)
	}
	col, err = ColumnNumber(a1[:split])
	if err != nil {
		return 0, 0, err
	}
	row, err = strconv.Atoi(a1[split:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid cell address %q", a1)
	}
	return row, col, nil
}
