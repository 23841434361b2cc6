package grid

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
)

// Memory is an in-process Store. Cells are kept as text, the way the
// Sheets API renders them back.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]*memSheet
	order  []string
}

type memSheet struct {
	cells [][]string
}

// NewMemory creates a store holding the given empty sheets.
func NewMemory(sheets ...string) *Memory {
	m := &Memory{sheets: make(map[string]*memSheet)}
	for _, s := range sheets {
		m.sheets[s] = &memSheet{}
		m.order = append(m.order, s)
	}
	return m
}

func (m *Memory) sheet(name string) (*memSheet, error) {
	s, ok := m.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	return s, nil
}

func (m *Memory) Values(ctx context.Context, sheet string, r Range) ([][]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.sheet(sheet)
	if err != nil {
		return nil, err
	}
	fr, fc := r.Origin()
	lastRow := len(s.cells)
	if r.ToRow > 0 {
		lastRow = min(lastRow, r.ToRow)
	}
	var out [][]any
	for i := fr; i <= lastRow; i++ {
		src := s.cells[i-1]
		lastCol := len(src)
		if r.ToCol > 0 {
			lastCol = min(lastCol, r.ToCol)
		}
		var row []any
		for j := fc; j <= lastCol; j++ {
			row = append(row, src[j-1])
		}
		out = append(out, row)
	}
	return Trim(out), nil
}

func (m *Memory) Write(ctx context.Context, sheet string, r Range, values [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.sheet(sheet)
	if err != nil {
		return err
	}
	return s.write(r, values)
}

func (m *Memory) BatchWrite(ctx context.Context, sheet string, updates []Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.sheet(sheet)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := s.write(u.Range, u.Values); err != nil {
			return err
		}
	}
	return nil
}

func (s *memSheet) write(r Range, values [][]any) error {
	fr, fc := r.Origin()
	for i, row := range values {
		for j := range row {
			if !r.Contains(fr+i, fc+j) {
				return fmt.Errorf("values exceed range %s", r)
			}
		}
	}
	for i, row := range values {
		for j, v := range row {
			s.set(fr+i, fc+j, FormatCell(v))
		}
	}
	return nil
}

func (s *memSheet) set(row, col int, v string) {
	if v == "" && (row > len(s.cells) || col > len(s.cells[row-1])) {
		return
	}
	for len(s.cells) < row {
		s.cells = append(s.cells, nil)
	}
	for len(s.cells[row-1]) < col {
		s.cells[row-1] = append(s.cells[row-1], "")
	}
	s.cells[row-1][col-1] = v
}

func (m *Memory) Clear(ctx context.Context, sheet string, r Range) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.sheet(sheet)
	if err != nil {
		return err
	}
	for i, row := range s.cells {
		for j := range row {
			if r.Contains(i+1, j+1) {
				row[j] = ""
			}
		}
	}
	return nil
}

func (m *Memory) SheetExists(ctx context.Context, sheet string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sheets[sheet]
	return ok, nil
}

func (m *Memory) CreateSheet(ctx context.Context, sheet string, rows, cols int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; ok {
		return fmt.Errorf("%w: %s", ErrSheetExists, sheet)
	}
	m.sheets[sheet] = &memSheet{}
	m.order = append(m.order, sheet)
	return nil
}

func (m *Memory) DropSheet(ctx context.Context, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.sheet(sheet); err != nil {
		return err
	}
	delete(m.sheets, sheet)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == sheet })
	return nil
}

func (m *Memory) SheetNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order), nil
}

// FormatCell renders a value as the text a spreadsheet would display.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case bool:
		if c {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// Trim drops trailing empty cells from every row and then trailing empty
// rows, matching what the Sheets API returns for a range read.
func Trim(block [][]any) [][]any {
	for i, row := range block {
		n := len(row)
		for n > 0 && isEmpty(row[n-1]) {
			n--
		}
		block[i] = row[:n]
	}
	n := len(block)
	for n > 0 && len(block[n-1]) == 0 {
		n--
	}
	if n == 0 {
		return nil
	}
	return block[:n]
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

var _ Store = (*Memory)(nil)
