package api

import (
	"sheetsdb/pkg/table"
)

type mockDatabase struct {
	TablesFunc func() []string
	TableFunc  func(name string) (*table.Table, error)
}

func (m *mockDatabase) Tables() []string {
	return m.TablesFunc()
}
func (m *mockDatabase) Table(name string) (*table.Table, error) {
	return m.TableFunc(name)
}
