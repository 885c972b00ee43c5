package config

import (
	"fmt"

	"xlsconv/internal/sheet"
)

// ColumnsConfig names the columns step 1 works on, as letters of the
// source workbook.
type ColumnsConfig struct {
	// A row survives when at least one of these is filled.
	Required []string `yaml:"required" toml:"required"`
	// Duplicate key (part designation).
	Key string `yaml:"key" toml:"key"`
	// Quantity summed across duplicates.
	Sum string `yaml:"sum" toml:"sum"`
	// Columns kept, in output order.
	Keep []string `yaml:"keep" toml:"keep"`
	// Widths of the processed workbook, by output letter.
	Widths map[string]float64 `yaml:"widths" toml:"widths"`
}

// DefaultColumnsConfig returns the layout of the BOM export.
func DefaultColumnsConfig() ColumnsConfig {
	return ColumnsConfig{
		Required: []string{"D", "E"},
		Key:      "I",
		Sum:      "J",
		Keep:     []string{"A", "D", "E", "G", "H", "I", "J"},
		Widths: map[string]float64{
			"A": 4, "B": 64, "C": 22, "D": 11, "E": 10, "F": 26, "G": 6,
		},
	}
}

// Validate checks every configured letter.
func (c ColumnsConfig) Validate() error {
	if len(c.Required) == 0 {
		return fmt.Errorf("required columns not configured")
	}
	if _, err := sheet.ColumnIndexes(c.Required); err != nil {
		return err
	}
	if _, err := sheet.ColumnIndex(c.Key); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	if _, err := sheet.ColumnIndex(c.Sum); err != nil {
		return fmt.Errorf("sum: %w", err)
	}
	if len(c.Keep) == 0 {
		return fmt.Errorf("keep columns not configured")
	}
	if _, err := sheet.ColumnIndexes(c.Keep); err != nil {
		return err
	}
	return nil
}
