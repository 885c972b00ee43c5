package config

import (
	"fmt"

	"xlsconv/internal/sheet"
)

// NestingConfig configures the nesting job workbook built in step 2.
// Column letters refer to the processed workbook.
type NestingConfig struct {
	MaterialColumn    string `yaml:"material_column" toml:"material_column"`
	PriorityColumn    string `yaml:"priority_column" toml:"priority_column"`
	VersionColumn     string `yaml:"version_column" toml:"version_column"`
	DesignationColumn string `yaml:"designation_column" toml:"designation_column"`
	QuantityColumn    string `yaml:"quantity_column" toml:"quantity_column"`

	// Thickness sheets written first, in this order. These also get the
	// "_<thickness>Zn" part name suffix.
	Thicknesses []string `yaml:"thicknesses" toml:"thicknesses"`

	// Machine per thickness sheet.
	Machines map[string]string `yaml:"machines" toml:"machines"`

	DrawingBase    string   `yaml:"drawing_base" toml:"drawing_base"`
	Material       string   `yaml:"material" toml:"material"`
	UnmatchedSheet string   `yaml:"unmatched_sheet" toml:"unmatched_sheet"`
	HeaderMarkers  []string `yaml:"header_markers" toml:"header_markers"`

	// Designation prefix rewrites, e.g. Cyrillic to Latin.
	Replacements map[string]string `yaml:"replacements" toml:"replacements"`
}

// DefaultNestingConfig returns the shop floor defaults.
func DefaultNestingConfig() NestingConfig {
	return NestingConfig{
		MaterialColumn:    "B",
		PriorityColumn:    "D",
		VersionColumn:     "E",
		DesignationColumn: "F",
		QuantityColumn:    "G",
		Thicknesses:       []string{"1mm", "1.5mm", "2mm", "3mm"},
		Machines: map[string]string{
			"1mm":   "A5-25",
			"1.5mm": "E5_TOPAZ",
			"2mm":   "A5-25",
			"3mm":   "A5-25",
		},
		DrawingBase:    `\\srvdata\FMS\ncexpress\E5_TOPAZ\PARTDIR`,
		Material:       "DC01",
		UnmatchedSheet: "Неопределенные",
		HeaderMarkers:  []string{"№", "Порядковый номер", "OrderID", "PartName", "Приоритет", "nan"},
		Replacements:   map[string]string{"ДСМК.": "DSMK."},
	}
}

// Validate checks the column letters and sheet names.
func (c NestingConfig) Validate() error {
	for name, col := range map[string]string{
		"material_column":    c.MaterialColumn,
		"priority_column":    c.PriorityColumn,
		"version_column":     c.VersionColumn,
		"designation_column": c.DesignationColumn,
		"quantity_column":    c.QuantityColumn,
	} {
		if _, err := sheet.ColumnIndex(col); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.UnmatchedSheet == "" {
		return fmt.Errorf("unmatched_sheet must not be empty")
	}
	if len([]rune(c.UnmatchedSheet)) > 31 {
		return fmt.Errorf("unmatched_sheet %q is longer than 31 characters", c.UnmatchedSheet)
	}
	return nil
}
