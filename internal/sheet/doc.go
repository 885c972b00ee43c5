// Package sheet holds the in-memory table model shared by the processing
// steps and the workbook readers and writers that move tables in and out of
// .xls, .xlsx and .xlsm files.
//
// Cells are kept as the display strings the workbook shows. Numeric
// interpretation happens at the edges: ParseQuantity on read and the
// NumericColumns option of Writer on write.
package sheet
