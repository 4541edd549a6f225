package models

// FileKind represents the inferred semantic type of an uploaded table
type FileKind string

const (
	// File kinds
	FileKindSales     FileKind = "sales"
	FileKindInventory FileKind = "inventory"
	FileKindSupplier  FileKind = "supplier"
	FileKindUnknown   FileKind = "unknown"
)

// ColumnRole represents the semantic role a column plays within a table
type ColumnRole string

const (
	// Column roles
	RoleDate         ColumnRole = "date"
	RoleItemName     ColumnRole = "item_name"
	RoleQuantity     ColumnRole = "quantity"
	RolePrice        ColumnRole = "price"
	RoleTotal        ColumnRole = "total"
	RoleSupplierName ColumnRole = "supplier_name"
	RoleUnitCost     ColumnRole = "unit_cost"
	RoleExpiryDate   ColumnRole = "expiry_date"
	RoleUnit         ColumnRole = "unit"
)

// RawTable is an uploaded spreadsheet reduced to an ordered grid of header
// strings and cell strings, before any semantic interpretation.
type RawTable struct {
	SourceFile string
	SheetName  string
	Header     []string
	Rows       [][]string
}

// Cell returns the trimmed cell at (row, col), or "" when the row is ragged.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}
