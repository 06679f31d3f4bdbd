// Package output renders vault-cli results as a table, JSON or YAML.
//
// Tables are built by reflection: a slice of structs becomes one row per
// element, a single struct or a map becomes a FIELD/VALUE listing.
// Struct fields tagged `table:"wide"` only appear in wide mode and
// fields tagged `table:"-"` never do.
package output
