/*
Package normalize turns raw TSV cells into typed records.

A Normalizer walks the columns of a schema and coerces each cell present in
the row. Coercion never fails the row: when a cell cannot be converted, the
field's failure policy decides what is stored.

	integer    whole number, "12.0" at full precision, or a decimal within
	           ±2^53 truncated; anything else becomes 0 (the identifier
	           becomes absent)
	decimal    finite number, otherwise the raw text is kept
	boolean    true/false/1/0/yes/no, otherwise the raw text is kept
	timestamp  one of the accepted layouts, converted to UTC; otherwise absent
	string     trimmed text; blank cells are absent
	string[]   "[a, 'b']" or "a,b" split into elements

Columns missing from the input header are never invented: they stay absent.
Cells past the end of a short row are empty, not missing.

The Validator then decides whether a record may be stored. Records missing a
required field (id, created_at) are rejected with a RejectReason that the
loader counts and reports.
*/
package normalize
