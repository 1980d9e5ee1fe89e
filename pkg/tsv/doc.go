// Package tsv reads tab-separated export files one row at a time.
//
// The first record is the header; column names are trimmed so that a stray
// leading space (" ts2") still matches the schema. Rows may be shorter than
// the header, in which case the trailing columns are simply missing. Quotes
// inside unquoted cells are kept literally.
package tsv
