// Package unphp decodes the legacy PHP serialization format into
// JSON-compatible values, tolerating the corruption patterns common in
// scraped logs and database dumps: broken string length prefixes (repaired
// under an explicit lenient mode), entity-mangled punctuation, and JSON
// fragments buried in surrounding noise.
//
// The decoder covers the null/boolean/integer/float/string/array subset of
// the format. Object and reference tags are out of scope, as is encoding
// back to the wire format.
package unphp
