// Package parser turns source files into language-tagged lists of code
// elements and import records.
//
// Two strategies share one output shape:
//
//   - Go files are parsed into a full syntax tree (go/ast) and walked,
//     giving exact line ranges, exact source-slice snippets, and
//     nesting-aware kind assignment (a function with a receiver is a
//     method, not a function).
//
//   - Python, JavaScript, TypeScript and Java use bounded regular
//     expression tables per construct. Line numbers are approximate and
//     there is no true scoping; snippets are the matched span plus a
//     small trailing window, clipped to the snippet budget. This
//     imprecision is a documented limitation, not a bug.
//
// Unknown extensions fall back to a generic function/class token scan
// rather than failing.
//
// A syntax error in one file never aborts a batch: Parse returns a
// ParsedFile with empty elements and a populated ParseErrors list, and
// the caller proceeds with the remaining files.
package parser
