// Package txquery describes filters over stored transactions and compiles
// them to parameterized SQLite.
//
// A Query is a Predicate tree plus a limit. Predicate is a sealed interface:
// only Equals, After, AtLeast and And implement it. Field names come from a
// fixed set of transaction columns, so they are safe to place in SQL text;
// every value is bound as a parameter.
//
// Compiled queries always end in ORDER BY seq ASC, so results follow the
// logical clock regardless of the filter.
package txquery
