// Package formula rewrites and compiles rate-law formulas.
//
// Formulas are plain arithmetic text such as
//
//	(qSmax/(1+(A/Kia)))*(S/(S+Ks))
//
// that reference species, parameters and derived quantities by name. Two
// layers operate on them:
//
//   - [Substitute] replaces whole identifier tokens with replacement text in a
//     single left-to-right pass. qS never matches inside qSof or qSmax.
//   - [Compile] substitutes every identifier known to a [Context] with its
//     textual binding (a literal, a state accessor y[i] or a derived call
//     name(y)), parses the rewritten text once and resolves it into a tree of
//     closures evaluated against an [Env].
//
// Supported syntax: numbers, + - * /, unary + -, parentheses, y[i],
// derived(y) and the built-in functions exp, log, log10, sqrt, pow, abs, min
// and max. Identifiers that survive substitution do not fail compilation;
// they fail the first evaluation with [dynamo.ErrUnresolvedIdentifier].
package formula
