// Package expr compiles and evaluates the boolean expressions used by
// condition steps and filter transforms.
//
// The language has number, string, boolean and null literals, dotted
// identifiers (steps.classify.score, input.name, or a bare name resolved by
// the caller), comparison operators == != > >= < <=, logical && || and !, and
// parentheses. Ordering comparisons involving an absent or null operand are
// false.
package expr
