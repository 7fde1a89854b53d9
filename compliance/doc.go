// Package compliance evaluates label-compliance checks and combines their
// findings with shelf-life deadlines into a single verdict.
//
// Checks are CEL expressions over the variable "label". A check flags a
// label when its expression is true:
//
//	label.hasPorkOrBeef && label.meatOrigin == ""
package compliance
