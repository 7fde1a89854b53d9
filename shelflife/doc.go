// Package shelflife resolves distribution-center and store acceptance
// deadlines for packaged food from its expiry date and total shelf life.
//
// A RuleBook holds one tiered RuleSet per origin. Each tier maps a range of
// total shelf life to a DC window and a store window, counted either back
// from the expiry date (ModeAbsolute) or forward from the manufacture date
// (ModeRelative). The Engine is pure: given the same rule book, inputs and
// day it always returns the same CalculationResult.
package shelflife
