// Package board holds the issue lifecycle rules of the issue board: the
// duplicate guard, the status workflow, the filter view, the issue form
// controller and the session gate that ties them to an authenticated user.
//
// Nothing in this package is safe for concurrent use. A Session and
// everything it owns is driven from a single goroutine.
package board
