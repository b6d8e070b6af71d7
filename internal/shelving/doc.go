// Package shelving holds the shelf placement core: the capacity policy, the
// title ordering, the shelf set initializer and the book distributor.
//
// Nothing here talks to a database directly. The initializer and the
// distributor receive the small slice of the record store they mutate, so the
// service layer decides the transaction boundaries.
package shelving
