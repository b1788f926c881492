// Package storage defines the response history store contract and
// utilities shared across store implementations, including sentinel
// errors and tenant context helpers.
//
// Stores (memory, postgres) archive completed responses together with
// the input items that produced them, so conversation chains can be
// reconstructed and replayed locally without refetching from the API.
// Deletion is soft: deleted responses disappear from reads and
// listings but remain reachable for chain reconstruction.
package storage
