// Package store provides a sharded in-memory key-value store. Keys are
// assigned to servers through a consistent hashing ring and a per-server
// key index is kept in sync as servers join and leave the cluster.
package store
