// Package types defines the entity types, the polymorphic link target, module
// capability interfaces, and the standard errors of the loom social graph.
// The engine in internal/graph mutates these types; storage backends persist
// them through ChangeSet.
package types
