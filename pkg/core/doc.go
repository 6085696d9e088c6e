// Package core defines the shared domain types of the skylens client:
// opaque remote handles, schema snapshots, the closed view-kind set, and
// the combine operator set. Every other package imports core; core imports
// nothing of skylens.
package core
