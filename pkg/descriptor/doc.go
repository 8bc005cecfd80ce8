// Package descriptor contains the schema bindings for feature repository
// descriptors and the parser that turns raw XML into structured records.
//
// A repository descriptor is an XML document whose root element enumerates,
// in document order, references to other repositories and feature
// definitions. A feature in turn carries an ordered content list of bundle,
// config, configfile, dependency, and informational entries. Document order
// is significant everywhere: the resolver's output order is defined in terms
// of it, so the bindings preserve it exactly.
//
// Both repository entries and feature content are modeled as tagged variants
// (a Kind discriminator plus one populated payload field) rather than
// heterogeneous interface lists, so consumers can switch exhaustively
// instead of type-testing.
//
// The schema is a fixed external contract published by the descriptor
// vendor; attribute and element names here must not be changed.
package descriptor
