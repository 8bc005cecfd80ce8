// Package resolver turns a feature repository graph into a flat, ordered
// list of provisioning directives.
//
// Resolution is two phases. Collection walks the root repository and every
// transitively referenced repository depth-first, accumulating feature
// definitions in traversal order; references already seen are warned about
// and skipped, which both deduplicates and breaks cycles. Translation then
// filters the collected features to the requested names and converts each
// selected feature's content, in descriptor order, into bundle install,
// configuration, and file deployment directives.
//
// Only a failure to load the explicitly requested root repository is fatal.
// Every other failure degrades to skipping the smallest affected unit —
// a nested repository subtree, one feature, one content entry — with a
// warning carrying enough context to diagnose it.
//
// A Resolver is safe for concurrent use; each Resolve call owns its walk
// state, requested-name set, and result.
package resolver
