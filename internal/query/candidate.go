// Package query holds the types shared between the discovery engine, the
// router facade, and the accelerator handles. It has no dependencies of its
// own so it can sit underneath all three without creating an import cycle.
package query

// Candidate is a single query digest discovered on the Router's stats table,
// not yet routed to an Accelerator.
type Candidate struct {
	DigestText string
	Digest     string
	Schema     string
	User       string
}
