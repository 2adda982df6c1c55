// Package export drives the per-file export of a source asset tree.
//
// An Orchestrator walks a Lister, applies the skip policy, classifies each
// remaining file and dispatches eligible ones to a Decoder in fixed-size
// batches. Within a batch decodes run concurrently up to the configured
// worker count; a batch completes before the next one starts.
//
// The skip policy is evaluated in this order:
//
//  1. Never-export extensions (auxiliary formats such as uexp and ubulk).
//  2. The eligibility predicate (include prefixes, configured extensions).
//  3. Classification against the active registry.
//  4. Permanent exclusions (assets known to crash their decoder).
//  5. The extension remap table; files without a rule are counted as unsupported.
//
// Every path that passes steps 1 and 2 is recorded in Report.Observed and is
// later used by the consistency sweep.
//
// Registry bookkeeping happens at classification time by default, so a file
// whose decode fails is still recorded and will not be retried by the next
// run unless its size changes. Setting Config.Transactional defers the write
// until the artifact was written successfully.
//
// Rules is the single remap table that maps source extensions to artifact
// extensions and artifact classes. The sweep and the reconciliation scanner
// use the same table.
package export
