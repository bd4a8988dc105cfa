// Package services defines shared utilities consumed by the job pass and the
// admission surface.
//
// Key responsibilities:
//   - Context helpers that stamp execution IDs, stage names, and correlation
//     identifiers for logging.
//   - The kind-tagged Error type plus the Wrap helper, so callers branch on
//     KindOf(err) instead of matching message text.
//
// Use these helpers when adding pass logic so failures fold into job state
// the same way everywhere.
package services
