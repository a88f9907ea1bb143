// Package webhook receives GitHub webhook deliveries
// and routes them to sync passes.
//
// Deliveries are verified against the shared secret,
// deduplicated by delivery ID and looked up in an
// explicit Dispatch table. Accepted events run in the
// background so the sender gets its answer before any
// git work starts.
package webhook
