// Package sync implements the reconciliation passes between the registry
// and the client store, one direction per run.
package sync

import "fmt"

// SyncResult accumulates the counters of one pass. It is observational
// only; decisions within a run never read it.
type SyncResult struct {
	Created int
	Updated int
	Deleted int
	Errors  int
}

// Ok reports whether the pass finished without entity errors.
func (r *SyncResult) Ok() bool { return r.Errors == 0 }

func (r *SyncResult) String() string {
	return fmt.Sprintf("created: %d, updated: %d, deleted: %d, errors: %d",
		r.Created, r.Updated, r.Deleted, r.Errors)
}
