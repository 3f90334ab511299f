package vc

import "context"

// BranchService manages the branch tree and opens commits against it.
type BranchService interface {
	// Exists reports whether a branch exists at path.
	Exists(ctx context.Context, path string) (bool, error)
	// FindLatest returns the latest state of the branch at path.
	FindLatest(ctx context.Context, path string) (*Branch, error)
	// Create creates a branch at path. The parent branch must already exist
	// unless path is the root.
	Create(ctx context.Context, path string) (*Branch, error)
	// OpenCommit opens a commit on path, taking the branch write lock.
	// Returns a lock contention error when another commit is already open.
	OpenCommit(ctx context.Context, path string, commitType CommitType, lockMetadata string) (*Commit, error)
	// UpdateMetadata replaces the branch metadata outside of any commit.
	UpdateMetadata(ctx context.Context, path string, md Metadata) error
	// AddCommitListener registers l to run before each commit completes.
	AddCommitListener(l CommitListener)
}
