package vc

import "context"

// CommitType describes what a commit is doing to its branch.
type CommitType int

const (
	// ContentCommit writes new or changed content to the branch itself.
	ContentCommit CommitType = iota
	// RebaseCommit moves the branch base forward onto a newer parent state.
	RebaseCommit
	// PromotionCommit promotes branch content to the parent branch.
	PromotionCommit
)

func (t CommitType) String() string {
	switch t {
	case ContentCommit:
		return "CONTENT"
	case RebaseCommit:
		return "REBASE"
	case PromotionCommit:
		return "PROMOTION"
	}
	return "UNKNOWN"
}

// CommitBackend finalises or rolls back commits. Implemented by the stores.
type CommitBackend interface {
	CompleteCommit(ctx context.Context, c *Commit) error
	RollbackCommit(ctx context.Context, c *Commit) error
}

// CommitListener is invoked just before a successful commit is finalised.
// Returning an error vetoes the commit and triggers a rollback.
type CommitListener interface {
	PreCommitCompletion(ctx context.Context, c *Commit) error
}

// Commit is an open unit of work on a branch. All rows written through it are
// stamped with its timepoint; nothing becomes durable until Close is called on
// a commit that was marked successful.
type Commit struct {
	branch       *Branch
	timepoint    int64
	commitType   CommitType
	lockMetadata string
	backend      CommitBackend
	successful   bool
	closed       bool
}

// NewCommit is used by store implementations when opening a commit.
func NewCommit(b *Branch, timepoint int64, commitType CommitType, lockMetadata string, backend CommitBackend) *Commit {
	return &Commit{
		branch:       b,
		timepoint:    timepoint,
		commitType:   commitType,
		lockMetadata: lockMetadata,
		backend:      backend,
	}
}

// Branch returns the live branch object. Commit listeners may mutate its
// metadata; the mutation is persisted when the commit completes.
func (c *Commit) Branch() *Branch { return c.branch }

func (c *Commit) Timepoint() int64 { return c.timepoint }

func (c *Commit) Type() CommitType { return c.commitType }

func (c *Commit) LockMetadata() string { return c.lockMetadata }

// MarkSuccessful flags the commit for finalisation on Close.
func (c *Commit) MarkSuccessful() { c.successful = true }

func (c *Commit) Successful() bool { return c.successful }

// Close finalises the commit when it was marked successful, otherwise rolls
// back every row stamped with its timepoint. Safe to call more than once;
// later calls are no-ops.
func (c *Commit) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.successful {
		return c.backend.CompleteCommit(ctx, c)
	}
	return c.backend.RollbackCommit(ctx, c)
}
