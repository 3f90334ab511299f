package vc

// Criteria selects which document rows are visible for a read. Zero values
// mean "not constrained"; the builder functions below produce the selectors
// the services need, resolved against a branch or an open commit.
type Criteria struct {
	// Path is the branch the content is viewed from.
	Path string
	// MaxStart is the inclusive upper bound on row start times at the Path
	// level. Ancestor levels are bounded by each child's base time.
	MaxStart int64
	// Timepoint, when non-zero, additionally exposes rows stamped with this
	// open-commit timepoint.
	Timepoint int64
	// UnpromotedOnly restricts results to rows written to Path itself.
	UnpromotedOnly bool
	// IncludeDeletions additionally returns the final version of components
	// deleted on Path.
	IncludeDeletions bool
	// OpenCommitOnly restricts results to rows written or replaced by the
	// open commit identified by Timepoint.
	OpenCommitOnly bool
}

// CriteriaOn selects the content visible on b at its head.
func CriteriaOn(b *Branch) Criteria {
	return Criteria{Path: b.Path, MaxStart: b.Head}
}

// CriteriaIncludingOpenCommit selects the head content plus the rows already
// written by the open commit c.
func CriteriaIncludingOpenCommit(c *Commit) Criteria {
	return Criteria{Path: c.Branch().Path, MaxStart: c.Branch().Head, Timepoint: c.Timepoint()}
}

// CriteriaBeforeOpenCommit selects the head content, excluding anything the
// open commit c has written so far.
func CriteriaBeforeOpenCommit(c *Commit) Criteria {
	return Criteria{Path: c.Branch().Path, MaxStart: c.Branch().Head}
}

// CriteriaUnpromotedChanges selects only the rows written to b itself.
func CriteriaUnpromotedChanges(b *Branch) Criteria {
	return Criteria{Path: b.Path, MaxStart: b.Head, UnpromotedOnly: true}
}

// CriteriaUnpromotedChangesAndDeletions selects the rows written to b itself
// plus the final versions of components deleted on b.
func CriteriaUnpromotedChangesAndDeletions(b *Branch) Criteria {
	return Criteria{Path: b.Path, MaxStart: b.Head, UnpromotedOnly: true, IncludeDeletions: true}
}

// CriteriaChangesWithinOpenCommitOnly selects only the rows written or
// replaced by the open commit c.
func CriteriaChangesWithinOpenCommitOnly(c *Commit) Criteria {
	return Criteria{Path: c.Branch().Path, Timepoint: c.Timepoint(), OpenCommitOnly: true}
}
