package integrity

import (
	"context"
	log "log/slog"

	"github.com/clinterm/termcore/vc"
)

// PreCommitCompletion re-checks the integrity of a flagged branch just before
// a content commit completes, and clears the flag when the commit resolves
// the last issue. The owning code system decides the check: a commit on the
// code system branch itself re-runs the incremental check scoped to the
// commit, a commit on a task branch below it runs the fix verification
// against the code system branch. Branches without the flag are not touched,
// keeping routine commits cheap, and a failure of the check itself is logged
// without vetoing the commit.
func (s *Service) PreCommitCompletion(ctx context.Context, c *vc.Commit) error {
	b := c.Branch()
	if b.Path == vc.RootPath || c.Type() != vc.ContentCommit {
		return nil
	}
	if b.InternalFlag(vc.IntegrityIssueKey) != "true" {
		return nil
	}

	report, err := s.commitReport(ctx, c)
	if err != nil {
		log.Error("integrity re-check failed, leaving the branch flag in place", "path", b.Path, "error", err)
		return nil
	}
	if report.IsEmpty() {
		if err := s.clearFlagIfResolved(ctx, b, report); err != nil {
			log.Error("failed clearing integrity flag", "path", b.Path, "error", err)
		}
		return nil
	}
	log.Warn("integrity issues remain on branch", "path", b.Path,
		"relationshipSourceIssues", len(report.RelationshipsWithMissingOrInactiveSource),
		"relationshipTypeIssues", len(report.RelationshipsWithMissingOrInactiveType),
		"relationshipDestinationIssues", len(report.RelationshipsWithMissingOrInactiveDestination),
		"axiomIssues", len(report.AxiomsWithMissingOrInactiveReferencedConcept))
	return nil
}

// commitReport picks the check matching the commit's place in the branch
// tree. Without an owning code system the incremental check applies.
func (s *Service) commitReport(ctx context.Context, c *vc.Commit) (*Report, error) {
	b := c.Branch()
	cs, err := s.codeSystems.FindClosestUsingAnyBranch(ctx, b.Path)
	if err != nil {
		return nil, err
	}
	if cs != nil && cs.BranchPath != b.Path {
		return s.checkFixes(ctx, b, vc.CriteriaIncludingOpenCommit(c), cs.BranchPath)
	}
	changed := vc.Criteria{
		Path:             b.Path,
		MaxStart:         b.Head,
		Timepoint:        c.Timepoint(),
		UnpromotedOnly:   true,
		IncludeDeletions: true,
	}
	return s.checkChanged(ctx, b, changed, vc.CriteriaIncludingOpenCommit(c))
}
