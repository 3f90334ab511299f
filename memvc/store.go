// Package memvc is the in-memory implementation of the version control
// substrate and document store. It backs standalone deployments and tests;
// the cassandra package provides the durable equivalent.
package memvc

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// Store keeps branches and document rows in process memory. It implements
// vc.BranchService, vc.CommitBackend and docstore.Store.
type Store struct {
	mu       sync.Mutex
	branches map[string]*vc.Branch
	// rows holds every row version ever written, per document type.
	rows map[string][]docstore.Document
	// deleted: path -> type -> component ID -> deletion timepoint.
	deleted map[string]map[string]map[string]int64
	// replaced: path -> type -> internal row ID -> replacement timepoint.
	// Records ancestor rows shadowed by a newer version on a child branch.
	replaced map[string]map[string]map[string]int64
	// locks: path -> lock metadata of the open commit.
	locks         map[string]string
	lastTimepoint int64
	listeners     []vc.CommitListener

	codeSystems        []*domain.CodeSystem
	codeSystemVersions []*domain.CodeSystemVersion
}

// NewStore returns a store with the root branch already created.
func NewStore() *Store {
	s := &Store{
		branches: map[string]*vc.Branch{},
		rows:     map[string][]docstore.Document{},
		deleted:  map[string]map[string]map[string]int64{},
		replaced: map[string]map[string]map[string]int64{},
		locks:    map[string]string{},
	}
	now := s.nextTimepoint()
	s.branches[vc.RootPath] = &vc.Branch{
		Path:     vc.RootPath,
		Base:     now,
		Head:     now,
		Metadata: vc.NewMetadata(),
	}
	return s
}

// nextTimepoint returns a strictly increasing wall-clock timepoint in epoch
// milliseconds. Callers must hold mu, except during construction.
func (s *Store) nextTimepoint() int64 {
	now := time.Now().UnixMilli()
	if now <= s.lastTimepoint {
		now = s.lastTimepoint + 1
	}
	s.lastTimepoint = now
	return now
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.branches[path]
	return ok, nil
}

func (s *Store) FindLatest(ctx context.Context, path string) (*vc.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[path]
	if !ok {
		return nil, termcore.Errorf(termcore.Validation, "branch %s does not exist", path)
	}
	return b, nil
}

func (s *Store) Create(ctx context.Context, path string) (*vc.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[path]; ok {
		return nil, termcore.Errorf(termcore.Validation, "branch %s already exists", path)
	}
	var base int64
	if path != vc.RootPath {
		parent, ok := s.branches[vc.ParentPath(path)]
		if !ok {
			return nil, termcore.Errorf(termcore.Validation, "parent branch of %s does not exist", path)
		}
		base = parent.Head
	} else {
		base = s.nextTimepoint()
	}
	b := &vc.Branch{Path: path, Base: base, Head: base, Metadata: vc.NewMetadata()}
	s.branches[path] = b
	return b, nil
}

func (s *Store) OpenCommit(ctx context.Context, path string, commitType vc.CommitType, lockMetadata string) (*vc.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[path]
	if !ok {
		return nil, termcore.Errorf(termcore.Validation, "branch %s does not exist", path)
	}
	if holder, locked := s.locks[path]; locked {
		return nil, termcore.Errorf(termcore.LockContention, "branch %s is already locked, lock metadata: %s", path, holder)
	}
	tp := s.nextTimepoint()
	if tp <= b.Head {
		tp = b.Head + 1
		s.lastTimepoint = tp
	}
	s.locks[path] = lockMetadata
	return vc.NewCommit(b, tp, commitType, lockMetadata, s), nil
}

func (s *Store) UpdateMetadata(ctx context.Context, path string, md vc.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[path]
	if !ok {
		return termcore.Errorf(termcore.Validation, "branch %s does not exist", path)
	}
	b.Metadata = md
	return nil
}

func (s *Store) AddCommitListener(l vc.CommitListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Rebase moves the branch base onto the parent's current head. Content is
// resolved through visibility; no rows are copied.
func (s *Store) Rebase(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[path]
	if !ok {
		return termcore.Errorf(termcore.Validation, "branch %s does not exist", path)
	}
	parent, ok := s.branches[vc.ParentPath(path)]
	if !ok {
		return termcore.Errorf(termcore.RuntimeState, "branch %s has no parent to rebase onto", path)
	}
	b.Base = parent.Head
	return nil
}

// CompleteCommit runs the commit listeners and, when none veto, advances the
// branch head so the commit's rows become visible. A listener error triggers
// a full rollback.
func (s *Store) CompleteCommit(ctx context.Context, c *vc.Commit) error {
	s.mu.Lock()
	listeners := append([]vc.CommitListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		if err := l.PreCommitCompletion(ctx, c); err != nil {
			log.Error("commit listener veto, rolling back", "path", c.Branch().Path, "timepoint", c.Timepoint(), "error", err)
			if rerr := s.RollbackCommit(ctx, c); rerr != nil {
				log.Error("rollback failed", "path", c.Branch().Path, "error", rerr)
			}
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.Branch().Head = c.Timepoint()
	delete(s.locks, c.Branch().Path)
	return nil
}

// RollbackCommit removes every row stamped with the commit's timepoint and
// restores the rows it superseded.
func (s *Store) RollbackCommit(ctx context.Context, c *vc.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := c.Branch().Path
	tp := c.Timepoint()
	for typeName, rows := range s.rows {
		kept := rows[:0]
		for _, r := range rows {
			m := r.Meta()
			if m.Path == path && m.Start == tp {
				continue
			}
			if m.End == tp {
				m.End = 0
			}
			kept = append(kept, r)
		}
		s.rows[typeName] = kept
	}
	for _, byID := range s.deleted[path] {
		for id, t := range byID {
			if t == tp {
				delete(byID, id)
			}
		}
	}
	for _, byInternal := range s.replaced[path] {
		for id, t := range byInternal {
			if t == tp {
				delete(byInternal, id)
			}
		}
	}
	delete(s.locks, path)
	return nil
}
