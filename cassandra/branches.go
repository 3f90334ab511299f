package cassandra

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"time"

	"github.com/gocql/gocql"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/vc"
)

var branchCacheDuration time.Duration = time.Duration(12 * time.Hour)

// SetBranchCacheDuration allows the branch cache duration to get set globally.
func SetBranchCacheDuration(duration time.Duration) {
	if duration < time.Minute {
		duration = time.Duration(1 * time.Hour)
	}
	branchCacheDuration = duration
}

func branchCacheKey(path string) string {
	return "branch:" + path
}

// findBranch reads a branch, trying the cache first. Cache failures are
// tolerated; the table is the source of truth.
func (s *Store) findBranch(ctx context.Context, path string) (*vc.Branch, bool, error) {
	if s.cache != nil {
		var b vc.Branch
		found, err := s.cache.GetStruct(ctx, branchCacheKey(path), &b)
		if err != nil {
			log.Error(fmt.Sprintf("Branch Get (redis getstruct) failed, details: %v", err))
		} else if found {
			if b.Metadata != nil {
				b.Metadata.Normalize()
			}
			return &b, true, nil
		}
	}

	var base, head int64
	var metadata string
	err := s.query(ctx, s.conn.Config.ConsistencyBook.BranchGet,
		"SELECT base, head, metadata FROM %s.branch WHERE path = ?;", path).Scan(&base, &head, &metadata)
	if err == gocql.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, termcore.Errorf(termcore.TransientStore, "failed loading branch %s, details: %w", path, err)
	}
	b := &vc.Branch{Path: path, Base: base, Head: head, Metadata: vc.NewMetadata()}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &b.Metadata); err != nil {
			return nil, false, termcore.Errorf(termcore.Conversion, "failed decoding metadata of branch %s, details: %w", path, err)
		}
		b.Metadata.Normalize()
	}
	s.cacheBranch(ctx, b)
	return b, true, nil
}

func (s *Store) cacheBranch(ctx context.Context, b *vc.Branch) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStruct(ctx, branchCacheKey(b.Path), b, branchCacheDuration); err != nil {
		log.Error(fmt.Sprintf("Branch Set (redis setstruct) failed, details: %v", err))
	}
}

func (s *Store) evictBranch(ctx context.Context, path string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Delete(ctx, branchCacheKey(path)); err != nil {
		log.Error(fmt.Sprintf("Branch Delete (redis delete) failed, details: %v", err))
	}
}

func (s *Store) saveBranch(ctx context.Context, b *vc.Branch, locked bool, lockMeta string) error {
	metadata, err := json.Marshal(b.Metadata)
	if err != nil {
		return termcore.Errorf(termcore.Conversion, "failed encoding metadata of branch %s, details: %w", b.Path, err)
	}
	if err := s.query(ctx, s.conn.Config.ConsistencyBook.BranchWrite,
		"INSERT INTO %s.branch (path, base, head, locked, lock_meta, metadata) VALUES(?,?,?,?,?,?);",
		b.Path, b.Base, b.Head, locked, lockMeta, string(metadata)).Exec(); err != nil {
		return err
	}
	s.cacheBranch(ctx, b)
	return nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, found, err := s.findBranch(ctx, path)
	return found, err
}

func (s *Store) FindLatest(ctx context.Context, path string) (*vc.Branch, error) {
	b, found, err := s.findBranch(ctx, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, termcore.Errorf(termcore.Validation, "branch %s does not exist", path)
	}
	return b, nil
}

func (s *Store) Create(ctx context.Context, path string) (*vc.Branch, error) {
	_, found, err := s.findBranch(ctx, path)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, termcore.Errorf(termcore.Validation, "branch %s already exists", path)
	}
	var base int64
	if path != vc.RootPath {
		parent, found, err := s.findBranch(ctx, vc.ParentPath(path))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, termcore.Errorf(termcore.Validation, "parent branch of %s does not exist", path)
		}
		base = parent.Head
	} else {
		base = time.Now().UnixMilli()
	}
	b := &vc.Branch{Path: path, Base: base, Head: base, Metadata: vc.NewMetadata()}
	if err := s.saveBranch(ctx, b, false, ""); err != nil {
		return nil, err
	}
	return b, nil
}

// EnsureRoot creates the root branch when the keyspace is fresh.
func (s *Store) EnsureRoot(ctx context.Context) error {
	exists, err := s.Exists(ctx, vc.RootPath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.Create(ctx, vc.RootPath)
	return err
}

func (s *Store) OpenCommit(ctx context.Context, path string, commitType vc.CommitType, lockMetadata string) (*vc.Commit, error) {
	b, err := s.FindLatest(ctx, path)
	if err != nil {
		return nil, err
	}
	// A lightweight transaction takes the branch write lock.
	var existingLockMeta string
	applied, err := s.query(ctx, s.conn.Config.ConsistencyBook.BranchWrite,
		"UPDATE %s.branch SET locked = true, lock_meta = ? WHERE path = ? IF locked = false;",
		lockMetadata, path).ScanCAS(&existingLockMeta)
	if err != nil {
		return nil, termcore.Errorf(termcore.TransientStore, "failed locking branch %s, details: %w", path, err)
	}
	if !applied {
		return nil, termcore.Errorf(termcore.LockContention, "branch %s is already locked, lock metadata: %s", path, existingLockMeta)
	}
	s.evictBranch(ctx, path)

	tp := time.Now().UnixMilli()
	if tp <= b.Head {
		tp = b.Head + 1
	}
	return vc.NewCommit(b, tp, commitType, lockMetadata, s), nil
}

func (s *Store) UpdateMetadata(ctx context.Context, path string, md vc.Metadata) error {
	b, err := s.FindLatest(ctx, path)
	if err != nil {
		return err
	}
	b.Metadata = md
	metadata, err := json.Marshal(md)
	if err != nil {
		return termcore.Errorf(termcore.Conversion, "failed encoding metadata of branch %s, details: %w", path, err)
	}
	if err := s.query(ctx, s.conn.Config.ConsistencyBook.BranchWrite,
		"UPDATE %s.branch SET metadata = ? WHERE path = ?;", string(metadata), path).Exec(); err != nil {
		return err
	}
	s.cacheBranch(ctx, b)
	return nil
}

func (s *Store) AddCommitListener(l vc.CommitListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Rebase moves the branch base onto the parent's current head.
func (s *Store) Rebase(ctx context.Context, path string) error {
	b, err := s.FindLatest(ctx, path)
	if err != nil {
		return err
	}
	parent, found, err := s.findBranch(ctx, vc.ParentPath(path))
	if err != nil {
		return err
	}
	if !found {
		return termcore.Errorf(termcore.RuntimeState, "branch %s has no parent to rebase onto", path)
	}
	b.Base = parent.Head
	if err := s.query(ctx, s.conn.Config.ConsistencyBook.BranchWrite,
		"UPDATE %s.branch SET base = ? WHERE path = ?;", b.Base, path).Exec(); err != nil {
		return err
	}
	s.cacheBranch(ctx, b)
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

	path := c.Branch().Path
	if err := s.query(ctx, s.conn.Config.ConsistencyBook.BranchWrite,
		"UPDATE %s.branch SET head = ?, locked = false WHERE path = ?;", c.Timepoint(), path).Exec(); err != nil {
		return err
	}
	c.Branch().Head = c.Timepoint()
	s.cacheBranch(ctx, c.Branch())
	return nil
}

// RollbackCommit removes every row stamped with the commit's timepoint,
// restores the rows it superseded and releases the branch lock.
func (s *Store) RollbackCommit(ctx context.Context, c *vc.Commit) error {
	path := c.Branch().Path
	tp := c.Timepoint()
	for _, typeName := range componentTypes {
		iter := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentGet,
			"SELECT internal_id, start_tp, end_tp FROM %s.component WHERE path = ? AND type = ?;",
			path, typeName).Iter()
		var toDelete, toReopen []string
		var internalID string
		var start, end int64
		for iter.Scan(&internalID, &start, &end) {
			if start == tp {
				toDelete = append(toDelete, internalID)
			} else if end == tp {
				toReopen = append(toReopen, internalID)
			}
		}
		if err := iter.Close(); err != nil {
			return termcore.Errorf(termcore.TransientStore, "failed scanning %s rows on %s, details: %w", typeName, path, err)
		}
		for _, id := range toDelete {
			if err := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
				"DELETE FROM %s.component WHERE path = ? AND type = ? AND internal_id = ?;", path, typeName, id).Exec(); err != nil {
				return err
			}
		}
		for _, id := range toReopen {
			if err := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
				"UPDATE %s.component SET end_tp = 0 WHERE path = ? AND type = ? AND internal_id = ?;", path, typeName, id).Exec(); err != nil {
				return err
			}
		}
		if err := s.rollbackTimepoints(ctx, "tombstone", "doc_id", path, typeName, tp); err != nil {
			return err
		}
		if err := s.rollbackTimepoints(ctx, "replaced_row", "internal_id", path, typeName, tp); err != nil {
			return err
		}
	}
	if err := s.query(ctx, s.conn.Config.ConsistencyBook.BranchWrite,
		"UPDATE %s.branch SET locked = false WHERE path = ?;", path).Exec(); err != nil {
		return err
	}
	s.evictBranch(ctx, path)
	return nil
}

func (s *Store) rollbackTimepoints(ctx context.Context, table, keyColumn, path, typeName string, tp int64) error {
	entries, err := s.loadTimepoints(ctx,
		"SELECT "+keyColumn+", tp FROM %s."+table+" WHERE path = ? AND type = ?;", path, typeName)
	if err != nil {
		return err
	}
	for key, entryTp := range entries {
		if entryTp != tp {
			continue
		}
		if err := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
			"DELETE FROM %s."+table+" WHERE path = ? AND type = ? AND "+keyColumn+" = ?;", path, typeName, key).Exec(); err != nil {
			return err
		}
	}
	return nil
}
