package domain

import "testing"

func releasedConcept(effectiveTime int) *Concept {
	c := &Concept{ConceptID: "100000", DefinitionStatusID: "900000000000074008"}
	c.Active = true
	c.ModuleID = CoreModule
	Release(c, effectiveTime)
	return c
}

func TestRelease(t *testing.T) {
	c := releasedConcept(20230101)
	if et, ok := c.EffectiveTimeValue(); !ok || et != 20230101 {
		t.Errorf("effective time = %v, want 20230101", c.EffectiveTime)
	}
	if !c.Released || c.ReleasedEffectiveTime == nil || *c.ReleasedEffectiveTime != 20230101 {
		t.Errorf("release bookkeeping: released=%v releasedEffectiveTime=%v", c.Released, c.ReleasedEffectiveTime)
	}
	if c.ReleaseHash != BuildReleaseHash(c) {
		t.Error("release hash should match the released state")
	}
}

func TestBuildReleaseHashCoversReleaseFields(t *testing.T) {
	a := releasedConcept(20230101)
	b := releasedConcept(20230101)
	if BuildReleaseHash(a) != BuildReleaseHash(b) {
		t.Error("identical states must hash identically")
	}
	b.Active = false
	if BuildReleaseHash(a) == BuildReleaseHash(b) {
		t.Error("activity change must change the hash")
	}
	b.Active = true
	b.DefinitionStatusID = "900000000000073002"
	if BuildReleaseHash(a) == BuildReleaseHash(b) {
		t.Error("definition status change must change the hash")
	}
}

func TestUpdateEffectiveTimeRestoresUnchangedState(t *testing.T) {
	released := releasedConcept(20230101)

	// A new version identical to the released state keeps its effective time.
	same := released.CloneDocument().(*Concept)
	same.EffectiveTime = nil
	CopyReleaseDetails(same, released)
	UpdateEffectiveTime(same)
	if et, ok := same.EffectiveTimeValue(); !ok || et != 20230101 {
		t.Errorf("unchanged state: effective time = %v, want 20230101", same.EffectiveTime)
	}

	// A diverging version stays unversioned until the next release.
	changed := released.CloneDocument().(*Concept)
	changed.Active = false
	CopyReleaseDetails(changed, released)
	UpdateEffectiveTime(changed)
	if _, ok := changed.EffectiveTimeValue(); ok {
		t.Errorf("changed state: effective time = %v, want none", changed.EffectiveTime)
	}
	if !changed.Released {
		t.Error("the released flag survives a content change")
	}
}

func TestUpdateEffectiveTimeOnUnreleasedComponent(t *testing.T) {
	c := &Concept{ConceptID: "100000", DefinitionStatusID: "900000000000074008"}
	c.Active = true
	c.ModuleID = CoreModule
	et := 20230101
	c.EffectiveTime = &et
	UpdateEffectiveTime(c)
	if _, ok := c.EffectiveTimeValue(); ok {
		t.Error("an unreleased component cannot carry an effective time")
	}
}
