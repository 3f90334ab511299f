// Package domain holds the terminology component model: concepts,
// descriptions, relationships, identifiers, reference set members and the
// semantic index entries, together with the release-field bookkeeping that
// drives effective-time handling during imports.
package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/clinterm/termcore/docstore"
)

// Component is the shared envelope of every released terminology component.
// EffectiveTime is the YYYYMMDD release date, nil while the component state is
// unversioned. The Released* fields remember the last published state so a
// change can be detected and the effective time cleared or restored.
type Component struct {
	Row docstore.RowMeta `json:"-"`

	EffectiveTime         *int   `json:"effectiveTime,omitempty"`
	Active                bool   `json:"active"`
	ModuleID              string `json:"moduleId"`
	Released              bool   `json:"released"`
	ReleaseHash           string `json:"releaseHash,omitempty"`
	ReleasedEffectiveTime *int   `json:"releasedEffectiveTime,omitempty"`

	// Changed marks in-flight modifications for the version control layer.
	Changed bool `json:"-"`
}

func (c *Component) Meta() *docstore.RowMeta { return &c.Row }

func (c *Component) Envelope() *Component { return c }

func (c *Component) MarkChanged() { c.Changed = true }

// RewriteEnvelope overwrites the effective time and, when moduleID is
// non-empty, the module of the component.
func (c *Component) RewriteEnvelope(effectiveTime *int, moduleID string) {
	c.EffectiveTime = effectiveTime
	if moduleID != "" {
		c.ModuleID = moduleID
	}
}

// EffectiveTimeValue returns the effective time and whether one is set.
func (c *Component) EffectiveTimeValue() (int, bool) {
	if c.EffectiveTime == nil {
		return 0, false
	}
	return *c.EffectiveTime, true
}

func (c *Component) commonField(name string) (any, bool) {
	switch name {
	case FieldActive:
		return c.Active, true
	case FieldEffectiveTime:
		if c.EffectiveTime == nil {
			return nil, false
		}
		return *c.EffectiveTime, true
	case FieldReleased:
		return c.Released, true
	case FieldModuleID:
		return c.ModuleID, true
	}
	return nil, false
}

func (c Component) cloneEnvelope() Component {
	d := c
	if c.EffectiveTime != nil {
		v := *c.EffectiveTime
		d.EffectiveTime = &v
	}
	if c.ReleasedEffectiveTime != nil {
		v := *c.ReleasedEffectiveTime
		d.ReleasedEffectiveTime = &v
	}
	return d
}

// Versioned is a component document carrying the shared release envelope.
type Versioned interface {
	docstore.Document
	Envelope() *Component
	// IDFieldName is the indexed field holding the component identifier.
	IDFieldName() string
	releaseHashFields() []string
}

// Release stamps v as published at the given effective time and records the
// release hash of its current state.
func Release(v Versioned, effectiveTime int) {
	env := v.Envelope()
	et := effectiveTime
	rt := effectiveTime
	env.EffectiveTime = &et
	env.Released = true
	env.ReleasedEffectiveTime = &rt
	env.ReleaseHash = BuildReleaseHash(v)
}

// CopyReleaseDetails copies the last-published bookkeeping from an existing
// version onto v. The effective time itself is settled by UpdateEffectiveTime.
func CopyReleaseDetails(v, existing Versioned) {
	src := existing.Envelope()
	dst := v.Envelope()
	dst.Released = src.Released
	dst.ReleaseHash = src.ReleaseHash
	if src.ReleasedEffectiveTime != nil {
		rt := *src.ReleasedEffectiveTime
		dst.ReleasedEffectiveTime = &rt
	} else {
		dst.ReleasedEffectiveTime = nil
	}
}

// UpdateEffectiveTime restores the released effective time when v still
// matches its last published state, and clears it when it does not.
func UpdateEffectiveTime(v Versioned) {
	env := v.Envelope()
	if env.Released && env.ReleaseHash == BuildReleaseHash(v) && env.ReleasedEffectiveTime != nil {
		et := *env.ReleasedEffectiveTime
		env.EffectiveTime = &et
		return
	}
	env.EffectiveTime = nil
}

// BuildReleaseHash hashes the fields of v which take part in a release.
func BuildReleaseHash(v Versioned) string {
	env := v.Envelope()
	parts := append([]string{strconv.FormatBool(env.Active), env.ModuleID}, v.releaseHashFields()...)
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
