package services

import (
	"fmt"
	"time"
)

// FieldChange is one column whose stored value differs from the uploaded value.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

func (c FieldChange) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Field, displayValue(c.Old), displayValue(c.New))
}

// changeSet applies uploaded values onto a copy of the stored entity and records
// what moved. Empty uploaded values never overwrite stored ones.
type changeSet struct {
	changes []FieldChange
}

func (c *changeSet) add(field string, old, new any) {
	c.changes = append(c.changes, FieldChange{Field: field, Old: old, New: new})
}

func (c *changeSet) setString(field string, dst *string, v string) {
	if v == "" || *dst == v {
		return
	}
	c.add(field, *dst, v)
	*dst = v
}

func (c *changeSet) setStringPtr(field string, dst **string, v *string) {
	if v == nil || *v == "" {
		return
	}
	if *dst != nil && **dst == *v {
		return
	}
	c.add(field, derefString(*dst), *v)
	s := *v
	*dst = &s
}

func (c *changeSet) setUintPtr(field string, dst **uint, v *uint) {
	if v == nil || *v == 0 {
		return
	}
	if *dst != nil && **dst == *v {
		return
	}
	var old any
	if *dst != nil {
		old = **dst
	}
	c.add(field, old, *v)
	n := *v
	*dst = &n
}

func (c *changeSet) setIntPtr(field string, dst **int, v *int) {
	if v == nil {
		return
	}
	if *dst != nil && **dst == *v {
		return
	}
	var old any
	if *dst != nil {
		old = **dst
	}
	c.add(field, old, *v)
	n := *v
	*dst = &n
}

func (c *changeSet) setInt(field string, dst *int, v *int) {
	if v == nil || *dst == *v {
		return
	}
	c.add(field, *dst, *v)
	*dst = *v
}

func (c *changeSet) setBool(field string, dst *bool, v *bool) {
	if v == nil || *dst == *v {
		return
	}
	c.add(field, *dst, *v)
	*dst = *v
}

func (c *changeSet) setDate(field string, dst **time.Time, v *time.Time) {
	if v == nil {
		return
	}
	if *dst != nil && sameDay(**dst, *v) {
		return
	}
	var old any
	if *dst != nil {
		old = (*dst).Format(isoDate)
	}
	c.add(field, old, v.Format(isoDate))
	d := *v
	*dst = &d
}

// Fields lists the changed column names in the order they were detected.
func (c *changeSet) Fields() []string {
	out := make([]string, 0, len(c.changes))
	for _, ch := range c.changes {
		out = append(out, ch.Field)
	}
	return out
}

func (c *changeSet) Empty() bool { return len(c.changes) == 0 }

const isoDate = "2006-01-02"

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func displayValue(v any) string {
	if v == nil {
		return "(empty)"
	}
	return fmt.Sprint(v)
}
