package model

import (
	"strings"
)

// Path depths with special meaning for addressing.
const (
	DepthRoot       = 0
	DepthCollection = 1
	DepthDocument   = 2
)

// Path is a normalized slash-delimited address. Segment 0 is the collection,
// segment 1 the document id, segments 2..n a field path inside the document.
type Path struct {
	raw      string
	segments []string
}

// ParsePath normalizes p: leading and trailing slashes are stripped and empty
// segments collapse. It never fails; a root path simply has no segments.
func ParsePath(p string) Path {
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return Path{raw: strings.Join(segments, "/"), segments: segments}
}

// Normalize removes leading/trailing slashes and collapses empty segments.
func Normalize(p string) string {
	return ParsePath(p).raw
}

// CollectionOf returns segment 0, or "" for the root.
func CollectionOf(p string) string {
	return ParsePath(p).Collection()
}

// DocumentIDOf returns segment 1 if present.
func DocumentIDOf(p string) (string, bool) {
	return ParsePath(p).DocumentID()
}

// NestedFieldsOf returns segments 2..n.
func NestedFieldsOf(p string) []string {
	return ParsePath(p).NestedFields()
}

func (p Path) String() string { return p.raw }

// Depth is the number of segments.
func (p Path) Depth() int { return len(p.segments) }

// IsRoot reports whether p has no segments.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Segments returns a copy of the segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

func (p Path) Collection() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[0]
}

func (p Path) DocumentID() (string, bool) {
	if len(p.segments) < 2 {
		return "", false
	}
	return p.segments[1], true
}

// NestedFields returns the field path inside the document, empty at depth <= 2.
func (p Path) NestedFields() []string {
	if len(p.segments) <= DepthDocument {
		return nil
	}
	return append([]string(nil), p.segments[DepthDocument:]...)
}

// DottedNested joins NestedFields with "." as the REST layer expects.
func (p Path) DottedNested() string {
	return strings.Join(p.NestedFields(), ".")
}

// HasDottedField reports whether a nested field name contains ".". Such a name
// cannot be told apart from deeper nesting once joined by DottedNested.
func (p Path) HasDottedField() bool {
	for _, f := range p.NestedFields() {
		if strings.Contains(f, ".") {
			return true
		}
	}
	return false
}

// DocumentPath returns the collection/document prefix of p.
func (p Path) DocumentPath() Path {
	if len(p.segments) <= DepthDocument {
		return p
	}
	return Path{raw: strings.Join(p.segments[:DepthDocument], "/"), segments: p.segments[:DepthDocument:DepthDocument]}
}

// Key returns the last segment, or "" at the root.
func (p Path) Key() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent drops the last segment. The second result is false at the root.
func (p Path) Parent() (Path, bool) {
	if len(p.segments) == 0 {
		return Path{}, false
	}
	parent := p.segments[: len(p.segments)-1 : len(p.segments)-1]
	return Path{raw: strings.Join(parent, "/"), segments: parent}, true
}

// Child appends a relative path, which may itself contain slashes.
func (p Path) Child(relative string) Path {
	if p.raw == "" {
		return ParsePath(relative)
	}
	return ParsePath(p.raw + "/" + relative)
}

// HasPrefix reports whether p equals prefix or lies underneath it.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, s := range prefix.segments {
		if p.segments[i] != s {
			return false
		}
	}
	return true
}

// Related reports whether a change at other can affect a read at p: one path
// must be an ancestor of (or equal to) the other.
func (p Path) Related(other Path) bool {
	return p.HasPrefix(other) || other.HasPrefix(p)
}
