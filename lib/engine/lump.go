package engine

import (
	"fmt"
)

// --------------------------------------------------------------------------
// LumpID
// --------------------------------------------------------------------------

// LumpID is the 128 bit key of a stored lump. IDs are totally ordered by
// their numeric value (Hi first, then Lo).
type LumpID struct {
	Hi uint64
	Lo uint64
}

// NewLumpID creates a LumpID from its high and low 64 bit halves.
func NewLumpID(hi, lo uint64) LumpID {
	return LumpID{Hi: hi, Lo: lo}
}

// LumpIDFromU64 creates a LumpID whose high half is zero.
func LumpIDFromU64(n uint64) LumpID {
	return LumpID{Lo: n}
}

// Compare returns -1, 0 or 1 depending on the numeric order of a and b.
func (a LumpID) Compare(b LumpID) int {
	switch {
	case a.Hi < b.Hi:
		return -1
	case a.Hi > b.Hi:
		return 1
	case a.Lo < b.Lo:
		return -1
	case a.Lo > b.Lo:
		return 1
	default:
		return 0
	}
}

// Less reports whether a orders strictly before b.
func (a LumpID) Less(b LumpID) bool {
	return a.Compare(b) < 0
}

// String returns the id as 32 hex digits.
func (a LumpID) String() string {
	return fmt.Sprintf("%016x%016x", a.Hi, a.Lo)
}

// --------------------------------------------------------------------------
// Range
// --------------------------------------------------------------------------

// Range describes a set of LumpIDs via two optional bounds. A missing bound
// is unbounded on that side; the inclusive flags are only meaningful when the
// corresponding bound is present. The zero value matches every id.
type Range struct {
	Start     LumpID
	End       LumpID
	HasStart  bool
	HasEnd    bool
	StartIncl bool
	EndIncl   bool
}

// RangeAll returns the unbounded range.
func RangeAll() Range {
	return Range{}
}

// BoundedRange returns the half-open range [start, end), the common form for
// scans and bulk deletes.
func BoundedRange(start, end LumpID) Range {
	return Range{
		Start:     start,
		End:       end,
		HasStart:  true,
		HasEnd:    true,
		StartIncl: true,
		EndIncl:   false,
	}
}

// RangeFrom returns the range of every id >= start.
func RangeFrom(start LumpID) Range {
	return Range{Start: start, HasStart: true, StartIncl: true}
}

// Contains reports whether id falls inside the range.
func (r Range) Contains(id LumpID) bool {
	if r.HasStart {
		c := id.Compare(r.Start)
		if c < 0 || (c == 0 && !r.StartIncl) {
			return false
		}
	}
	if r.HasEnd {
		c := id.Compare(r.End)
		if c > 0 || (c == 0 && !r.EndIncl) {
			return false
		}
	}
	return true
}

// String renders the range in interval notation, e.g. "[000..010, 000..032)".
func (r Range) String() string {
	start, end := "..", ".."
	lb, rb := "(", ")"
	if r.HasStart {
		start = r.Start.String()
		if r.StartIncl {
			lb = "["
		}
	}
	if r.HasEnd {
		end = r.End.String()
		if r.EndIncl {
			rb = "]"
		}
	}
	return fmt.Sprintf("%s%s, %s%s", lb, start, end, rb)
}

// --------------------------------------------------------------------------
// Usage
// --------------------------------------------------------------------------

// Usage is a device's storage usage/capacity record in bytes.
type Usage struct {
	UsedBytes  uint64
	TotalBytes uint64
}
