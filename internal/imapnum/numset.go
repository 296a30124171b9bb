// Package imapnum handles UID sets: parsing caller input, compacting UID
// lists into ranges and splitting large sets into bounded commands.
package imapnum

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Range represents a single uid or uid-range value. Zero is used to
// represent "*", which is safe because UIDs are non-zero. The order of values
// is always Start <= Stop, except when representing "n:*", where Start = n and
// Stop = 0.
type Range struct {
	Start, Stop uint32
}

// Contains returns true if uid q is contained in the range. The dynamic value
// "*" contains only other "*" values, the dynamic range "n:*" contains "*"
// and all numbers >= n.
func (r Range) Contains(q uint32) bool {
	if q == 0 {
		return r.Stop == 0
	}
	return r.Start != 0 && r.Start <= q && (q <= r.Stop || r.Stop == 0)
}

// String returns the range as a uid or uid-range string.
func (r Range) String() string {
	if r.Start == r.Stop {
		if r.Start == 0 {
			return "*"
		}
		return strconv.FormatUint(uint64(r.Start), 10)
	}
	b := strconv.AppendUint(make([]byte, 0, 24), uint64(r.Start), 10)
	if r.Stop == 0 {
		return string(append(b, ':', '*'))
	}
	return string(strconv.AppendUint(append(b, ':'), uint64(r.Stop), 10))
}

// Set is an ordered list of ranges.
type Set []Range

// ParseSet parses a comma separated list of UIDs and ranges. Whitespace
// around the separators is ignored, as are empty elements.
func ParseSet(s string) (Set, error) {
	var set Set
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		r, err := parseRange(v)
		if err != nil {
			return nil, err
		}
		set = append(set, r)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("imapnum: empty set")
	}
	return set, nil
}

func parseRange(v string) (Range, error) {
	start, stop, isRange := strings.Cut(v, ":")
	a, err := parseNum(start)
	if err != nil {
		return Range{}, err
	}
	if !isRange {
		return Range{a, a}, nil
	}
	b, err := parseNum(stop)
	if err != nil {
		return Range{}, err
	}
	if a == 0 {
		a, b = b, a
	} else if b != 0 && a > b {
		a, b = b, a
	}
	return Range{a, b}, nil
}

func parseNum(v string) (uint32, error) {
	if v == "*" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("imapnum: invalid number %q", v)
	} else if n == 0 {
		return 0, fmt.Errorf("imapnum: number must be non-zero")
	}
	return uint32(n), nil
}

// SetNum builds a set from individual UIDs. Consecutive runs become ranges.
func SetNum(nums ...uint32) Set {
	l := append([]uint32(nil), nums...)
	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	var set Set
	for _, n := range l {
		if n == 0 {
			continue
		}
		if k := len(set) - 1; k >= 0 {
			last := &set[k]
			if n <= last.Stop {
				continue
			}
			if n == last.Stop+1 {
				last.Stop = n
				continue
			}
		}
		set = append(set, Range{n, n})
	}
	return set
}

// Contains reports whether uid q is in the set.
func (s Set) Contains(q uint32) bool {
	for _, r := range s {
		if r.Contains(q) {
			return true
		}
	}
	return false
}

// Dynamic reports whether the set contains "*".
func (s Set) Dynamic() bool {
	for _, r := range s {
		if r.Stop == 0 {
			return true
		}
	}
	return false
}

// Nums returns the UIDs of a static set in order. It returns false if the
// set is dynamic.
func (s Set) Nums() ([]uint32, bool) {
	if s.Dynamic() {
		return nil, false
	}
	var l []uint32
	for _, r := range s {
		for n := r.Start; ; n++ {
			l = append(l, n)
			if n == r.Stop {
				break
			}
		}
	}
	return l, true
}

// String returns the set in IMAP sequence-set syntax.
func (s Set) String() string {
	l := make([]string, len(s))
	for i, r := range s {
		l[i] = r.String()
	}
	return strings.Join(l, ",")
}

// Chunks splits the set into sets of at most n range values, so that a
// command over a large set stays under server line limits.
func (s Set) Chunks(n int) []Set {
	if n <= 0 || len(s) <= n {
		return []Set{s}
	}
	var chunks []Set
	for len(s) > 0 {
		k := n
		if k > len(s) {
			k = len(s)
		}
		chunks = append(chunks, s[:k:k])
		s = s[k:]
	}
	return chunks
}
