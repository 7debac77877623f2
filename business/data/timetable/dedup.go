package timetable

import (
	"fmt"
	"strings"
)

// Deduplicator interns equal integer arrays, bit-sets, string arrays, and
// lists of comparable elements so that trips sharing a stop pattern and
// boarding rules also share the backing arrays in memory. It is not
// thread-safe: each Deduplicator is used by one goroutine at a time, either
// a single-threaded graph build or the writer that holds a
// SnapshotContainer's updater lock while applying a batch.
type Deduplicator struct {
	intArrays     map[string][]int
	stringArrays  map[string][]*string
	boolArrays    map[string][]bool
	ruleArrays    map[string][]BoardingRule
	bitSets       map[string]*BitSet
	genericArrays map[string]interface{}
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		intArrays:     make(map[string][]int),
		stringArrays:  make(map[string][]*string),
		boolArrays:    make(map[string][]bool),
		ruleArrays:    make(map[string][]BoardingRule),
		bitSets:       make(map[string]*BitSet),
		genericArrays: make(map[string]interface{}),
	}
}

// Intern returns arr, or a previously interned slice of equal value, for an
// element type this package has no dedicated interning table for, such as
// *BookingInfo. It is a package-level function rather than a method because
// Go does not allow a method to introduce its own type parameter.
func Intern[T comparable](d *Deduplicator, arr []T) []T {
	if d == nil || arr == nil {
		return arr
	}
	key := genericKey(arr)
	if existing, ok := d.genericArrays[key]; ok {
		if typed, ok := existing.([]T); ok {
			return typed
		}
	}
	d.genericArrays[key] = arr
	return arr
}

func genericKey[T any](arr []T) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%T:", arr)
	for _, v := range arr {
		fmt.Fprintf(&b, "%+v,", v)
	}
	return b.String()
}

// InternInts returns arr, or a previously interned slice of equal value.
func (d *Deduplicator) InternInts(arr []int) []int {
	if d == nil || arr == nil {
		return arr
	}
	key := intKey(arr)
	if existing, ok := d.intArrays[key]; ok {
		return existing
	}
	d.intArrays[key] = arr
	return arr
}

// InternBools returns arr, or a previously interned slice of equal value.
func (d *Deduplicator) InternBools(arr []bool) []bool {
	if d == nil || arr == nil {
		return arr
	}
	key := boolKey(arr)
	if existing, ok := d.boolArrays[key]; ok {
		return existing
	}
	d.boolArrays[key] = arr
	return arr
}

// InternRules returns arr, or a previously interned slice of equal value.
func (d *Deduplicator) InternRules(arr []BoardingRule) []BoardingRule {
	if d == nil || arr == nil {
		return arr
	}
	key := ruleKey(arr)
	if existing, ok := d.ruleArrays[key]; ok {
		return existing
	}
	d.ruleArrays[key] = arr
	return arr
}

// InternStrings returns arr, or a previously interned slice of equal value.
// Elements may be nil, distinguishing "no override" from an empty string.
func (d *Deduplicator) InternStrings(arr []*string) []*string {
	if d == nil || arr == nil {
		return arr
	}
	key := stringPtrKey(arr)
	if existing, ok := d.stringArrays[key]; ok {
		return existing
	}
	d.stringArrays[key] = arr
	return arr
}

// InternBitSet returns bs, or a previously interned BitSet of equal value.
func (d *Deduplicator) InternBitSet(bs *BitSet) *BitSet {
	if d == nil || bs == nil {
		return bs
	}
	key := bs.String()
	if existing, ok := d.bitSets[key]; ok {
		return existing
	}
	d.bitSets[key] = bs
	return bs
}

func intKey(arr []int) string {
	var b strings.Builder
	for _, v := range arr {
		fmt.Fprintf(&b, "%d,", v)
	}
	return b.String()
}

func boolKey(arr []bool) string {
	b := make([]byte, len(arr))
	for i, v := range arr {
		if v {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

func ruleKey(arr []BoardingRule) string {
	var b strings.Builder
	for _, v := range arr {
		fmt.Fprintf(&b, "%d,", int8(v))
	}
	return b.String()
}

func stringPtrKey(arr []*string) string {
	var b strings.Builder
	for _, v := range arr {
		if v == nil {
			b.WriteString("\x00,")
		} else {
			b.WriteString(*v)
			b.WriteByte(',')
		}
	}
	return b.String()
}
