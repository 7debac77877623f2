package timetable

import "testing"

func TestDeduplicator_InternIntsSharesBackingArray(t *testing.T) {
	d := NewDeduplicator()
	a := d.InternInts([]int{0, 30, 90})
	b := d.InternInts([]int{0, 30, 90})

	if &a[0] != &b[0] {
		t.Errorf("InternInts returned distinct backing arrays for equal input")
	}

	c := d.InternInts([]int{0, 30, 91})
	if &a[0] == &c[0] {
		t.Errorf("InternInts shared backing array for differing input")
	}
}

func TestDeduplicator_InternStringsDistinguishesNil(t *testing.T) {
	d := NewDeduplicator()
	hello := "hello"
	a := d.InternStrings([]*string{&hello, nil})
	b := d.InternStrings([]*string{&hello, nil})
	if &a[0] != &b[0] {
		t.Errorf("InternStrings returned distinct backing arrays for equal input")
	}

	world := "world"
	c := d.InternStrings([]*string{&hello, &world})
	if &a[0] == &c[0] {
		t.Errorf("InternStrings shared backing array for differing input")
	}
}

func TestDeduplicator_InternBitSet(t *testing.T) {
	d := NewDeduplicator()
	a := NewBitSet(4)
	a.Set(1)
	b := NewBitSet(4)
	b.Set(1)

	ia := d.InternBitSet(a)
	ib := d.InternBitSet(b)
	if ia != ib {
		t.Errorf("InternBitSet returned distinct pointers for equal bit sets")
	}
}

func TestDeduplicator_InternGenericSharesBackingArrayByValue(t *testing.T) {
	d := NewDeduplicator()
	msg := "call ahead"
	a := Intern(d, []*BookingInfo{{Message: msg}, nil})
	b := Intern(d, []*BookingInfo{{Message: msg}, nil})
	if &a[0] != &b[0] {
		t.Errorf("Intern returned distinct backing arrays for equal-valued *BookingInfo slices")
	}

	c := Intern(d, []*BookingInfo{{Message: "different"}, nil})
	if &a[0] == &c[0] {
		t.Errorf("Intern shared backing array for differing *BookingInfo content")
	}
}

func TestDeduplicator_NilReceiverIsSafe(t *testing.T) {
	var d *Deduplicator
	arr := []int{1, 2, 3}
	if got := d.InternInts(arr); &got[0] != &arr[0] {
		t.Errorf("nil Deduplicator did not return input unchanged")
	}
}
