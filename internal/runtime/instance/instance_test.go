package instance

import "testing"

func TestPoolAddAndAt(t *testing.T) {
	p := NewPool()
	a := &Instance{}
	b := &Instance{}

	p.Add(a)
	p.Add(b)

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	if p.At(0) != a || p.At(1) != b {
		t.Fatal("At() did not return instances in insertion order")
	}
}

func TestPoolSwapRemove(t *testing.T) {
	p := NewPool()
	a, b, c := &Instance{}, &Instance{}, &Instance{}

	p.Add(a)
	p.Add(b)
	p.Add(c)

	p.SwapRemove(0) // removes a, c moves into slot 0

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	if p.At(0) != c {
		t.Fatal("SwapRemove should move the last element into the removed slot")
	}

	if p.At(1) != b {
		t.Fatal("SwapRemove must not disturb other elements")
	}
}

func TestPoolClear(t *testing.T) {
	p := NewPool()
	p.Add(&Instance{})
	p.Clear()

	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Clear", p.Len())
	}
}

func TestPoolEach(t *testing.T) {
	p := NewPool()
	p.Add(&Instance{Mark: true})
	p.Add(&Instance{Mark: false})

	var marked, unmarked int

	p.Each(func(inst *Instance) {
		if inst.Mark {
			marked++
		} else {
			unmarked++
		}
	})

	if marked != 1 || unmarked != 1 {
		t.Fatalf("marked=%d unmarked=%d, want 1 and 1", marked, unmarked)
	}
}
