package vm

import "github.com/dop251/goja"

type slot struct {
	value goja.Value
	gen   uint32
	live  bool
}

// heap is the table of host references into one runtime. Slot 0 is reserved
// so a zero id never resolves. Each reuse of a slot bumps its generation,
// which keeps stale handles from aliasing the new occupant.
type heap struct {
	slots []slot
	free  []uint32
	live  int
}

func newHeap() *heap {
	return &heap{
		slots: make([]slot, 1, 64),
		free:  make([]uint32, 0, 16),
	}
}

func (hp *heap) insert(v goja.Value) (id, gen uint32) {
	if n := len(hp.free); n > 0 {
		id = hp.free[n-1]
		hp.free = hp.free[:n-1]
	} else {
		hp.slots = append(hp.slots, slot{})
		id = uint32(len(hp.slots) - 1)
	}

	s := &hp.slots[id]
	s.gen++
	s.value = v
	s.live = true
	hp.live++
	return id, s.gen
}

func (hp *heap) get(id, gen uint32) (goja.Value, bool) {
	if id == 0 || int(id) >= len(hp.slots) {
		return nil, false
	}
	s := &hp.slots[id]
	if !s.live || s.gen != gen {
		return nil, false
	}
	return s.value, true
}

func (hp *heap) release(id, gen uint32) bool {
	if _, ok := hp.get(id, gen); !ok {
		return false
	}
	s := &hp.slots[id]
	s.live = false
	s.value = nil
	hp.free = append(hp.free, id)
	hp.live--
	return true
}

// clear drops every reference so the engine collector can reclaim them.
func (hp *heap) clear() {
	hp.slots = nil
	hp.free = nil
	hp.live = 0
}
