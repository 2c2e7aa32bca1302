package dynamo

// Arena hands out zeroed scratch vectors of one fixed size and takes them
// back for reuse. It is not safe for concurrent use; give every worker its
// own arena.
type Arena struct {
	size      int
	free      []State
	allocated int
}

func NewArena(size int) *Arena {
	return &Arena{size: size}
}

func (a *Arena) Size() int { return a.size }

// Allocated is the number of vectors the arena has ever created.
func (a *Arena) Allocated() int { return a.allocated }

func (a *Arena) Get() State {
	if n := len(a.free); n > 0 {
		s := a.free[n-1]
		a.free = a.free[:n-1]
		return s
	}
	a.allocated++
	return make(State, a.size)
}

// Put returns s to the arena. Vectors of the wrong size are dropped.
func (a *Arena) Put(s State) {
	if len(s) != a.size {
		return
	}
	for i := range s {
		s[i] = 0
	}
	a.free = append(a.free, s)
}

func (a *Arena) GetAndCopy(src []float64) State {
	dst := a.Get()
	copy(dst, src)
	return dst
}
