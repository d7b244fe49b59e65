package bits

// Register is a memory-mapped storage cell. Every Load and Store is a
// hardware access with side effects: implementations must never elide,
// merge or cache them.
type Register[T Word] interface {
	Load() T
	Store(v T)
}

// Assign writes the positions asserted to 1 and clears every other bit.
func Assign[T Word](r Register[T], sels ...Selector) {
	set, _ := Masks[T](sels...)
	r.Store(set)
}

// Add sets the positions asserted to 1 and clears the positions asserted to
// 0, in a single read-modify-write. Bits not named by any selector keep
// their value.
func Add[T Word](r Register[T], sels ...Selector) {
	set, clear := Masks[T](sels...)
	v := r.Load()
	v |= set
	v &^= clear
	r.Store(v)
}

// Get reports whether bit b of r is set.
func Get[T Word](r Register[T], b Bit) bool {
	return r.Load()&Value[T](b) != 0
}

// Set forces bit b of r to v, leaving the other bits unchanged.
func Set[T Word](r Register[T], b Bit, v bool) {
	Add(r, Is(b, v))
}

// Toggle flips bit b of r with a read-modify-write.
func Toggle[T Word](r Register[T], b Bit) {
	r.Store(r.Load() ^ Value[T](b))
}
