package realm

// Len returns the array length, or 0 for non-arrays.
func (o *Object) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.elems)
}

// Element returns element i. Holes and out-of-range indices read as
// Undefined.
func (o *Object) Element(i int) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if i < 0 || i >= len(o.elems) {
		return Undefined
	}
	if v := o.elems[i]; v != Hole {
		return v
	}
	return Undefined
}

// SetElement stores v at index i, growing the array. Growing past the
// current length leaves holes in between.
func (o *Object) SetElement(i int, v Value) {
	if i < 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.elems) <= i {
		o.elems = append(o.elems, Hole)
	}
	o.elems[i] = v
}

// DeleteElement punches a hole at index i.
func (o *Object) DeleteElement(i int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i >= 0 && i < len(o.elems) {
		o.elems[i] = Hole
	}
}

// Push appends values.
func (o *Object) Push(vals ...Value) {
	o.mu.Lock()
	o.elems = append(o.elems, vals...)
	o.mu.Unlock()
}

// SetLength truncates or extends the array. Extension adds holes.
func (o *Object) SetLength(n int) {
	if n < 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if n <= len(o.elems) {
		clear(o.elems[n:])
		o.elems = o.elems[:n]
		return
	}
	for len(o.elems) < n {
		o.elems = append(o.elems, Hole)
	}
}

// IsDense reports whether every index below Len holds a value.
//
// Performance: O(n) scan. Hole-freedom is a value property that can change
// at any time without a watched write, so guards re-run this on every entry.
func (o *Object) IsDense() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, v := range o.elems {
		if v == Hole {
			return false
		}
	}
	return true
}

// CopyDense copies the element storage into a fresh slice if the array
// holds no holes. It reports false, and copies nothing, otherwise. The scan
// and the copy happen under one read lock so the result is a consistent
// snapshot.
func (o *Object) CopyDense() ([]Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, v := range o.elems {
		if v == Hole {
			return nil, false
		}
	}
	out := make([]Value, len(o.elems))
	copy(out, o.elems)
	return out, true
}
