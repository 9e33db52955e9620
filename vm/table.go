package vm

// Table is an open-addressing hash table with linear probing, used for
// globals, string interning, type method/field tables, instance fields and
// the map object's storage.
//
// Capacity is always a power of two so the probe step can mask instead of
// divide. A slot whose key is Empty is free; if its value is True the slot
// is a tombstone left by a deletion, and probe chains continue through it.
// count includes tombstones, so the 0.75 load-factor check can never be
// satisfied by a table full of tombstones.
type Table struct {
	count   int
	entries []tableEntry
}

type tableEntry struct {
	key   Value
	value Value
}

const tableMaxLoad = 0.75

// hashValue computes the hash bucket for a key. Strings carry their FNV-1a
// hash; every other value hashes its boxed bit pattern.
func hashValue(key Value) uint32 {
	if key.IsString() {
		return key.AsString().Hash
	}
	bits := uint64(key)
	h := uint32(bits) ^ uint32(bits>>32)
	h *= 2654435769 // Knuth multiplicative scramble
	return h
}

// HashString computes the FNV-1a 32-bit hash of a string's bytes. Exposed
// so the heap can hash candidate strings before consulting the intern
// table.
func HashString(chars string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(chars); i++ {
		h ^= uint32(chars[i])
		h *= 16777619
	}
	return h
}

// findEntry locates the slot for key: either the entry holding it, or the
// slot an insertion should use. Deletions leave tombstones, so the probe
// remembers the first tombstone seen and hands it back in preference to a
// fresh slot, keeping chains short.
func findEntry(entries []tableEntry, key Value) *tableEntry {
	mask := uint32(len(entries) - 1)
	index := hashValue(key) & mask
	var tombstone *tableEntry
	for {
		entry := &entries[index]
		if entry.key == Empty {
			if entry.value.IsNil() {
				// Genuinely empty: the key is absent.
				if tombstone != nil {
					return tombstone
				}
				return entry
			}
			if tombstone == nil {
				tombstone = entry
			}
		} else if entry.key == key {
			return entry
		}
		index = (index + 1) & mask
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]tableEntry, capacity)
	for i := range entries {
		entries[i].key = Empty
		entries[i].value = Nil
	}
	// Rebuild without tombstones; count is recomputed from live entries.
	t.count = 0
	for i := range t.entries {
		src := &t.entries[i]
		if src.key == Empty {
			continue
		}
		dst := findEntry(entries, src.key)
		dst.key = src.key
		dst.value = src.value
		t.count++
	}
	t.entries = entries
}

// Set stores value under key, returning true if the key was not already
// present.
func (t *Table) Set(key, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		capacity := len(t.entries) * 2
		if capacity < 8 {
			capacity = 8
		}
		t.adjustCapacity(capacity)
	}
	entry := findEntry(t.entries, key)
	isNew := entry.key == Empty
	if isNew && entry.value.IsNil() {
		// Fresh slot; tombstone reuse does not grow the load.
		t.count++
	}
	entry.key = key
	entry.value = value
	return isNew
}

// Get fetches the value stored under key.
func (t *Table) Get(key Value) (Value, bool) {
	if t.count == 0 {
		return Nil, false
	}
	entry := findEntry(t.entries, key)
	if entry.key == Empty {
		return Nil, false
	}
	return entry.value, true
}

// Delete removes key, leaving a tombstone so later probes still traverse
// the chain. Returns true if the key was present.
func (t *Table) Delete(key Value) bool {
	if t.count == 0 {
		return false
	}
	entry := findEntry(t.entries, key)
	if entry.key == Empty {
		return false
	}
	entry.key = Empty
	entry.value = True
	return true
}

// AddAll copies every live entry of src into t. Used for copy-down
// inheritance of method and field-default tables.
func (t *Table) AddAll(src *Table) {
	for i := range src.entries {
		e := &src.entries[i]
		if e.key != Empty {
			t.Set(e.key, e.value)
		}
	}
}

// FindString probes the table by raw bytes and hash rather than by Value
// identity. It only makes sense on the intern table, where every key is a
// string; it is how the heap discovers an existing interned copy before
// allocating.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if t.count == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		entry := &t.entries[index]
		if entry.key == Empty {
			if entry.value.IsNil() {
				return nil
			}
		} else {
			s := entry.key.AsString()
			if s.Hash == hash && s.Chars == chars {
				return s
			}
		}
		index = (index + 1) & mask
	}
}

// Len returns the number of live entries (tombstones excluded).
func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].key != Empty {
			n++
		}
	}
	return n
}

// Range calls fn for every live entry until fn returns false.
func (t *Table) Range(fn func(key, value Value) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key == Empty {
			continue
		}
		if !fn(e.key, e.value) {
			return
		}
	}
}

// deleteUnmarked drops entries whose key is an unmarked string. The heap
// runs this on the intern table between mark and sweep so interning stays
// weak.
func (t *Table) deleteUnmarked() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key == Empty {
			continue
		}
		if e.key.IsObj() && !e.key.AsObj().Marked {
			e.key = Empty
			e.value = True
		}
	}
}
