package model

import "strings"

// Blacklist is an ordered set of token addresses excluded from scan results.
// The zero value is an empty, usable blacklist.
type Blacklist struct {
	entries []string
	index   map[string]struct{}
}

// NewBlacklist builds a blacklist from addresses, trimming blanks and
// dropping duplicates while keeping first-seen order.
func NewBlacklist(addrs ...string) *Blacklist {
	b := &Blacklist{}
	for _, a := range addrs {
		b.Add(a)
	}
	return b
}

// Add inserts addr and reports whether it was new.
func (b *Blacklist) Add(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	if b.index == nil {
		b.index = make(map[string]struct{})
	}
	if _, ok := b.index[addr]; ok {
		return false
	}
	b.index[addr] = struct{}{}
	b.entries = append(b.entries, addr)
	return true
}

// Remove deletes addr and reports whether it was present.
func (b *Blacklist) Remove(addr string) bool {
	addr = strings.TrimSpace(addr)
	if _, ok := b.index[addr]; !ok {
		return false
	}
	delete(b.index, addr)
	for i, e := range b.entries {
		if e == addr {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether addr is blacklisted.
func (b *Blacklist) Contains(addr string) bool {
	if b == nil {
		return false
	}
	_, ok := b.index[strings.TrimSpace(addr)]
	return ok
}

// Entries returns a copy of the addresses in insertion order.
func (b *Blacklist) Entries() []string {
	if b == nil {
		return []string{}
	}
	out := make([]string, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of entries.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Clone returns an independent copy.
func (b *Blacklist) Clone() *Blacklist {
	if b == nil {
		return NewBlacklist()
	}
	return NewBlacklist(b.entries...)
}
