// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// memEntry is one (key, value) row, kept sorted by (key, value) so a
// DupSort table's values stay byte-lexicographically ordered per key, the
// same ordering mdbx's native dup-sort gives us.
type memEntry struct{ key, value []byte }

func cmpEntry(a, b memEntry) int {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c
	}
	return bytes.Compare(a.value, b.value)
}

// NewMemDB returns an in-memory DB, used for tests and by the node when
// --datadir is empty, where durability across restarts isn't needed. It implements the same
// single-writer-many-readers contract as the mdbx backend: BeginRw takes an
// exclusive lock and works against a private copy of the table set,
// published atomically on Commit.
func NewMemDB() DB {
	return &memDB{tables: map[string][]memEntry{}}
}

type memDB struct {
	mu     sync.RWMutex
	tables map[string][]memEntry
}

func (d *memDB) snapshot() map[string][]memEntry {
	out := make(map[string][]memEntry, len(d.tables))
	for name, rows := range d.tables {
		cp := make([]memEntry, len(rows))
		copy(cp, rows)
		out[name] = cp
	}
	return out
}

func (d *memDB) BeginRo(context.Context) (Tx, error) {
	d.mu.RLock()
	snap := d.snapshot()
	d.mu.RUnlock()
	return &memTx{tables: snap}, nil
}

func (d *memDB) BeginRw(context.Context) (RwTx, error) {
	d.mu.Lock()
	return &memTx{tables: d.snapshot(), db: d}, nil
}

func (d *memDB) Close() error { return nil }

type memTx struct {
	tables map[string][]memEntry
	db     *memDB // nil for a read-only tx
}

func (t *memTx) Commit() error {
	if t.db == nil {
		return nil
	}
	t.db.tables = t.tables
	t.db.mu.Unlock()
	t.db = nil
	return nil
}

func (t *memTx) Rollback() error {
	if t.db != nil {
		t.db.mu.Unlock()
		t.db = nil
	}
	return nil
}

func (t *memTx) Get(table string, key []byte) ([]byte, bool, error) {
	rows := t.tables[table]
	i := sort.Search(len(rows), func(i int) bool { return bytes.Compare(rows[i].key, key) >= 0 })
	if i < len(rows) && bytes.Equal(rows[i].key, key) {
		return rows[i].value, true, nil
	}
	return nil, false, nil
}

func (t *memTx) Put(table string, key, value []byte) error {
	rows := t.tables[table]
	entry := memEntry{key: append([]byte{}, key...), value: append([]byte{}, value...)}

	if kindOf(table) == Simple {
		i := sort.Search(len(rows), func(i int) bool { return bytes.Compare(rows[i].key, key) >= 0 })
		if i < len(rows) && bytes.Equal(rows[i].key, key) {
			rows[i] = entry
		} else {
			rows = insertAt(rows, i, entry)
		}
		t.tables[table] = rows
		return nil
	}

	i := sort.Search(len(rows), func(i int) bool { return cmpEntry(rows[i], entry) >= 0 })
	if i < len(rows) && cmpEntry(rows[i], entry) == 0 {
		return nil // idempotent: identical (key, value) already present
	}
	t.tables[table] = insertAt(rows, i, entry)
	return nil
}

func insertAt(rows []memEntry, i int, entry memEntry) []memEntry {
	rows = append(rows, memEntry{})
	copy(rows[i+1:], rows[i:])
	rows[i] = entry
	return rows
}

func (t *memTx) Delete(table string, key []byte) error {
	rows := t.tables[table]
	out := rows[:0:0]
	for _, r := range rows {
		if !bytes.Equal(r.key, key) {
			out = append(out, r)
		}
	}
	t.tables[table] = out
	return nil
}

func (t *memTx) DeleteExact(table string, key, value []byte) error {
	rows := t.tables[table]
	out := rows[:0:0]
	for _, r := range rows {
		if bytes.Equal(r.key, key) && bytes.Equal(r.value, value) {
			continue
		}
		out = append(out, r)
	}
	t.tables[table] = out
	return nil
}

func (t *memTx) Clear(table string) error {
	t.tables[table] = nil
	return nil
}

func (t *memTx) EntriesCount(table string) (uint64, error) { return uint64(len(t.tables[table])), nil }

func (t *memTx) Stat(table string) (Stat, error) {
	return Stat{Entries: uint64(len(t.tables[table]))}, nil
}

func (t *memTx) Cursor(table string) (Cursor, error) {
	return &memCursor{tx: t, table: table, pos: -1}, nil
}

func (t *memTx) CursorDupSort(table string) (CursorDupSort, error) {
	return &memCursor{tx: t, table: table, pos: -1}, nil
}

// memCursor reads tx.tables[table] fresh on every access rather than
// snapshotting it at creation time: Put/Delete replace the table's slice
// value in place (see insertAt), and a cursor used to drive its own
// table's deletes (deleteDupRowsAbove, deleteKeysAbove) must observe each
// removal before its next move or it would skip rows or spin forever.
//
// Positioning is tracked by the last (key, value) returned rather than a
// raw slice index: an index survives only until the next Put/Delete
// reshuffles the table, but deleteKeysAbove deletes the row it is
// currently on and then calls Next, so Next has to re-locate "the row
// after the one just deleted" by value, not by a now-stale index.
type memCursor struct {
	tx      *memTx
	table   string
	pos     int
	last    memEntry
	hasLast bool
}

func (c *memCursor) rows() []memEntry { return c.tx.tables[c.table] }

func (c *memCursor) setPos(rows []memEntry, i int) ([]byte, []byte, error) {
	c.pos = i
	if i < 0 || i >= len(rows) {
		c.hasLast = false
		return nil, nil, nil
	}
	c.last = rows[i]
	c.hasLast = true
	return rows[i].key, rows[i].value, nil
}

func (c *memCursor) Seek(key []byte) ([]byte, []byte, error) {
	rows := c.rows()
	i := sort.Search(len(rows), func(i int) bool { return bytes.Compare(rows[i].key, key) >= 0 })
	return c.setPos(rows, i)
}

func (c *memCursor) SeekExact(key []byte) ([]byte, bool, error) {
	_, v, err := c.Seek(key)
	if err != nil || v == nil {
		return nil, false, err
	}
	if !bytes.Equal(c.last.key, key) {
		return nil, false, nil
	}
	return v, true, nil
}

// Next advances past the last row this cursor returned, re-locating it by
// value so an intervening Delete of that exact row (deleteKeysAbove) still
// lands on the row that now occupies its place rather than skipping it.
func (c *memCursor) Next() ([]byte, []byte, error) {
	rows := c.rows()
	if !c.hasLast {
		return c.setPos(rows, c.pos+1)
	}
	i := sort.Search(len(rows), func(i int) bool { return cmpEntry(rows[i], c.last) > 0 })
	return c.setPos(rows, i)
}

func (c *memCursor) Prev() ([]byte, []byte, error) {
	rows := c.rows()
	if !c.hasLast {
		return c.setPos(rows, c.pos-1)
	}
	i := sort.Search(len(rows), func(i int) bool { return cmpEntry(rows[i], c.last) >= 0 })
	return c.setPos(rows, i-1)
}

func (c *memCursor) First() ([]byte, []byte, error) {
	return c.setPos(c.rows(), 0)
}

func (c *memCursor) Last() ([]byte, []byte, error) {
	rows := c.rows()
	return c.setPos(rows, len(rows)-1)
}

func (c *memCursor) Close() {}

// SeekBothRange finds the first row at or after (key, value), considering
// only rows whose key matches exactly.
func (c *memCursor) SeekBothRange(key, value []byte) ([]byte, error) {
	rows := c.rows()
	target := memEntry{key: key, value: value}
	i := sort.Search(len(rows), func(i int) bool { return cmpEntry(rows[i], target) >= 0 })
	if i >= len(rows) || !bytes.Equal(rows[i].key, key) {
		c.setPos(rows, i)
		return nil, nil
	}
	_, v, err := c.setPos(rows, i)
	return v, err
}

func (c *memCursor) NextDup() ([]byte, []byte, error) {
	if !c.hasLast {
		return nil, nil, nil
	}
	rows := c.rows()
	if c.pos < 0 || c.pos+1 >= len(rows) || !bytes.Equal(rows[c.pos].key, rows[c.pos+1].key) {
		return nil, nil, nil
	}
	return c.setPos(rows, c.pos+1)
}

func (c *memCursor) NextNoDup() ([]byte, []byte, error) {
	if !c.hasLast {
		return c.Next()
	}
	rows := c.rows()
	key := rows[c.pos].key
	for c.pos+1 < len(rows) && bytes.Equal(rows[c.pos+1].key, key) {
		c.pos++
		c.last = rows[c.pos]
	}
	return c.Next()
}

func kindOf(table string) TableKind {
	for _, s := range Schema {
		if s.Name == table {
			return s.Kind
		}
	}
	return Simple
}
