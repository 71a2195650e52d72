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
	"context"
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
)

// mdbxDB backs the DB interface with libmdbx. One DBI is opened per
// Schema entry at construction time; DupSort tables get mdbx.DupSort.
type mdbxDB struct {
	env  *mdbx.Env
	dbis map[string]mdbx.DBI
}

// Open opens (creating if absent) an mdbx environment at path and registers
// every table in Schema.
func Open(path string, maxReaders int) (DB, error) {
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, err
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(Schema))); err != nil {
		return nil, err
	}
	if err := env.SetOption(mdbx.OptMaxReaders, uint64(maxReaders)); err != nil {
		return nil, err
	}
	if err := env.Open(path, mdbx.NoTLS, 0o644); err != nil {
		return nil, fmt.Errorf("kv: opening mdbx env at %s: %w", path, err)
	}

	d := &mdbxDB{env: env, dbis: make(map[string]mdbx.DBI, len(Schema))}
	err = env.Update(func(txn *mdbx.Txn) error {
		for _, t := range Schema {
			flags := uint(mdbx.Create)
			if t.Kind == DupSort {
				flags |= uint(mdbx.DupSort)
			}
			dbi, err := txn.OpenDBISimple(t.Name, flags)
			if err != nil {
				return fmt.Errorf("kv: opening table %s: %w", t.Name, err)
			}
			d.dbis[t.Name] = dbi
		}
		return nil
	})
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	return d, nil
}

func (d *mdbxDB) BeginRo(ctx context.Context) (Tx, error) {
	txn, err := d.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, err
	}
	return &mdbxTx{txn: txn, dbis: d.dbis}, nil
}

func (d *mdbxDB) BeginRw(ctx context.Context) (RwTx, error) {
	txn, err := d.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, err
	}
	return &mdbxTx{txn: txn, dbis: d.dbis}, nil
}

func (d *mdbxDB) Close() error {
	d.env.Close()
	return nil
}

type mdbxTx struct {
	txn  *mdbx.Txn
	dbis map[string]mdbx.DBI
}

func (t *mdbxTx) dbi(table string) (mdbx.DBI, error) {
	dbi, ok := t.dbis[table]
	if !ok {
		return 0, fmt.Errorf("kv: unknown table %q", table)
	}
	return dbi, nil
}

func (t *mdbxTx) Get(table string, key []byte) ([]byte, bool, error) {
	dbi, err := t.dbi(table)
	if err != nil {
		return nil, false, err
	}
	v, err := t.txn.Get(dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *mdbxTx) Put(table string, key, value []byte) error {
	dbi, err := t.dbi(table)
	if err != nil {
		return err
	}
	return t.txn.Put(dbi, key, value, 0)
}

func (t *mdbxTx) Delete(table string, key []byte) error {
	dbi, err := t.dbi(table)
	if err != nil {
		return err
	}
	return t.txn.Del(dbi, key, nil)
}

// DeleteExact deletes only the (key, value) dup-sort pair given, not the
// whole key's duplicate set — passing a nil mdbx data pointer (as Delete
// does) removes every duplicate for key, which UnwindTo must avoid.
func (t *mdbxTx) DeleteExact(table string, key, value []byte) error {
	dbi, err := t.dbi(table)
	if err != nil {
		return err
	}
	return t.txn.Del(dbi, key, value)
}

func (t *mdbxTx) Clear(table string) error {
	dbi, err := t.dbi(table)
	if err != nil {
		return err
	}
	return t.txn.Drop(dbi, false)
}

func (t *mdbxTx) EntriesCount(table string) (uint64, error) {
	st, err := t.Stat(table)
	if err != nil {
		return 0, err
	}
	return st.Entries, nil
}

func (t *mdbxTx) Stat(table string) (Stat, error) {
	dbi, err := t.dbi(table)
	if err != nil {
		return Stat{}, err
	}
	st, err := t.txn.StatDBI(dbi)
	if err != nil {
		return Stat{}, err
	}
	return Stat{
		Entries:     st.Entries,
		PageSize:    st.PSize,
		Depth:       uint32(st.Depth),
		LeafPages:   st.LeafPages,
		BranchPages: st.BranchPages,
	}, nil
}

func (t *mdbxTx) Cursor(table string) (Cursor, error) {
	dbi, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, err
	}
	return &mdbxCursor{c: c}, nil
}

func (t *mdbxTx) CursorDupSort(table string) (CursorDupSort, error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, err
	}
	return &mdbxCursor{c: c.(*mdbxCursor).c}, nil
}

func (t *mdbxTx) Commit() error {
	_, err := t.txn.Commit()
	return err
}

func (t *mdbxTx) Rollback() error {
	t.txn.Abort()
	return nil
}

type mdbxCursor struct {
	c *mdbx.Cursor
}

func (c *mdbxCursor) Seek(key []byte) (k, v []byte, err error) {
	return c.c.Get(key, nil, mdbx.SetRange)
}

func (c *mdbxCursor) SeekExact(key []byte) ([]byte, bool, error) {
	_, v, err := c.c.Get(key, nil, mdbx.Set)
	if mdbx.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *mdbxCursor) Next() (k, v []byte, err error) { return c.c.Get(nil, nil, mdbx.Next) }
func (c *mdbxCursor) Prev() (k, v []byte, err error) { return c.c.Get(nil, nil, mdbx.Prev) }
func (c *mdbxCursor) First() (k, v []byte, err error) { return c.c.Get(nil, nil, mdbx.First) }
func (c *mdbxCursor) Last() (k, v []byte, err error)  { return c.c.Get(nil, nil, mdbx.Last) }
func (c *mdbxCursor) Close()                          { c.c.Close() }

func (c *mdbxCursor) SeekBothRange(key, value []byte) (v []byte, err error) {
	_, v, err = c.c.Get(key, value, mdbx.GetBothRange)
	return v, err
}
func (c *mdbxCursor) NextDup() (k, v []byte, err error)   { return c.c.Get(nil, nil, mdbx.NextDup) }
func (c *mdbxCursor) NextNoDup() (k, v []byte, err error) { return c.c.Get(nil, nil, mdbx.NextNoDup) }
