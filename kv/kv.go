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

import "context"

// Stat reports per-table size bookkeeping, mirroring mdbx_stat.
type Stat struct {
	Entries    uint64
	PageSize   uint32
	Depth      uint32
	LeafPages  uint64
	BranchPages uint64
}

// Getter is the read-only subset of a transaction's table access.
type Getter interface {
	Get(table string, key []byte) (value []byte, found bool, err error)
	Cursor(table string) (Cursor, error)
	CursorDupSort(table string) (CursorDupSort, error)
	EntriesCount(table string) (uint64, error)
	Stat(table string) (Stat, error)
}

// Putter is the write subset of a transaction's table access.
type Putter interface {
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
	// DeleteExact removes a single dup-sort (key, value) pair from a DupSort
	// table, leaving the key's other duplicate values intact. On a Simple
	// table it behaves like Delete.
	DeleteExact(table string, key, value []byte) error
	Clear(table string) error
}

// Tx is a single read transaction, or the read half of a read-write
// transaction.
type Tx interface {
	Getter
	Commit() error
	Rollback() error
}

// RwTx is a read-write transaction; the storage engine allows only one
// concurrent RwTx at a time.
type RwTx interface {
	Tx
	Putter
}

// Cursor supports forward iteration over a Simple table.
type Cursor interface {
	Seek(key []byte) (k, v []byte, err error)
	SeekExact(key []byte) (v []byte, found bool, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	First() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Close()
}

// CursorDupSort additionally supports per-key secondary ordering over
// values, for DupSort tables.
type CursorDupSort interface {
	Cursor
	SeekBothRange(key, value []byte) (v []byte, err error)
	NextDup() (k, v []byte, err error)
	NextNoDup() (k, v []byte, err error)
}

// DB is the opened database handle; BeginRo/BeginRw start transactions.
// Implemented by kv/mdbx.go against github.com/erigontech/mdbx-go.
type DB interface {
	BeginRo(ctx context.Context) (Tx, error)
	BeginRw(ctx context.Context) (RwTx, error)
	Close() error
}

// Update runs fn inside a single read-write transaction, committing on nil
// error and rolling back otherwise, the standard
// `db.Update(ctx, func(tx kv.RwTx) error {...})` idiom.
func Update(ctx context.Context, db DB, fn func(tx RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// View runs fn inside a read-only transaction.
func View(ctx context.Context, db DB, fn func(tx Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}
