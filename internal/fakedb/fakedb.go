// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb provides an in-memory database/sql driver, named "fakedb",
// serving canned rows to queries and recording executed statements.
package fakedb // import "github.com/go-lpc/optics/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// Name is the name the driver is registered with.
const Name = "fakedb"

var query struct {
	mu   sync.Mutex
	rows Rows
	err  error
}

var exec struct {
	mu    sync.Mutex
	stmts []Exec
	err   error
}

// Exec is a statement executed through the driver.
type Exec struct {
	Query string
	Args  []driver.Value
}

// Run runs f while queries return rows.
// Statements executed by f are recorded and can be retrieved with Execs.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	query.mu.Lock()
	defer query.mu.Unlock()
	query.rows = rows
	query.err = nil
	defer func() { query.rows = Rows{} }()

	exec.mu.Lock()
	exec.stmts = nil
	exec.err = nil
	exec.mu.Unlock()

	return f(ctx)
}

// RunError runs f while queries and statements fail with err.
func RunError(ctx context.Context, err error, f func(ctx context.Context) error) error {
	query.mu.Lock()
	defer query.mu.Unlock()
	query.rows = Rows{}
	query.err = err
	defer func() { query.err = nil }()

	exec.mu.Lock()
	exec.stmts = nil
	exec.err = err
	exec.mu.Unlock()
	defer func() {
		exec.mu.Lock()
		exec.err = nil
		exec.mu.Unlock()
	}()

	return f(ctx)
}

// Execs returns the statements executed during the last Run.
func Execs() []Exec {
	exec.mu.Lock()
	defer exec.mu.Unlock()
	return append([]Exec(nil), exec.stmts...)
}

func init() {
	sql.Register(Name, &Driver{})
}

type Driver struct{}

func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	return nil, errors.New("fakedb: transactions not supported")
}

type Stmt struct {
	query string
}

func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns -1: argument counts are not checked.
func (stmt *Stmt) NumInput() int {
	return -1
}

func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	exec.mu.Lock()
	defer exec.mu.Unlock()
	if exec.err != nil {
		return nil, exec.err
	}
	exec.stmts = append(exec.stmts, Exec{
		Query: stmt.query,
		Args:  append([]driver.Value(nil), args...),
	})
	return driver.RowsAffected(1), nil
}

func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	if query.err != nil {
		return nil, query.err
	}
	return &query.rows, nil
}

// Rows is a canned result set.
type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string {
	return rows.Names
}

func (rows *Rows) Close() error {
	return nil
}

func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
