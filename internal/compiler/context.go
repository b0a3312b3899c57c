package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

// ValidationErrorCode is stored in an error scope's code variable when a
// runtime check fails inside the scope.
const ValidationErrorCode = 11

const indentUnit = "    "

type frameKind int

const (
	frameConditional frameKind = iota // IF ... BEGIN opened by a Block
	frameGuard                        // ELSE BEGIN opened by a failed-check guard
	frameScope                        // error scope marker, emits no text
)

type frame struct {
	kind    frameKind
	guarded bool // a guard was opened directly inside this frame
}

type declaration struct {
	name string
	typ  ir.FormulaType
	sql  string
	init string
}

// Parameter is a function parameter bound to a row-scope column.
type Parameter struct {
	Name    string
	SQLType string
	Column  *metadata.Column
}

// Context accumulates the statement batch for one compilation.
//
// Declarations are hoisted and kept structured so a declared type can be
// changed once after its first use. Body lines are append-only. Every
// temporary gets a fresh name from a single counter.
type Context struct {
	opts  *options
	md    metadata.Provider
	table *metadata.Table
	flow  ir.FormulaType

	params   []Parameter
	decls    []*declaration
	prologue []string
	lines    []string

	temps     int
	frames    []*frame
	errScopes []*ErrorScope

	cache    map[ir.Node]cached
	registry map[string]*metadata.Column
	fields   map[string]RetVal
}

func (d *declaration) render() string {
	if d.init != "" {
		return fmt.Sprintf("DECLARE %s %s = %s", d.name, d.sql, d.init)
	}
	return fmt.Sprintf("DECLARE %s %s", d.name, d.sql)
}

func newContext(md metadata.Provider, opts *options) (*Context, error) {
	c := &Context{
		opts:     opts,
		md:       md,
		flow:     ir.TypeDecimal,
		cache:    make(map[ir.Node]cached),
		registry: make(map[string]*metadata.Column),
		fields:   make(map[string]RetVal),
	}
	if opts.float {
		c.flow = ir.TypeNumber
	}
	if opts.table != "" {
		if md == nil {
			return nil, fmt.Errorf("row scope %q needs metadata", opts.table)
		}
		t, ok := md.Table(opts.table)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", opts.table)
		}
		c.table = t
	}
	return c, nil
}

// Flow returns the numeric flow type selected for this compilation.
func (c *Context) Flow() ir.FormulaType {
	return c.flow
}

func (c *Context) nextName(prefix string) string {
	name := fmt.Sprintf("@%s%d", prefix, c.temps)
	c.temps++
	return name
}

// NewTemp declares a fresh variable of type t.
func (c *Context) NewTemp(t ir.FormulaType) RetVal {
	sql, ok := c.sqlType(t)
	if !ok {
		sql = sqlDecimal
	}
	if t.Kind == ir.KindBlank {
		t = c.flow
	}
	name := c.nextName("v")
	c.decls = append(c.decls, &declaration{name: name, typ: t, sql: sql})
	return varVal(name, t)
}

// newIntVar declares an int working variable that never escapes a rule.
func (c *Context) newIntVar() string {
	name := c.nextName("v")
	c.decls = append(c.decls, &declaration{name: name, sql: sqlInt})
	return name
}

func (c *Context) declaration(name string) *declaration {
	for _, d := range c.decls {
		if d.name == name {
			return d
		}
	}
	return nil
}

// retype changes the declared type of a variable created by NewTemp.
func (c *Context) retype(name string, t ir.FormulaType) {
	d := c.declaration(name)
	if d == nil {
		return
	}
	if sql, ok := c.sqlType(t); ok {
		d.sql = sql
	}
	d.typ = t
}

func (c *Context) depth() int {
	n := 0
	for _, f := range c.frames {
		if f.kind != frameScope {
			n++
		}
	}
	return n
}

func (c *Context) emitAt(depth int, format string, args ...any) {
	line := format
	if len(args) > 0 {
		line = fmt.Sprintf(format, args...)
	}
	c.lines = append(c.lines, strings.Repeat(indentUnit, depth)+line)
}

// Emit appends one statement at the current nesting depth.
func (c *Context) Emit(format string, args ...any) {
	c.emitAt(c.depth(), format, args...)
}

// Set assigns expr to the variable v.
func (c *Context) Set(v RetVal, expr string) {
	c.Emit("SET %s = %s", v.text, expr)
}

// Assign declares a temporary of type t holding expr.
func (c *Context) Assign(t ir.FormulaType, expr string) RetVal {
	v := c.NewTemp(t)
	c.Set(v, expr)
	return v
}

// Materialize stores v in a variable unless it already is one or is a
// constant, so it can be referenced repeatedly.
func (c *Context) Materialize(v RetVal) RetVal {
	if v.isVar || v.literal != nil {
		return v
	}
	return c.Assign(v.typ, v.text)
}

func (c *Context) push(kind frameKind) *frame {
	f := &frame{kind: kind}
	c.frames = append(c.frames, f)
	return f
}

// popTo closes every frame above f, emitting END for the textual ones.
// f itself stays open. A nil f closes everything.
func (c *Context) popTo(f *frame) {
	for len(c.frames) > 0 {
		top := c.frames[len(c.frames)-1]
		if top == f {
			return
		}
		c.frames = c.frames[:len(c.frames)-1]
		if top.kind != frameScope {
			c.emitAt(c.depth(), "END")
		}
	}
}

func (c *Context) isOpen(f *frame) bool {
	for _, open := range c.frames {
		if open == f {
			return true
		}
	}
	return false
}

// Block is an open IF region. Close it exactly once, typically deferred;
// further calls are no-ops.
type Block struct {
	c      *Context
	f      *frame
	closed bool
}

// If opens a conditional region executed when cond holds.
func (c *Context) If(cond string) *Block {
	c.Emit("IF(%s) BEGIN", cond)
	return &Block{c: c, f: c.push(frameConditional)}
}

// While opens a loop region executed while cond holds. Loop bodies must
// not contain guards.
func (c *Context) While(cond string) *Block {
	c.Emit("WHILE(%s) BEGIN", cond)
	return &Block{c: c, f: c.push(frameConditional)}
}

// ElseIf switches to a region guarded by an inline condition. cond must
// not depend on statements emitted inside the block.
func (b *Block) ElseIf(cond string) {
	b.next()
	b.c.emitAt(b.c.depth()-1, "END ELSE IF(%s) BEGIN", cond)
}

// Else switches to the region executed when no condition held.
func (b *Block) Else() {
	b.next()
	b.c.emitAt(b.c.depth()-1, "END ELSE BEGIN")
}

// next replaces the block's frame so results cached in the previous
// branch are not visible in the next one.
func (b *Block) next() {
	b.c.popTo(b.f)
	f := &frame{kind: frameConditional, guarded: b.f.guarded}
	b.c.frames[len(b.c.frames)-1] = f
	b.f = f
}

// Close ends the block, first closing any guard regions opened inside it.
//
// When a failed check inside the block stored an error code, the code
// after the block must still be skipped, so a fresh region conditioned on
// the scope's code being clear is opened in the enclosing frame.
func (b *Block) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if !b.c.isOpen(b.f) {
		return
	}
	b.c.popTo(b.f)
	b.c.frames = b.c.frames[:len(b.c.frames)-1]
	b.c.Emit("END")

	if b.f.guarded {
		if s := b.c.currentScope(); s != nil {
			b.c.Emit("IF(%s = 0) BEGIN", s.code)
			b.c.markGuarded(s)
			b.c.push(frameGuard)
		}
	}
}

// markGuarded records that a guard region for s was opened in the
// innermost textual frame, unless s was opened inside that frame.
func (c *Context) markGuarded(s *ErrorScope) {
	for i := len(c.frames) - 1; i >= 0; i-- {
		switch f := c.frames[i]; {
		case f == s.f:
			return
		case f.kind != frameScope:
			f.guarded = true
			return
		}
	}
}

// ErrorScope routes failed runtime checks to an int code variable instead
// of aborting the function.
type ErrorScope struct {
	c      *Context
	code   string
	f      *frame
	closed bool
}

// OpenErrorScope starts capturing failed checks.
func (c *Context) OpenErrorScope() *ErrorScope {
	name := c.nextName("e")
	c.decls = append(c.decls, &declaration{name: name, sql: sqlInt, init: "0"})
	s := &ErrorScope{c: c, code: name, f: c.push(frameScope)}
	c.errScopes = append(c.errScopes, s)
	return s
}

func (c *Context) currentScope() *ErrorScope {
	if len(c.errScopes) == 0 {
		return nil
	}
	return c.errScopes[len(c.errScopes)-1]
}

// Code returns the scope's error code variable.
func (s *ErrorScope) Code() string { return s.code }

// Failed returns a condition that holds when a check inside the scope
// failed.
func (s *ErrorScope) Failed() string { return s.code + " <> 0" }

// Close ends the scope, closing the guard regions it opened.
func (s *ErrorScope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	c := s.c
	if c.isOpen(s.f) {
		c.popTo(s.f)
		c.frames = c.frames[:len(c.frames)-1]
	}
	for i := len(c.errScopes) - 1; i >= 0; i-- {
		if c.errScopes[i] == s {
			c.errScopes = append(c.errScopes[:i], c.errScopes[i+1:]...)
			break
		}
	}
}

// Guard emits a runtime check: when cond holds, evaluation fails. Inside
// an error scope the failure sets the scope's code and the rest of the
// scope runs in the ELSE region; outside one the function returns NULL.
func (c *Context) Guard(cond string) {
	if s := c.currentScope(); s != nil {
		c.Emit("IF(%s) BEGIN SET %s = %d END ELSE BEGIN", cond, s.code, ValidationErrorCode)
		c.markGuarded(s)
		c.push(frameGuard)
		return
	}
	c.Emit("IF(%s) BEGIN RETURN NULL END", cond)
}

// closeAll ends every open region.
func (c *Context) closeAll() {
	c.popTo(nil)
	c.errScopes = nil
}

// cached is a translated node and the region it was assigned in. The
// variable is only known to hold the value while that region is open.
type cached struct {
	v      RetVal
	region *frame
}

func (c *Context) region() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// SetIntermediate caches the translation of n so later references reuse
// it instead of re-emitting code.
func (c *Context) SetIntermediate(n ir.Node, v RetVal) {
	c.cache[n] = cached{v: v, region: c.region()}
}

// Intermediate returns the cached translation of n when it is still
// visible from the current region.
func (c *Context) Intermediate(n ir.Node) (RetVal, bool) {
	e, ok := c.cache[n]
	if !ok {
		return RetVal{}, false
	}
	if e.region != nil && !c.isOpen(e.region) {
		delete(c.cache, n)
		return RetVal{}, false
	}
	return e.v, true
}

// Column returns the metadata column a variable was read from.
func (c *Context) Column(v RetVal) (*metadata.Column, bool) {
	if !v.isVar {
		return nil, false
	}
	col, ok := c.registry[v.text]
	return col, ok
}

// columnParam binds a row-scope column to a function parameter, reusing
// the parameter on later references.
func (c *Context) columnParam(col *metadata.Column) RetVal {
	if v, ok := c.fields[col.Name]; ok {
		return v
	}
	t := col.Type
	sql, _ := c.sqlType(t)
	if col.IsLookup() {
		sql = sqlGuid
	}
	name := c.nextName("v")
	c.params = append(c.params, Parameter{Name: name, SQLType: sql, Column: col})
	v := varVal(name, t)
	c.fields[col.Name] = v
	c.registry[name] = col
	return v
}

// lookupField reads a column of the row a lookup parameter points to.
// The read goes to the prologue so every branch sees it.
func (c *Context) lookupField(key RetVal, target *metadata.Table, col *metadata.Column) RetVal {
	cacheKey := key.text + "." + col.Name
	if v, ok := c.fields[cacheKey]; ok {
		return v
	}
	pk, _ := target.Column(target.PrimaryKey)
	v := c.NewTemp(col.Type)
	c.prologue = append(c.prologue, fmt.Sprintf("SELECT TOP(1) %s = %s FROM %s WHERE %s = %s",
		v.text, quoteIdent(col.Physical), tableRef(target.Physical), quoteIdent(pk.Physical), key.text))
	c.fields[cacheKey] = v
	c.registry[v.text] = col
	return v
}
