package tdp

// Context is the read-only view of decoder state an Observer callback
// receives (spec §6 "Observer interface").
type Context struct {
	entities      *Entities
	stringTables  *StringTables
	tick          uint32
}

// Entities returns the live entity table.
func (c *Context) Entities() *Entities { return c.entities }

// StringTables returns the string-table set.
func (c *Context) StringTables() *StringTables { return c.stringTables }

// Tick returns the current tick number.
func (c *Context) Tick() uint32 { return c.tick }

// Observer is the consumer-facing callback set (spec §6). All callbacks are
// invoked synchronously on the decoder's thread (spec §5); an Observer must
// not mutate the entity table and should return promptly.
type Observer interface {
	OnSchemaLoaded(ctx *Context, schema *Schema)
	OnTickStart(ctx *Context, tick uint32)
	OnEntity(ctx *Context, kind EventKind, entity *Entity)
	OnStringTableChanged(ctx *Context, table *StringTable, keys []string)
	OnTickEnd(ctx *Context, tick uint32)
}

// BaseObserver implements Observer with no-ops, so callers can embed it and
// override only the callbacks they need.
type BaseObserver struct{}

func (BaseObserver) OnSchemaLoaded(*Context, *Schema)                       {}
func (BaseObserver) OnTickStart(*Context, uint32)                           {}
func (BaseObserver) OnEntity(*Context, EventKind, *Entity)                  {}
func (BaseObserver) OnStringTableChanged(*Context, *StringTable, []string) {}
func (BaseObserver) OnTickEnd(*Context, uint32)                             {}

var _ Observer = BaseObserver{}
