// Package luatag runs a user-supplied Lua hook over primitive tags before
// matching. A hook script defines
//
//	function transform(kind, tags) ... end
//
// where kind is "area", "node" or "way" and tags is a string table. The
// function returns a replacement tag table, or nil to drop the primitive.
package luatag

import (
	"fmt"

	"github.com/paulmach/osm"
	lua "github.com/yuin/gopher-lua"

	"github.com/wegman-software/osm2tiles-go/internal/source"
)

// Hook wraps one Lua interpreter with a loaded transform function. A Hook
// is not safe for concurrent use.
type Hook struct {
	L  *lua.LState
	fn lua.LValue
}

// NewHookFromFile loads a hook script from a file.
func NewHookFromFile(path string) (*Hook, error) {
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load Lua hook: %w", err)
	}
	return newHook(L)
}

// NewHookFromString loads a hook script from source text.
func NewHookFromString(code string) (*Hook, error) {
	L := lua.NewState()
	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load Lua hook: %w", err)
	}
	return newHook(L)
}

func newHook(L *lua.LState) (*Hook, error) {
	fn := L.GetGlobal("transform")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("hook script does not define a transform function")
	}
	return &Hook{L: L, fn: fn}, nil
}

// Close releases the interpreter.
func (h *Hook) Close() {
	h.L.Close()
}

// Transform runs the hook over one tag set. It returns the replacement
// tags and whether the primitive is kept.
func (h *Hook) Transform(kind string, tags osm.Tags) (osm.Tags, bool, error) {
	L := h.L

	tagsTbl := L.NewTable()
	for _, t := range tags {
		tagsTbl.RawSetString(t.Key, lua.LString(t.Value))
	}

	if err := L.CallByParam(lua.P{
		Fn:      h.fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(kind), tagsTbl); err != nil {
		return nil, false, fmt.Errorf("lua hook error: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, false, nil
	case *lua.LTable:
		var out osm.Tags
		v.ForEach(func(key, value lua.LValue) {
			if key.Type() != lua.LTString {
				return
			}
			out = append(out, osm.Tag{
				Key:   string(key.(lua.LString)),
				Value: lua.LVAsString(value),
			})
		})
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("transform returned %s, want table or nil", ret.Type())
	}
}

// Filter wraps a primitive scanner and applies the hook to every tag set.
// Primitives the hook drops never reach the consumer.
type Filter struct {
	inner source.Scanner
	hook  *Hook
	cur   source.Primitive
	err   error
}

// NewFilter wraps sc with the hook.
func NewFilter(sc source.Scanner, hook *Hook) *Filter {
	return &Filter{inner: sc, hook: hook}
}

func (f *Filter) Scan() bool {
	if f.err != nil {
		return false
	}
	for f.inner.Scan() {
		p, keep, err := f.apply(f.inner.Primitive())
		if err != nil {
			f.err = err
			return false
		}
		if keep {
			f.cur = p
			return true
		}
	}
	return false
}

func (f *Filter) apply(p source.Primitive) (source.Primitive, bool, error) {
	switch v := p.(type) {
	case *source.Area:
		tags, keep, err := f.hook.Transform("area", v.Tags)
		if err != nil || !keep {
			return nil, false, err
		}
		v.Tags = tags
		return v, true, nil
	case *source.Node:
		tags, keep, err := f.hook.Transform("node", v.Tags)
		if err != nil || !keep {
			return nil, false, err
		}
		v.Tags = tags
		return v, true, nil
	case *source.Way:
		tags, keep, err := f.hook.Transform("way", v.Tags)
		if err != nil || !keep {
			return nil, false, err
		}
		v.Tags = tags
		return v, true, nil
	default:
		return p, true, nil
	}
}

func (f *Filter) Primitive() source.Primitive { return f.cur }

func (f *Filter) Err() error {
	if f.err != nil {
		return f.err
	}
	return f.inner.Err()
}

func (f *Filter) Close() error {
	f.hook.Close()
	return f.inner.Close()
}
