// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package luatype defines extension field types whose extra validation is
// written in Lua. An extension type reuses a built-in base type for casting
// and querying, and runs the script's validate(value, options) function
// once the base validator accepts the value.
//
// validate returns nil or a list of errors. Each error is a code string or
// a {code, {key = value}} pair:
//
//	function validate(value, options)
//	  if value ~= nil and value % 2 ~= 0 then
//	    return { { "not_even", { value = value } } }
//	  end
//	end
//
// Scripts run in a fresh sandboxed state per call with only the base,
// table, string and math libraries.
package luatype

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/customfields/customfields/internal/fieldtype"
	"github.com/customfields/customfields/internal/validate"
)

// DefaultTimeout bounds a single validate call.
const DefaultTimeout = 250 * time.Millisecond

const entryPoint = "validate"

// ErrNoEntryPoint indicates a script without a global validate function.
var ErrNoEntryPoint = errors.New("script does not define validate(value, options)")

// Definition declares an extension type. Options lists option keys the
// script reads in addition to those of the base type.
type Definition struct {
	ID      string
	Base    string
	Script  string
	Options []string
	Timeout time.Duration
}

// Compile builds the descriptor for def on top of its base type in reg.
// The script is compiled once and checked for a validate function.
func Compile(reg *fieldtype.Registry, def Definition) (fieldtype.Descriptor, error) {
	if strings.TrimSpace(def.ID) == "" {
		return fieldtype.Descriptor{}, fieldtype.ErrInvalidTypeID
	}
	base, err := reg.Resolve(def.Base)
	if err != nil {
		return fieldtype.Descriptor{}, oops.In("luatype").With("type_id", def.ID).Wrap(err)
	}

	chunk, err := parse.Parse(strings.NewReader(def.Script), def.ID)
	if err != nil {
		return fieldtype.Descriptor{}, oops.In("luatype").
			Code("INVALID_SCRIPT").
			With("type_id", def.ID).
			Hint("syntax error").
			Wrap(err)
	}
	proto, err := lua.Compile(chunk, def.ID)
	if err != nil {
		return fieldtype.Descriptor{}, oops.In("luatype").
			Code("INVALID_SCRIPT").
			With("type_id", def.ID).
			Wrap(err)
	}

	s := &script{id: def.ID, proto: proto, timeout: def.Timeout}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if err := s.checkEntryPoint(); err != nil {
		return fieldtype.Descriptor{}, err
	}

	d := base
	d.ID = def.ID
	d.Validator = func(opts fieldtype.Options) validate.Validator {
		return validate.Then(
			base.NewValidator(opts),
			validate.Custom(func(value any) []any { return s.run(value, opts) }),
		)
	}
	d.Check = func(opts fieldtype.Options) []validate.Error {
		var errs []validate.Error
		for _, e := range base.CheckOptions(opts) {
			opt, _ := e.Context["option"].(string)
			if e.Code == validate.CodeNotAllowed && slices.Contains(def.Options, opt) {
				continue
			}
			errs = append(errs, e)
		}
		return errs
	}
	return d, nil
}

// Register compiles def and registers it in reg.
func Register(reg *fieldtype.Registry, def Definition) error {
	d, err := Compile(reg, def)
	if err != nil {
		return err
	}
	return reg.Register(d)
}

type script struct {
	id      string
	proto   *lua.FunctionProto
	timeout time.Duration
}

// load runs the compiled chunk in a fresh state and returns the state and
// its validate function.
func (s *script) load(ctx context.Context) (*lua.LState, lua.LValue, error) {
	L, err := newState(ctx)
	if err != nil {
		return nil, nil, err
	}
	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, nil, oops.In("luatype").
			Code("SCRIPT_FAILED").
			With("type_id", s.id).
			Wrap(err)
	}
	fn := L.GetGlobal(entryPoint)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, nil, oops.In("luatype").
			Code("INVALID_SCRIPT").
			With("type_id", s.id).
			Wrap(ErrNoEntryPoint)
	}
	return L, fn, nil
}

func (s *script) checkEntryPoint() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	L, _, err := s.load(ctx)
	if err != nil {
		return err
	}
	L.Close()
	return nil
}

// run calls validate(value, options). Script failures are programming
// errors and panic, like malformed error shapes do in validate.Custom.
func (s *script) run(value any, opts fieldtype.Options) []any {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	L, fn, err := s.load(ctx)
	if err != nil {
		panic(err)
	}
	defer L.Close()

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, toLua(L, value), toLua(L, map[string]any(opts))); err != nil {
		panic(oops.In("luatype").
			Code("SCRIPT_FAILED").
			With("type_id", s.id).
			Wrap(err))
	}
	ret := L.Get(-1)
	L.Pop(1)

	out := fromLua(ret)
	switch list := out.(type) {
	case nil:
		return nil
	case []any:
		return list
	case map[string]any:
		if len(list) == 0 {
			return nil
		}
	}
	return []any{out}
}
