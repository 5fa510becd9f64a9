// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugcmd

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"math"
	"runtime"
	"sort"
	"strconv"
)

// Bind registers a named value visible to expressions. value is called
// once per command whose expression references name and must return a
// bool, string, or any integer or floating-point type. Rebinding a
// name replaces the previous binding. Names that are command verbs or
// aliases are rejected, since a command starting with them is routed
// to the verb.
func (d *Dispatcher) Bind(name string, value func() any) error {
	if !token.IsIdentifier(name) {
		return fmt.Errorf("binding name %q is not a Go identifier", name)
	}
	if isVerbName(name) {
		return fmt.Errorf("binding name %q is a command name", name)
	}
	if value == nil {
		return fmt.Errorf("binding %q has a nil value function", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings[name] = value
	return nil
}

// Bindings returns the registered binding names, sorted.
func (d *Dispatcher) Bindings() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.bindings))
	for name := range d.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) registerBuiltinBindings() {
	d.bindings["pid"] = func() any { return d.pid() }
	d.bindings["num_goroutines"] = func() any { return runtime.NumGoroutine() }
	d.bindings["cpus"] = func() any { return runtime.NumCPU() }
	d.bindings["uptime_seconds"] = func() any {
		return d.clock.Now().Sub(d.started).Seconds()
	}
	d.bindings["heap_alloc"] = func() any {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		return stats.HeapAlloc
	}
}

// evaluate parses and type-checks source as a Go constant expression
// in a package scope built fresh for this command.
func (d *Dispatcher) evaluate(source string) (string, error) {
	if source == "" {
		return "", newError(KindSyntax, "empty expression")
	}

	fileSet := token.NewFileSet()
	expression, err := parser.ParseExprFrom(fileSet, "command", source, parser.SkipObjectResolution)
	if err != nil {
		return "", newError(KindSyntax, err.Error())
	}

	pkg, err := d.scope(referencedNames(expression))
	if err != nil {
		return "", err
	}

	info := &types.Info{Types: make(map[ast.Expr]types.TypeAndValue)}
	if err := types.CheckExpr(fileSet, pkg, token.NoPos, expression, info); err != nil {
		return "", newError(KindEvaluation, err.Error())
	}
	typeAndValue, ok := info.Types[expression]
	if !ok || typeAndValue.Value == nil {
		return "", newError(KindEvaluation, fmt.Sprintf("%s is not a constant expression", source))
	}
	return renderConstant(typeAndValue.Value), nil
}

// referencedNames returns every identifier appearing in expression.
func referencedNames(expression ast.Expr) map[string]bool {
	names := make(map[string]bool)
	ast.Inspect(expression, func(node ast.Node) bool {
		if ident, ok := node.(*ast.Ident); ok {
			names[ident.Name] = true
		}
		return true
	})
	return names
}

// scope snapshots the referenced bindings into untyped constants of a
// new package. Unreferenced bindings are never called: heap_alloc
// stops the world.
func (d *Dispatcher) scope(referenced map[string]bool) (*types.Package, error) {
	d.mu.RLock()
	bindings := make(map[string]func() any, len(referenced))
	for name := range referenced {
		if value, ok := d.bindings[name]; ok {
			bindings[name] = value
		}
	}
	d.mu.RUnlock()

	pkg := types.NewPackage("debug/command", "command")
	for name, value := range bindings {
		constantValue, basic, err := toConstant(value())
		if err != nil {
			return nil, newError(KindEvaluation, fmt.Sprintf("binding %s: %v", name, err))
		}
		pkg.Scope().Insert(types.NewConst(token.NoPos, pkg, name, types.Typ[basic], constantValue))
	}
	return pkg, nil
}

func toConstant(value any) (constant.Value, types.BasicKind, error) {
	switch v := value.(type) {
	case bool:
		return constant.MakeBool(v), types.UntypedBool, nil
	case string:
		return constant.MakeString(v), types.UntypedString, nil
	case int:
		return constant.MakeInt64(int64(v)), types.UntypedInt, nil
	case int8:
		return constant.MakeInt64(int64(v)), types.UntypedInt, nil
	case int16:
		return constant.MakeInt64(int64(v)), types.UntypedInt, nil
	case int32:
		return constant.MakeInt64(int64(v)), types.UntypedInt, nil
	case int64:
		return constant.MakeInt64(v), types.UntypedInt, nil
	case uint:
		return constant.MakeUint64(uint64(v)), types.UntypedInt, nil
	case uint8:
		return constant.MakeUint64(uint64(v)), types.UntypedInt, nil
	case uint16:
		return constant.MakeUint64(uint64(v)), types.UntypedInt, nil
	case uint32:
		return constant.MakeUint64(uint64(v)), types.UntypedInt, nil
	case uint64:
		return constant.MakeUint64(v), types.UntypedInt, nil
	case float32:
		return makeFloat(float64(v))
	case float64:
		return makeFloat(v)
	default:
		return nil, 0, fmt.Errorf("unsupported value type %T", value)
	}
}

func makeFloat(f float64) (constant.Value, types.BasicKind, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, 0, fmt.Errorf("value %v is not finite", f)
	}
	return constant.MakeFloat64(f), types.UntypedFloat, nil
}

// renderConstant prints integers exactly, floats in %g form, strings
// without quotes, and booleans as true/false.
func renderConstant(value constant.Value) string {
	switch value.Kind() {
	case constant.Int:
		return value.ExactString()
	case constant.Float:
		if f, _ := constant.Float64Val(value); !math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return value.String()
	case constant.String:
		return constant.StringVal(value)
	case constant.Bool:
		return strconv.FormatBool(constant.BoolVal(value))
	default:
		return value.String()
	}
}
