// Command std is the worked example of a conforming Dim package (spec
// §6): it is built as a Go plugin (`go build -buildmode=plugin`) and
// exports exactly one symbol, GetDefinitions, which publishes String,
// Any, List, STD, Math, and MathI definitions into the kernel's registry and
// receives the kernel's primitive API in return.
//
// Per the handshake contract, the function pointers received here are
// cached in this file's package-level variables — the package's own
// "module-local globals" — so the methods below can call back into the
// kernel without statically linking it.
package main

import (
	"fmt"
	"time"

	"github.com/SeaSharpy/Dim/internal/runtime/definition"
	"github.com/SeaSharpy/Dim/internal/runtime/instance"
	"github.com/SeaSharpy/Dim/internal/runtime/loader"
)

var rt loader.RuntimePrimitives

// stringData is the payload of a STD::String instance. The string
// content is unmanaged and never traced; the Go runtime reclaims its
// bytes, so the destructor has nothing to release.
type stringData struct {
	data string
}

// anyData is the payload of a STD::Any instance: a single managed
// field (the original's "f_0" / value) used to box another instance,
// e.g. for storage in a List.
type anyData struct {
	value *instance.Instance
}

// listData is the payload of a STD::List instance: a growable slice of
// boxed STD::Any pointers, all managed.
type listData struct {
	items []*instance.Instance
}

const (
	anyRefSize = 8 // advisory bytes per boxed element, for the allocation counter
)

func newString() any { return &stringData{} }

func freeString(data any) {
	// data.data is a Go string; the Go runtime's own GC reclaims its
	// backing bytes. There is nothing unmanaged to release by hand —
	// unlike the C original's malloc'd copy — so this is a no-op kept
	// for symmetry with the definition's Free slot.
	_ = data
}

func stringNew(s string) *instance.Instance {
	inst := rt.NewInstance("STD", "String")
	if inst == nil {
		return nil
	}

	inst.Data.(*stringData).data = s

	return inst
}

func stringValue(inst *instance.Instance) string {
	if inst == nil {
		return ""
	}

	sd, ok := inst.Data.(*stringData)
	if !ok || sd == nil {
		return ""
	}

	return sd.data
}

func stringConcat(a, b *instance.Instance) *instance.Instance {
	return stringNew(stringValue(a) + stringValue(b))
}

func stringLength(a *instance.Instance) int32 { return int32(len(stringValue(a))) }
func stringIsEmpty(a *instance.Instance) bool { return stringValue(a) == "" }
func stringEquals(a, b *instance.Instance) bool {
	return stringValue(a) == stringValue(b)
}

func stringCompare(a, b *instance.Instance) int32 {
	sa, sb := stringValue(a), stringValue(b)

	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func stringFromBool(v bool) *instance.Instance    { return stringNew(fmt.Sprintf("%t", v)) }
func stringFromInt(v int32) *instance.Instance    { return stringNew(fmt.Sprintf("%d", v)) }
func stringFromLong(v int64) *instance.Instance   { return stringNew(fmt.Sprintf("%d", v)) }
func stringFromFloat(v float32) *instance.Instance { return stringNew(fmt.Sprintf("%g", v)) }
func stringFromDouble(v float64) *instance.Instance { return stringNew(fmt.Sprintf("%g", v)) }

func stringBox(a *instance.Instance) *instance.Instance {
	any := rt.NewInstance("STD", "Any")
	if any == nil {
		return nil
	}

	any.Data.(*anyData).value = a

	return any
}

func stringUnbox(box *instance.Instance) *instance.Instance {
	if box == nil {
		return nil
	}

	ad, ok := box.Data.(*anyData)
	if !ok || ad.value == nil {
		return nil
	}

	if ad.value.Def == nil || ad.value.Def.Namespace != "STD" || ad.value.Def.Name != "String" {
		return nil
	}

	return ad.value
}

func newAny() any { return &anyData{} }

func freeAny(data any) {
	// The boxed value is managed; the destructor must not touch it
	// (spec §4.4) and never does — there is nothing else to release.
	_ = data
}

func traceAny(data any, mark definition.Mark) {
	ad, ok := data.(*anyData)
	if !ok || ad.value == nil {
		return
	}

	mark(ad.value)
}

func newList() any { return &listData{} }

func freeList(data any) {
	ld, ok := data.(*listData)
	if !ok {
		return
	}

	rt.SubAlloc(uintptr(cap(ld.items)) * anyRefSize)
	ld.items = nil
}

func traceList(data any, mark definition.Mark) {
	ld, ok := data.(*listData)
	if !ok {
		return
	}

	for _, item := range ld.items {
		if item != nil {
			mark(item)
		}
	}
}

func listNew() *instance.Instance { return rt.NewInstance("STD", "List") }

func listAdd(l *instance.Instance, v *instance.Instance) {
	ld, ok := l.Data.(*listData)
	if !ok {
		return
	}

	before := cap(ld.items)
	ld.items = append(ld.items, v)

	if grown := cap(ld.items) - before; grown > 0 {
		rt.AddAlloc(uintptr(grown) * anyRefSize)
	}
}

func listCount(l *instance.Instance) int32 {
	ld, ok := l.Data.(*listData)
	if !ok {
		return 0
	}

	return int32(len(ld.items))
}

func listGet(l *instance.Instance, index int32) *instance.Instance {
	ld, ok := l.Data.(*listData)
	if !ok || index < 0 || int(index) >= len(ld.items) {
		return nil
	}

	return ld.items[index]
}

func listSet(l *instance.Instance, index int32, v *instance.Instance) {
	ld, ok := l.Data.(*listData)
	if !ok || index < 0 || int(index) >= len(ld.items) {
		return
	}

	ld.items[index] = v
}

func listRemoveAt(l *instance.Instance, index int32) {
	ld, ok := l.Data.(*listData)
	if !ok || index < 0 || int(index) >= len(ld.items) {
		return
	}

	ld.items = append(ld.items[:index], ld.items[index+1:]...)
}

func listClear(l *instance.Instance) {
	ld, ok := l.Data.(*listData)
	if !ok {
		return
	}

	rt.SubAlloc(uintptr(cap(ld.items)) * anyRefSize)
	ld.items = nil
}

func stdPrint(s *instance.Instance) {
	if s == nil {
		return
	}

	fmt.Println(stringValue(s))
}

func stdTimeMS() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}

// GetDefinitions is the package's one exported symbol (spec §6). It
// caches the kernel's runtime primitives and publishes this package's
// definitions.
func GetDefinitions(table *loader.Table) {
	rt = table.Runtime

	table.Defs = []definition.Definition{
		{
			Namespace:    "STD",
			Name:         "String",
			InstanceSize: 16,
			New:          newString,
			Free:         freeString,
			Methods: []definition.Method{
				{Name: "New", Fn: stringNew},
				{Name: "Concat", Fn: stringConcat},
				{Name: "Length", Fn: stringLength},
				{Name: "IsEmpty", Fn: stringIsEmpty},
				{Name: "Equals", Fn: stringEquals},
				{Name: "Compare", Fn: stringCompare},
				{Name: "FromBool", Fn: stringFromBool},
				{Name: "FromInt", Fn: stringFromInt},
				{Name: "FromLong", Fn: stringFromLong},
				{Name: "FromFloat", Fn: stringFromFloat},
				{Name: "FromDouble", Fn: stringFromDouble},
				{Name: "Box", Fn: stringBox},
				{Name: "Unbox", Fn: stringUnbox},
			},
		},
		{
			Namespace:    "STD",
			Name:         "Any",
			InstanceSize: 8,
			New:          newAny,
			Free:         freeAny,
			TraceRefs:    traceAny,
		},
		{
			Namespace:    "STD",
			Name:         "List",
			InstanceSize: 24,
			New:          newList,
			Free:         freeList,
			TraceRefs:    traceList,
			Methods: []definition.Method{
				{Name: "New", Fn: listNew},
				{Name: "Add", Fn: listAdd},
				{Name: "Count", Fn: listCount},
				{Name: "Get", Fn: listGet},
				{Name: "Set", Fn: listSet},
				{Name: "RemoveAt", Fn: listRemoveAt},
				{Name: "Clear", Fn: listClear},
			},
		},
		{
			Namespace: "STD",
			Name:      "STD",
			Methods: []definition.Method{
				{Name: "Print", Fn: stdPrint},
				{Name: "TimeMS", Fn: stdTimeMS},
			},
		},
		{
			Namespace: "STD",
			Name:      "Math",
			Methods: []definition.Method{
				{Name: "Sqrt", Fn: mathSqrt},
				{Name: "Pow", Fn: mathPow},
				{Name: "Abs", Fn: mathAbs},
				{Name: "Min", Fn: mathMin},
				{Name: "Max", Fn: mathMax},
			},
		},
		{
			Namespace: "STD",
			Name:      "MathI",
			Methods: []definition.Method{
				{Name: "MinInt", Fn: mathIMinInt},
				{Name: "MaxInt", Fn: mathIMaxInt},
				{Name: "ClampInt", Fn: mathIClampInt},
				{Name: "AbsInt", Fn: mathIAbsInt},
			},
		},
	}
}

func main() {}
