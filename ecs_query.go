package raycast

import (
	"reflect"
	"slices"
)

// Queries iterate entities whose archetype carries the requested component
// set. Components listed in the trailing `optionals` of Map may be absent, in
// which case the callback receives nil for them. Returning false from the
// callback stops iteration.
type Query1[A any] struct{ filters queryFilters }
type Query2[A, B any] struct{ filters queryFilters }
type Query3[A, B, C any] struct{ filters queryFilters }
type Query4[A, B, C, D any] struct{ filters queryFilters }
type Query5[A, B, C, D, E any] struct{ filters queryFilters }

type queryFilters struct {
	ecs     *Ecs
	with    []componentId
	without []componentId
	any     []componentId
}

func MakeQuery1[A any](cmd *Commands) Query1[A] {
	return Query1[A]{queryFilters{ecs: cmd.app.ecs}}
}
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B] {
	return Query2[A, B]{queryFilters{ecs: cmd.app.ecs}}
}
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] {
	return Query3[A, B, C]{queryFilters{ecs: cmd.app.ecs}}
}
func MakeQuery4[A, B, C, D any](cmd *Commands) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{queryFilters{ecs: cmd.app.ecs}}
}
func MakeQuery5[A, B, C, D, E any](cmd *Commands) Query5[A, B, C, D, E] {
	return Query5[A, B, C, D, E]{queryFilters{ecs: cmd.app.ecs}}
}

func (f queryFilters) withTypes(types ...any) queryFilters {
	f.with = append(f.with, idsOfValues(f.ecs, types...)...)
	return f
}
func (f queryFilters) withoutTypes(types ...any) queryFilters {
	f.without = append(f.without, idsOfValues(f.ecs, types...)...)
	return f
}
func (f queryFilters) withAnyTypes(types ...any) queryFilters {
	f.any = append(f.any, idsOfValues(f.ecs, types...)...)
	return f
}

func (q Query1[A]) WithTypes(types ...any) Query1[A]    { q.filters = q.filters.withTypes(types...); return q }
func (q Query1[A]) WithoutTypes(types ...any) Query1[A] { q.filters = q.filters.withoutTypes(types...); return q }
func (q Query1[A]) WithAnyTypes(types ...any) Query1[A] { q.filters = q.filters.withAnyTypes(types...); return q }

func (q Query2[A, B]) WithTypes(types ...any) Query2[A, B] {
	q.filters = q.filters.withTypes(types...)
	return q
}
func (q Query2[A, B]) WithoutTypes(types ...any) Query2[A, B] {
	q.filters = q.filters.withoutTypes(types...)
	return q
}
func (q Query2[A, B]) WithAnyTypes(types ...any) Query2[A, B] {
	q.filters = q.filters.withAnyTypes(types...)
	return q
}

func (q Query3[A, B, C]) WithTypes(types ...any) Query3[A, B, C] {
	q.filters = q.filters.withTypes(types...)
	return q
}
func (q Query3[A, B, C]) WithoutTypes(types ...any) Query3[A, B, C] {
	q.filters = q.filters.withoutTypes(types...)
	return q
}
func (q Query3[A, B, C]) WithAnyTypes(types ...any) Query3[A, B, C] {
	q.filters = q.filters.withAnyTypes(types...)
	return q
}

func (q Query4[A, B, C, D]) WithTypes(types ...any) Query4[A, B, C, D] {
	q.filters = q.filters.withTypes(types...)
	return q
}
func (q Query4[A, B, C, D]) WithoutTypes(types ...any) Query4[A, B, C, D] {
	q.filters = q.filters.withoutTypes(types...)
	return q
}
func (q Query4[A, B, C, D]) WithAnyTypes(types ...any) Query4[A, B, C, D] {
	q.filters = q.filters.withAnyTypes(types...)
	return q
}

func (q Query5[A, B, C, D, E]) WithTypes(types ...any) Query5[A, B, C, D, E] {
	q.filters = q.filters.withTypes(types...)
	return q
}
func (q Query5[A, B, C, D, E]) WithoutTypes(types ...any) Query5[A, B, C, D, E] {
	q.filters = q.filters.withoutTypes(types...)
	return q
}
func (q Query5[A, B, C, D, E]) WithAnyTypes(types ...any) Query5[A, B, C, D, E] {
	q.filters = q.filters.withAnyTypes(types...)
	return q
}

func idOf[T any](ecs *Ecs) componentId {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return ecs.getComponentId(t)
}

func idsOfValues(ecs *Ecs, vals ...any) []componentId {
	ids := make([]componentId, 0, len(vals))
	for _, v := range vals {
		t := reflect.TypeOf(v)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		ids = append(ids, ecs.getComponentId(t))
	}
	return ids
}

// Archetype key membership helpers; the key is sorted so BinarySearch works.
func archHas(arch *archetype, id componentId) bool {
	_, found := slices.BinarySearch(arch.key, id)
	return found
}
func hasAll(arch *archetype, ids []componentId) bool {
	for _, id := range ids {
		if !archHas(arch, id) {
			return false
		}
	}
	return true
}
func hasAny(arch *archetype, ids []componentId) bool {
	for _, id := range ids {
		if archHas(arch, id) {
			return true
		}
	}
	return false
}

func identifyOptionals(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId])
	for _, c := range components {
		res[ecs.getComponentId(reflect.TypeOf(c))] = struct{}{}
	}
	return res
}

// archMatches applies Without/WithAny/required-set prefiltering.
func (f queryFilters) archMatches(arch *archetype, required []componentId) bool {
	if len(f.without) > 0 && hasAny(arch, f.without) {
		return false
	}
	if len(f.any) > 0 && !hasAny(arch, f.any) {
		return false
	}
	return hasAll(arch, required)
}

// requiredIds drops optional component ids from the requested list and
// appends the WithTypes filters.
func (f queryFilters) requiredIds(opt set[componentId], ids ...componentId) []componentId {
	var req []componentId
	for _, id := range ids {
		if _, ok := opt[id]; !ok {
			req = append(req, id)
		}
	}
	return append(req, f.with...)
}

// column fetches the typed component slice for an archetype. ok is false when
// the archetype cannot satisfy the request at all; a nil slice with ok=true
// means the component was optional and absent.
func column[T any](arch *archetype, id componentId, opt set[componentId]) (comps []T, ok bool) {
	if data, present := arch.componentData[id]; present {
		return data.([]T), true
	}
	if _, optional := opt[id]; optional {
		return nil, true
	}
	return nil, false
}

func rowPtr[T any](comps []T, row row) *T {
	if comps == nil {
		return nil
	}
	return &comps[row]
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	ecs := q.filters.ecs
	id1 := idOf[A](ecs)
	opt := identifyOptionals(ecs, optionals...)
	req := q.filters.requiredIds(opt, id1)

	for _, arch := range ecs.archetypes {
		if !q.filters.archMatches(arch, req) {
			continue
		}
		comps1, ok := column[A](arch, id1, opt)
		if !ok {
			continue
		}
		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(comps1, row)) {
				return
			}
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	ecs := q.filters.ecs
	id1, id2 := idOf[A](ecs), idOf[B](ecs)
	opt := identifyOptionals(ecs, optionals...)
	req := q.filters.requiredIds(opt, id1, id2)

	for _, arch := range ecs.archetypes {
		if !q.filters.archMatches(arch, req) {
			continue
		}
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		if !ok1 || !ok2 {
			continue
		}
		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(comps1, row), rowPtr(comps2, row)) {
				return
			}
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	ecs := q.filters.ecs
	id1, id2, id3 := idOf[A](ecs), idOf[B](ecs), idOf[C](ecs)
	opt := identifyOptionals(ecs, optionals...)
	req := q.filters.requiredIds(opt, id1, id2, id3)

	for _, arch := range ecs.archetypes {
		if !q.filters.archMatches(arch, req) {
			continue
		}
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		comps3, ok3 := column[C](arch, id3, opt)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(comps1, row), rowPtr(comps2, row), rowPtr(comps3, row)) {
				return
			}
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	ecs := q.filters.ecs
	id1, id2, id3, id4 := idOf[A](ecs), idOf[B](ecs), idOf[C](ecs), idOf[D](ecs)
	opt := identifyOptionals(ecs, optionals...)
	req := q.filters.requiredIds(opt, id1, id2, id3, id4)

	for _, arch := range ecs.archetypes {
		if !q.filters.archMatches(arch, req) {
			continue
		}
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		comps3, ok3 := column[C](arch, id3, opt)
		comps4, ok4 := column[D](arch, id4, opt)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(comps1, row), rowPtr(comps2, row), rowPtr(comps3, row), rowPtr(comps4, row)) {
				return
			}
		}
	}
}

func (q Query5[A, B, C, D, E]) Map(m func(EntityId, *A, *B, *C, *D, *E) bool, optionals ...any) {
	ecs := q.filters.ecs
	id1, id2, id3, id4, id5 := idOf[A](ecs), idOf[B](ecs), idOf[C](ecs), idOf[D](ecs), idOf[E](ecs)
	opt := identifyOptionals(ecs, optionals...)
	req := q.filters.requiredIds(opt, id1, id2, id3, id4, id5)

	for _, arch := range ecs.archetypes {
		if !q.filters.archMatches(arch, req) {
			continue
		}
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		comps3, ok3 := column[C](arch, id3, opt)
		comps4, ok4 := column[D](arch, id4, opt)
		comps5, ok5 := column[E](arch, id5, opt)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(comps1, row), rowPtr(comps2, row), rowPtr(comps3, row), rowPtr(comps4, row), rowPtr(comps5, row)) {
				return
			}
		}
	}
}
