package synckit

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/c0deZ3R0/go-sync-merge/errors"
)

// FieldPolicy decides which side a declared field is taken from when the
// two versions disagree.
type FieldPolicy int

const (
	// FieldByTimestamp takes the side with the later modification time.
	// Ties favor local.
	FieldByTimestamp FieldPolicy = iota
	// FieldLocalOnly always keeps the local value.
	FieldLocalOnly
	// FieldRemoteOnly always takes the remote value.
	FieldRemoteOnly
)

func (p FieldPolicy) String() string {
	switch p {
	case FieldByTimestamp:
		return "by_timestamp"
	case FieldLocalOnly:
		return "local_only"
	case FieldRemoteOnly:
		return "remote_only"
	default:
		return fmt.Sprintf("FieldPolicy(%d)", int(p))
	}
}

type fieldDef[T any] struct {
	name          string
	policy        FieldPolicy
	equal         func(local, remote T) bool
	take          func(dst *T, src T)
	modifiedAt    func(T) time.Time
	setModifiedAt func(*T, time.Time)
}

// FieldOption customizes a single field declaration.
type FieldOption[T any] func(*fieldDef[T])

// WithModifiedAt pairs a field with its own modification time. A zero
// time on either side falls back to that side's record timestamp. When set
// is non-nil the merged entity carries the winner's modification time.
func WithModifiedAt[T any](get func(T) time.Time, set func(*T, time.Time)) FieldOption[T] {
	return func(s *fieldDef[T]) {
		s.modifiedAt = get
		s.setModifiedAt = set
	}
}

// WithPolicy overrides the default FieldByTimestamp policy.
func WithPolicy[T any](p FieldPolicy) FieldOption[T] {
	return func(s *fieldDef[T]) {
		s.policy = p
	}
}

// FieldMerger is a declared list of mergeable fields of T. Build it once at
// startup with Field and FieldFunc and register it with ConfigureFieldMerge.
//
//	m := synckit.NewFieldMerger[Product]()
//	synckit.Field(m, "name", func(p Product) string { return p.Name },
//		func(p *Product, v string) { p.Name = v },
//		synckit.WithModifiedAt(func(p Product) time.Time { return p.NameModifiedAt },
//			func(p *Product, t time.Time) { p.NameModifiedAt = t }))
//	synckit.Field(m, "sku", func(p Product) string { return p.SKU },
//		func(p *Product, v string) { p.SKU = v },
//		synckit.WithPolicy[Product](synckit.FieldLocalOnly))
//
// Fields that are not declared keep the value of the base instance, which is
// a copy of local unless WithConstructor is used.
type FieldMerger[T any] struct {
	fields []fieldDef[T]
	names  map[string]struct{}
	newT   func() T
	err    error
}

// NewFieldMerger returns an empty merger for T.
func NewFieldMerger[T any]() *FieldMerger[T] {
	return &FieldMerger[T]{names: make(map[string]struct{})}
}

// WithConstructor makes Merge start from a fresh instance instead of a copy
// of local. Pointer types must set one, since copying a pointer would write
// into the caller's local version.
func (m *FieldMerger[T]) WithConstructor(fn func() T) *FieldMerger[T] {
	m.newT = fn
	return m
}

// Field declares a comparable field.
func Field[T any, V comparable](m *FieldMerger[T], name string, get func(T) V, set func(*T, V), opts ...FieldOption[T]) *FieldMerger[T] {
	if get == nil || set == nil {
		m.fail(fmt.Errorf("field %q: accessor and setter are required", name))
		return m
	}
	return FieldFunc(m, name, get, set, func(a, b V) bool { return a == b }, opts...)
}

// FieldFunc declares a field whose values are compared with equal. Use it
// for slices, maps and other non-comparable types.
func FieldFunc[T, V any](m *FieldMerger[T], name string, get func(T) V, set func(*T, V), equal func(a, b V) bool, opts ...FieldOption[T]) *FieldMerger[T] {
	switch {
	case name == "":
		m.fail(fmt.Errorf("field name must not be empty"))
		return m
	case get == nil || set == nil || equal == nil:
		m.fail(fmt.Errorf("field %q: accessor, setter and equality are required", name))
		return m
	}
	if _, dup := m.names[name]; dup {
		m.fail(fmt.Errorf("field %q declared twice", name))
		return m
	}

	def := fieldDef[T]{
		name:   name,
		policy: FieldByTimestamp,
		equal:  func(l, r T) bool { return equal(get(l), get(r)) },
		take:   func(dst *T, src T) { set(dst, get(src)) },
	}
	for _, opt := range opts {
		opt(&def)
	}
	if def.policy < FieldByTimestamp || def.policy > FieldRemoteOnly {
		m.fail(fmt.Errorf("field %q: unknown policy %s", name, def.policy))
		return m
	}

	m.names[name] = struct{}{}
	m.fields = append(m.fields, def)
	return m
}

func (m *FieldMerger[T]) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// Fields returns the declared field names in sorted order.
func (m *FieldMerger[T]) Fields() []string {
	names := make([]string, 0, len(m.fields))
	for _, f := range m.fields {
		names = append(names, f.name)
	}
	sort.Strings(names)
	return names
}

// Validate reports the first declaration error, an empty merger, or a
// pointer type without a constructor.
func (m *FieldMerger[T]) Validate() error {
	if m == nil {
		return errors.NewConfigurationError(errors.OpConfigure, fmt.Errorf("field merger is nil"))
	}
	if m.err != nil {
		return errors.NewConfigurationError(errors.OpConfigure, m.err)
	}
	if len(m.fields) == 0 {
		return errors.NewConfigurationError(errors.OpConfigure,
			fmt.Errorf("field merger for %s declares no fields", EntityTypeOf[T]()))
	}
	if m.newT == nil && reflect.TypeOf((*T)(nil)).Elem().Kind() == reflect.Pointer {
		return errors.NewConfigurationError(errors.OpConfigure,
			fmt.Errorf("field merger for %s needs a constructor", EntityTypeOf[T]()))
	}
	return nil
}

// Merge combines local and remote field by field. localTS and remoteTS
// stand in for any field without its own modification time. The returned
// map records which side each declared field came from.
func (m *FieldMerger[T]) Merge(local, remote T, localTS, remoteTS time.Time) (T, map[string]Side) {
	var merged T
	if m.newT != nil {
		merged = m.newT()
	} else {
		merged = local
	}

	sources := make(map[string]Side, len(m.fields))
	for _, f := range m.fields {
		side := f.pick(local, remote, localTS, remoteTS)
		src := local
		if side == SideRemote {
			src = remote
		}
		f.take(&merged, src)
		if f.setModifiedAt != nil && f.modifiedAt != nil {
			f.setModifiedAt(&merged, f.modifiedAt(src))
		}
		sources[f.name] = side
	}
	return merged, sources
}

func (f fieldDef[T]) pick(local, remote T, localTS, remoteTS time.Time) Side {
	switch f.policy {
	case FieldLocalOnly:
		return SideLocal
	case FieldRemoteOnly:
		return SideRemote
	}
	if f.equal(local, remote) {
		return SideLocal
	}

	lt, rt := localTS, remoteTS
	if f.modifiedAt != nil {
		if t := f.modifiedAt(local); !t.IsZero() {
			lt = t
		}
		if t := f.modifiedAt(remote); !t.IsZero() {
			rt = t
		}
	}
	if lt.Before(rt) {
		return SideRemote
	}
	return SideLocal
}
