package pagegrid

// ItemStatus tells whether an Item carries a value.
type ItemStatus uint8

const (
	// ItemPending means the owning page is being fetched.
	ItemPending ItemStatus = iota
	// ItemReady means the item carries the provider's value.
	ItemReady
	// ItemFailed means the last fetch of the owning page failed. The next
	// access retries it.
	ItemFailed
)

func (s ItemStatus) String() string {
	switch s {
	case ItemPending:
		return "pending"
	case ItemReady:
		return "ready"
	case ItemFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Item is the result of a non-blocking lookup: either a ready value or a
// placeholder.
type Item[T any] struct {
	value  T
	status ItemStatus
}

// Ready returns an Item carrying v.
func Ready[T any](v T) Item[T] {
	return Item[T]{value: v, status: ItemReady}
}

// Pending returns a placeholder for an item whose page is loading.
func Pending[T any]() Item[T] {
	return Item[T]{status: ItemPending}
}

// Failed returns a placeholder for an item whose page failed to load.
func Failed[T any]() Item[T] {
	return Item[T]{status: ItemFailed}
}

// Status returns the item status.
func (it Item[T]) Status() ItemStatus { return it.status }

// IsReady reports whether the item carries a value.
func (it Item[T]) IsReady() bool { return it.status == ItemReady }

// Value returns the value and true if the item is ready.
func (it Item[T]) Value() (T, bool) {
	return it.value, it.status == ItemReady
}

// ValueOr returns the value if the item is ready and def otherwise.
func (it Item[T]) ValueOr(def T) T {
	if it.status != ItemReady {
		return def
	}
	return it.value
}
