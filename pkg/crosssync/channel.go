package crosssync

// Event describes a change to a persisted key made by another context.
type Event struct {
	// Key is the physical storage key, including any store prefix.
	Key string

	// Value is the new raw value. Empty when Removed is set.
	Value string

	// Removed reports that the key was deleted.
	Removed bool
}

// Channel delivers external storage changes.
type Channel interface {
	// Watch registers fn for change events until the returned stop function
	// is called. fn may be invoked from another goroutine.
	Watch(fn func(Event)) (stop func(), err error)
}
