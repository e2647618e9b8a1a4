package interfaces

// StateReader reads invocation state.
type StateReader interface {
	Get(key []byte) ([]byte, error)
}

// StateWriter is the mutable view an invocation works on. Writes are only
// visible to the lower store once the invocation commits.
type StateWriter interface {
	StateReader
	Put(key, value []byte)
	Delete(key []byte)
}
