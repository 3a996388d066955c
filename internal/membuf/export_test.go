package membuf

// Storage exposes the backing store to tests.
func (b *Buffer) Storage() []byte {
	return b.storage
}

// Region exposes the pages owned by the buffer to tests.
func (b *Buffer) Region() []byte {
	return b.region
}
