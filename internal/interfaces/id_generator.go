package interfaces

// IDGenerator hands out opaque identifiers in a caller-chosen namespace.
type IDGenerator interface {
	NewID(prefix string) string
}
