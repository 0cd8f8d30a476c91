package models

// Identifier conventions: user and course identifiers come from the identity
// provider and the course catalog respectively. Zero or negative values never
// identify a real entity.

// ValidID reports whether id can identify an external entity.
func ValidID(id int64) bool {
	return id > 0
}
