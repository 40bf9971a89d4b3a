package utils

// Ptr returns a pointer to v. Wire formats that distinguish "absent" from
// "zero" use pointer fields, and Ptr spares callers the temporary variable
// otherwise needed to take the address of a literal or an expression:
//
//	request.Temperature = utils.Ptr(0.7)
func Ptr[T any](v T) *T {
	return &v
}
