package service

// StructValidator validates tagged input structs, returning an apperr validation error
type StructValidator interface {
	Validate(v interface{}) error
}
