// Package types holds the shared data structures used across the
// application. Handlers, storage backends and response helpers all import
// it, so it must not import any of them.
package types

// Student is a stored student record.
//
// ID is a 24-character hex string assigned by the storage layer when the
// record is created. It never changes afterwards.
type Student struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Age     float64 `json:"age"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
}

// StudentInput is the request payload for create and update operations.
//
// Age is any JSON number. Email is free text, it is not checked for shape.
// The validate tags apply to creation only: "required" rejects zero values,
// so an empty string or an age of 0 counts as missing. Updates use the same
// zero-value rule to decide which fields were supplied.
type StudentInput struct {
	Name    string  `json:"name"    validate:"required"`
	Age     float64 `json:"age"     validate:"required"`
	Email   string  `json:"email"   validate:"required"`
	Phone   string  `json:"phone"   validate:"required"`
	Address string  `json:"address" validate:"required"`
}

// IsEmpty reports whether no business field was supplied.
func (in StudentInput) IsEmpty() bool {
	return in.Name == "" && in.Age == 0 && in.Email == "" && in.Phone == "" && in.Address == ""
}

// Student builds a new, not yet stored, record from the input.
func (in StudentInput) Student() Student {
	return Student{
		Name:    in.Name,
		Age:     in.Age,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
	}
}

// ApplyTo overwrites the fields of s that are set in the input and leaves
// the rest untouched. Applying the same input twice gives the same result.
func (in StudentInput) ApplyTo(s *Student) {
	if in.Name != "" {
		s.Name = in.Name
	}
	if in.Age != 0 {
		s.Age = in.Age
	}
	if in.Email != "" {
		s.Email = in.Email
	}
	if in.Phone != "" {
		s.Phone = in.Phone
	}
	if in.Address != "" {
		s.Address = in.Address
	}
}
