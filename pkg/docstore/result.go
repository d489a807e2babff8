package docstore

// OK is the value of a successful Create, Update or Delete.
const OK = "OK"

// Result is the uniform outcome of every store operation: either a value or
// an [*Error], never both.
type Result[T any] struct {
	Value T
	Err   *Error
}

// Failed reports whether the operation failed. Value is only meaningful when
// Failed is false.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Unpack converts the result into Go's (value, error) pair.
func (r Result[T]) Unpack() (T, error) {
	if r.Err != nil {
		var zero T

		return zero, r.Err
	}

	return r.Value, nil
}

func succeed[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func failed[T any](err *Error) Result[T] {
	return Result[T]{Err: err}
}
