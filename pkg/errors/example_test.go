// Package errors provides examples of structured error handling in the vote relay.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/voterelay/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeConnection, "failed to connect to redis")

	err = err.WithDetail("host", "redis").
		WithDetail("port", 6379)

	fmt.Println(err.Error())

	// Output:
	// connection: failed to connect to redis
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := errors.Wrap(originalErr, errors.ErrorTypeDecode, "failed to decode vote message").
		WithDetail("queue", "votes")

	if errors.IsType(err, errors.ErrorTypeDecode) {
		fmt.Println("This is a decode error")
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is a decode error
	// Original error was unexpected EOF
}

// ExampleTypeOf demonstrates classifying errors for logging.
func ExampleTypeOf() {
	insertErr := errors.Newf(errors.ErrorTypeInsert, "unexpected response status %d", 500)
	fmt.Println(errors.TypeOf(insertErr))
	fmt.Println(errors.TypeOf(io.EOF))

	// Output:
	// insert
	// internal
}
