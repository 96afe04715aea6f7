package decode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// mustType builds an abi.Type, panicking only at package init time (these
// type strings are fixed and verified by this package's own tests -- never
// derived from untrusted input).
func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("decode: invalid abi type %q: %v", t, err))
	}
	return typ
}

func args(types ...string) abi.Arguments {
	a := make(abi.Arguments, len(types))
	for i, t := range types {
		a[i] = abi.Argument{Type: mustType(t)}
	}
	return a
}

// tupleType builds a tuple abi.Type out of (name, type) field pairs.
// abi.NewType does not parse component lists out of the type string itself
// -- they must be supplied as ArgumentMarshaling entries.
func tupleType(fields ...[2]string) abi.Type {
	components := make([]abi.ArgumentMarshaling, len(fields))
	for i, f := range fields {
		components[i] = abi.ArgumentMarshaling{Name: f[0], Type: f[1]}
	}
	typ, err := abi.NewType("tuple", "", components)
	if err != nil {
		panic(fmt.Sprintf("decode: invalid tuple type: %v", err))
	}
	return typ
}

// unpackAfterSelector unpacks calldata[4:] with the given argument layout,
// turning any error into (nil, err) so callers can fold it into the
// decode-failure-returns-nil-not-throw contract.
func unpackAfterSelector(a abi.Arguments, data []byte) ([]interface{}, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("short calldata: %d bytes", len(data))
	}
	return a.Unpack(data[4:])
}
