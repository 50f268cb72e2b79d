package node

import (
	"time"
)

// FlagSet holds the values of the flags of a command after a JSON round trip
// to the daemon. Numbers are therefore float64 and slices are []interface{}.
//
// - implements cli.Flags
type FlagSet map[string]interface{}

// String implements cli.Flags.
func (fset FlagSet) String(name string) string {
	str, _ := fset[name].(string)
	return str
}

// StringSlice implements cli.Flags. It returns nil if the flag is not a list of
// strings.
func (fset FlagSet) StringSlice(name string) []string {
	list, ok := fset[name].([]interface{})
	if !ok {
		return nil
	}

	res := make([]string, 0, len(list))

	for _, elem := range list {
		str, ok := elem.(string)
		if !ok {
			return nil
		}

		res = append(res, str)
	}

	return res
}

// Duration implements cli.Flags. A duration travels as its number of
// nanoseconds.
func (fset FlagSet) Duration(name string) time.Duration {
	ns, _ := fset[name].(float64)
	return time.Duration(ns)
}

// Path implements cli.Flags.
func (fset FlagSet) Path(name string) string {
	return fset.String(name)
}

// Int implements cli.Flags. A number with a fractional part is not an integer
// and returns zero.
func (fset FlagSet) Int(name string) int {
	switch v := fset[name].(type) {
	case int:
		return v
	case float64:
		if v != float64(int(v)) {
			return 0
		}

		return int(v)
	default:
		return 0
	}
}

// Bool implements cli.Flags.
func (fset FlagSet) Bool(name string) bool {
	b, _ := fset[name].(bool)
	return b
}
