// Package keyvalue carries loosely typed log context between packages
// that do not import the logging library.
package keyvalue

type T struct {
	Key   string
	Value string
}

func KV(k, v string) T {
	return T{Key: k, Value: v}
}
