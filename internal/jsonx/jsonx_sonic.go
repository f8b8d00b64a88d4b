//go:build !nojsonsimd

package jsonx

import "github.com/bytedance/sonic"

var fastJSON = sonic.ConfigStd

// Marshal encodes v with sonic.
func Marshal(v interface{}) ([]byte, error) {
	return fastJSON.Marshal(v)
}

// Unmarshal decodes data into v with sonic.
func Unmarshal(data []byte, v interface{}) error {
	return fastJSON.Unmarshal(data, v)
}
