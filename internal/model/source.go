package model

// Path represents a file system path.
type Path string

// TargetSource is the correct implementation a Run evolves tests for.
// Code is read once at load time; Hash fingerprints it so history records
// can be matched back to the exact source that was tested.
type TargetSource struct {
	Path     Path   `json:"path"`
	Code     []byte `json:"-"`
	Hash     string `json:"hash"`
	Package  string `json:"package"`
	Function string `json:"function"`
}
