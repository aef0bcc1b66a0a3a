package schema

import "fmt"

// Kind is the class of operating system primitive a scenario exercises.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindFIFO
	KindHardlink
	KindSymlink
	KindSocket
)

//nolint:gochecknoglobals
var kindNames = map[Kind]string{
	KindFile:      "file",
	KindDirectory: "directory",
	KindFIFO:      "fifo",
	KindHardlink:  "hardlink",
	KindSymlink:   "symlink",
	KindSocket:    "socket",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// ParseKind returns the [Kind] for a name as produced by [Kind.String].
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}
