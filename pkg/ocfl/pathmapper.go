package ocfl

import (
	"fmt"
	"strings"

	"github.com/oneconcern/migrator/pkg/ocfl/status"
)

// LogicalPathMapper maps a logical path to a file system safe content path.
//
// Logical paths use "/" as separator. The mapping is applied segment by segment.
type LogicalPathMapper interface {
	ContentPath(logicalPath string) (string, error)
	Name() string
}

type percentEncodingMapper struct {
	name       string
	mustEscape func(c byte) bool
	trailing   func(c byte) bool
}

// PercentEncodingLinux escapes "%" and NUL, which is enough for POSIX file systems
func PercentEncodingLinux() LogicalPathMapper {
	return &percentEncodingMapper{
		name: "percent-encoding-linux",
		mustEscape: func(c byte) bool {
			return c == '%' || c == 0
		},
		trailing: func(byte) bool { return false },
	}
}

// PercentEncodingWindows escapes characters reserved on Windows file systems, control characters
// and trailing dots and spaces in path segments
func PercentEncodingWindows() LogicalPathMapper {
	return &percentEncodingMapper{
		name: "percent-encoding-windows",
		mustEscape: func(c byte) bool {
			if c < 0x20 || c == 0x7f {
				return true
			}
			return strings.IndexByte(`%<>:"\|?*`, c) >= 0
		},
		trailing: func(c byte) bool {
			return c == '.' || c == ' '
		},
	}
}

// MapperForOS selects the path mapper matching a GOOS value
func MapperForOS(goos string) LogicalPathMapper {
	if goos == "windows" {
		return PercentEncodingWindows()
	}
	return PercentEncodingLinux()
}

func (m *percentEncodingMapper) Name() string {
	return m.name
}

func (m *percentEncodingMapper) ContentPath(logicalPath string) (string, error) {
	if logicalPath == "" {
		return "", status.ErrInvalidPath.Wrapf("empty logical path")
	}
	segments := strings.Split(logicalPath, "/")
	for i, segment := range segments {
		switch segment {
		case "", ".", "..":
			return "", status.ErrInvalidPath.Wrapf("%q has an invalid segment %q", logicalPath, segment)
		}
		segments[i] = m.encode(segment)
	}
	return strings.Join(segments, "/"), nil
}

func (m *percentEncodingMapper) encode(segment string) string {
	var b strings.Builder
	last := len(segment) - 1
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		if m.mustEscape(c) || (i == last && m.trailing(c)) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
