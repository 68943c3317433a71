package upgrade

import (
	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/upgrade/status"
)

// Path is one of the supported upgrade transitions
type Path int

// Supported upgrade paths
const (
	// F47ToF5 renames technical metadata in place, in the source repository
	F47ToF5 Path = iota + 1

	// F5ToF6 walks the source tree and recreates every resource in a new OCFL storage root
	F5ToF6
)

var registry = map[model.Transition]Path{
	{Source: model.V4_7_5, Target: model.V5}: F47ToF5,
	{Source: model.V5, Target: model.V6}:     F5ToF6,
}

// Lookup the upgrade path between two repository versions
func Lookup(source, target model.Version) (Path, error) {
	p, ok := registry[model.Transition{Source: source, Target: target}]
	if !ok {
		return 0, status.ErrUnsupportedPath.Wrapf("from version %q to version %q", source, target)
	}
	return p, nil
}

// ParseTransition reads a pair of version strings. Either version being unknown makes the pair unsupported.
func ParseTransition(source, target string) (model.Transition, error) {
	src, err := model.ParseVersion(source)
	if err != nil {
		return model.Transition{}, status.ErrUnsupportedPath.Wrapf("from version %q to version %q: %v", source, target, err)
	}
	tgt, err := model.ParseVersion(target)
	if err != nil {
		return model.Transition{}, status.ErrUnsupportedPath.Wrapf("from version %q to version %q: %v", source, target, err)
	}
	return model.Transition{Source: src, Target: tgt}, nil
}

// Paths lists all supported transitions
func Paths() []model.Transition {
	return []model.Transition{F47ToF5.Transition(), F5ToF6.Transition()}
}

// Transition of this path
func (p Path) Transition() model.Transition {
	switch p {
	case F47ToF5:
		return model.Transition{Source: model.V4_7_5, Target: model.V5}
	case F5ToF6:
		return model.Transition{Source: model.V5, Target: model.V6}
	default:
		return model.Transition{}
	}
}

func (p Path) String() string {
	return p.Transition().String()
}
