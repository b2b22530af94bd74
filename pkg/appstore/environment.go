package appstore

import (
	"errors"
	"fmt"
	"strings"

	goiap "github.com/awa/go-iap/appstore"
)

// ErrUnknownEnvironment is returned when an environment name is neither
// "production" nor "development".
var ErrUnknownEnvironment = errors.New("unknown environment")

// Environment names a verifyReceipt target.
type Environment struct {
	Name     string
	Endpoint string
}

var (
	Production  = Environment{Name: "production", Endpoint: goiap.ProductionURL}
	Development = Environment{Name: "development", Endpoint: goiap.SandboxURL}
)

// ResolveEnvironment looks up one of the two fixed environments by name.
// Matching ignores case and surrounding whitespace.
func ResolveEnvironment(name string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Production.Name:
		return Production, nil
	case Development.Name:
		return Development, nil
	default:
		return Environment{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
}

func (e Environment) String() string {
	return e.Name
}
