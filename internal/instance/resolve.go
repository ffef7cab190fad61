package instance

import (
	"fmt"
	"regexp"

	"github.com/matheus3301/stagechat/internal/config"
)

const DefaultName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name conforms to instance naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid instance name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Resolve determines the active instance name using precedence:
// 1. flagOverride (--instance flag)
// 2. cfg.DefaultInstance
// 3. "main"
// The result is validated.
func Resolve(flagOverride string, cfg *config.Config) (string, error) {
	name := DefaultName
	switch {
	case flagOverride != "":
		name = flagOverride
	case cfg != nil && cfg.DefaultInstance != "":
		name = cfg.DefaultInstance
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
