package state

import (
	"fmt"
	"regexp"
	"slices"
)

var namePattern = regexp.MustCompile("^[0-9a-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func ConfigValidator(cfg *LocalCfg) error {
	err := NameValidator(string(cfg.Id))
	if err != nil {
		return err
	}
	if cfg.TsBase != TsBaseZero && cfg.TsBase != TsBaseUnix {
		return fmt.Errorf("ts_base must be %q or %q, got %q", TsBaseZero, TsBaseUnix, cfg.TsBase)
	}
	if cfg.AnmTimeout < MinAnmTimeout {
		return fmt.Errorf("anm_timeout must be at least %d seconds, got %d", MinAnmTimeout, cfg.AnmTimeout)
	}
	if len(cfg.Interfaces) == 0 {
		return fmt.Errorf("no interfaces configured")
	}
	seen := make([]string, 0, len(cfg.Interfaces))
	for _, ifc := range cfg.Interfaces {
		if ifc.Name == "" {
			return fmt.Errorf("interface with empty name")
		}
		if slices.Contains(seen, ifc.Name) {
			return fmt.Errorf("duplicate interface %s", ifc.Name)
		}
		seen = append(seen, ifc.Name)
		for _, csa := range ifc.Auth {
			if csa.Mode.Length() == 0 {
				return fmt.Errorf("interface %s: unknown hash algorithm", ifc.Name)
			}
			if csa.KeyChain == "" {
				return fmt.Errorf("interface %s: auth entry without a key chain", ifc.Name)
			}
			// a key chain that is not (yet) defined is allowed; the
			// association is skipped until it appears
		}
	}
	return nil
}
