package build

import (
	"path/filepath"

	"megaton-build-go/internal/config"
	"megaton-build-go/internal/status"
	"megaton-build-go/internal/system"
)

// Clean removes the outputs of every profile, or only those of profile when
// it is not config.ProfileNone. Nothing to remove is not an error.
func Clean(dir, profile string, printer *status.LinePrinter) error {
	if dir == "" {
		dir = "."
	}
	root, err := system.FindRoot(dir)
	if err != nil {
		return err
	}
	target := TargetRoot(root)
	if profile != "" && profile != config.ProfileNone {
		target = filepath.Join(target, profile)
	}
	if _, missing, err := system.Stat(target); err != nil {
		return err
	} else if missing {
		printer.Verbose("Clean", "nothing to remove")
		return nil
	}
	rel, _ := filepath.Rel(root, target)
	printer.Info("Cleaning", "%s", rel)
	return system.RemoveDir(target)
}
