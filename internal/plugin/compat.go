package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// HostName is the compatibility key plugins use to target skiff.
const HostName = "skiff"

// CompatibleWith reports whether the descriptor's declared constraint for
// the given host accepts the host version. A descriptor that declares no
// constraint for the host is considered compatible.
func (d *Descriptor) CompatibleWith(host, hostVersion string) (bool, error) {
	raw, ok := d.Compatibility[host]
	if !ok {
		return true, nil
	}

	constraint, err := semver.NewConstraint(raw)
	if err != nil {
		return false, fmt.Errorf("invalid compatibility constraint %q: %w", raw, err)
	}

	version, err := semver.NewVersion(hostVersion)
	if err != nil {
		return false, fmt.Errorf("invalid host version %q: %w", hostVersion, err)
	}

	return constraint.Check(version), nil
}
