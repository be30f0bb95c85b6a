// Package infra implements infrastructure concerns (storage, packages, engine glue).
package infra

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/pars5555/tailbridge/internal/domain"
)

// InstallProbe checks one installation source for a package.
// Implementations: dpkg (Linux), brew (macOS), running-process fallback.
type InstallProbe interface {
	// Name returns the probe name (e.g., "dpkg", "brew")
	Name() string

	// IsAvailable returns true if this probe can be used on this system
	IsAvailable() bool

	// IsInstalled checks if the package is present according to this source
	IsInstalled(pkg string) bool
}

// DpkgProbe queries the Debian package database (Linux).
type DpkgProbe struct {
	dpkgPath string
}

// NewDpkgProbe creates a dpkg probe.
func NewDpkgProbe() *DpkgProbe {
	path, _ := exec.LookPath("dpkg-query")
	return &DpkgProbe{dpkgPath: path}
}

func (d *DpkgProbe) Name() string {
	return "dpkg"
}

func (d *DpkgProbe) IsAvailable() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	return d.dpkgPath != ""
}

func (d *DpkgProbe) IsInstalled(pkg string) bool {
	if !d.IsAvailable() {
		return false
	}

	// dpkg-query -W -f '${Status}' pkg
	cmd := exec.Command(d.dpkgPath, "-W", "-f", "${Status}", pkg)
	cmd.Stdin = nil
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(output), "install ok installed")
}

// BrewProbe queries Homebrew (macOS).
type BrewProbe struct {
	brewPath string
}

// NewBrewProbe creates a Homebrew probe.
func NewBrewProbe() *BrewProbe {
	brewPath, err := exec.LookPath("brew")
	if err != nil {
		for _, path := range []string{"/opt/homebrew/bin/brew", "/usr/local/bin/brew"} {
			if _, err := exec.LookPath(path); err == nil {
				brewPath = path
				break
			}
		}
	}
	return &BrewProbe{brewPath: brewPath}
}

func (b *BrewProbe) Name() string {
	return "brew"
}

func (b *BrewProbe) IsAvailable() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	return b.brewPath != ""
}

func (b *BrewProbe) IsInstalled(pkg string) bool {
	if !b.IsAvailable() {
		return false
	}

	cmd := exec.Command(b.brewPath, "list")
	cmd.Stdin = nil // Prevent any interactive prompts
	output, err := cmd.Output()
	if err != nil {
		return false
	}

	for _, line := range strings.Split(string(output), "\n") {
		if strings.TrimSpace(line) == pkg {
			return true
		}
	}
	return false
}

// ProcessProbe treats a package as installed when a process with a matching
// name is currently running. Last-resort fallback for binaries installed
// outside any package manager.
type ProcessProbe struct{}

// NewProcessProbe creates a running-process probe.
func NewProcessProbe() *ProcessProbe {
	return &ProcessProbe{}
}

func (p *ProcessProbe) Name() string {
	return "process"
}

func (p *ProcessProbe) IsAvailable() bool {
	return true
}

func (p *ProcessProbe) IsInstalled(pkg string) bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}

	pkgLower := strings.ToLower(pkg)
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue // Process may have exited
		}
		if strings.EqualFold(name, pkg) || strings.Contains(strings.ToLower(name), pkgLower) {
			return true
		}
	}
	return false
}

// PackageRegistryImpl implements domain.PackageRegistry by asking each
// available probe in order; the first positive answer wins.
type PackageRegistryImpl struct {
	probes []InstallProbe
}

// NewPackageRegistry creates a registry with the platform's default probes.
func NewPackageRegistry() domain.PackageRegistry {
	return NewPackageRegistryWithProbes(
		NewDpkgProbe(),
		NewBrewProbe(),
		NewProcessProbe(),
	)
}

// NewPackageRegistryWithProbes creates a registry with specific probes (for testing).
func NewPackageRegistryWithProbes(probes ...InstallProbe) domain.PackageRegistry {
	return &PackageRegistryImpl{probes: probes}
}

// IsInstalled reports whether any available probe confirms the package.
func (r *PackageRegistryImpl) IsInstalled(pkg string) bool {
	for _, probe := range r.probes {
		if !probe.IsAvailable() {
			continue
		}
		if probe.IsInstalled(pkg) {
			return true
		}
	}
	return false
}

// Ensure PackageRegistryImpl implements domain.PackageRegistry.
var _ domain.PackageRegistry = (*PackageRegistryImpl)(nil)
