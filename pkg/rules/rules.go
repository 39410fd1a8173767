// Package rules evaluates the platform and feature predicates that make
// library entries conditional.
package rules

import (
	"runtime"

	"github.com/cubicmc/proton/pkg/entity"
)

// OS is the closed set of OS families a descriptor can target.
type OS string

const (
	Windows OS = "windows"
	Linux   OS = "linux"
	OSX     OS = "osx"
)

// Arch is the architecture component of a platform descriptor.
type Arch string

const (
	X86   Arch = "x86"
	X64   Arch = "x64"
	ARM64 Arch = "arm64"
)

// Platform describes the machine an installation targets.
type Platform struct {
	OS   OS
	Arch Arch
}

// Features is the named feature-flag set supplied by the caller.
type Features map[string]bool

// Current derives the platform from the running process.
func Current() Platform {
	p := Platform{OS: Linux, Arch: X64}

	switch runtime.GOOS {
	case "windows":
		p.OS = Windows
	case "darwin":
		p.OS = OSX
	}

	switch runtime.GOARCH {
	case "386":
		p.Arch = X86
	case "arm64":
		p.Arch = ARM64
	}

	return p
}

// Bits returns the pointer-width token substituted into native classifier
// names of the form "natives-windows-${arch}".
func (a Arch) Bits() string {
	if a == X86 {
		return "32"
	}

	return "64"
}

// Evaluate folds a rule set left to right against the platform and feature
// context. An empty set means the entry always applies. A non-empty set
// starts from deny: each matching rule overwrites the running decision with
// its action, so an entry whose rules never match is excluded.
func Evaluate(rs []entity.Rule, p Platform, features Features) bool {
	if len(rs) == 0 {
		return true
	}

	allowed := false
	for i := range rs {
		if matches(&rs[i], p, features) {
			allowed = rs[i].Action == entity.ActionAllow
		}
	}

	return allowed
}

// matches reports whether every predicate a rule specifies holds. An
// unspecified predicate field is a wildcard.
func matches(r *entity.Rule, p Platform, features Features) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != string(p.OS) {
			return false
		}
		if r.OS.Arch != "" && r.OS.Arch != string(p.Arch) {
			return false
		}
	}

	for name, want := range r.Features {
		if features[name] != want {
			return false
		}
	}

	return true
}
