// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package capability

import (
	"os/exec"
	"runtime/debug"
	"strings"
	"sync"

	"golang.org/x/mod/module"
)

// Environment answers whether a required package is available.
type Environment interface {
	Has(pkg string) bool
}

// StaticEnvironment is a fixed package set.
type StaticEnvironment struct {
	packages map[string]bool
}

// NewStaticEnvironment returns an environment containing pkgs.
func NewStaticEnvironment(pkgs ...string) *StaticEnvironment {
	set := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		set[p] = true
	}
	return &StaticEnvironment{packages: set}
}

// Has reports whether pkg is in the set.
func (e *StaticEnvironment) Has(pkg string) bool {
	return e.packages[pkg]
}

// BuildInfoEnvironment reports the Go modules linked into the running binary.
//
// A package is available when it is a linked module path or a package
// below one. Strings that are not valid import paths never match.
type BuildInfoEnvironment struct {
	once    sync.Once
	modules map[string]bool
	read    func() (*debug.BuildInfo, bool)
}

// NewBuildInfoEnvironment returns an environment backed by debug.ReadBuildInfo.
func NewBuildInfoEnvironment() *BuildInfoEnvironment {
	return &BuildInfoEnvironment{read: debug.ReadBuildInfo}
}

func (e *BuildInfoEnvironment) load() {
	e.modules = make(map[string]bool)
	info, ok := e.read()
	if !ok || info == nil {
		return
	}
	if info.Main.Path != "" {
		e.modules[info.Main.Path] = true
	}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			e.modules[dep.Replace.Path] = true
		}
		e.modules[dep.Path] = true
	}
}

// Has reports whether pkg is provided by a linked module.
func (e *BuildInfoEnvironment) Has(pkg string) bool {
	if module.CheckImportPath(pkg) != nil {
		return false
	}
	e.once.Do(e.load)
	for candidate := pkg; candidate != ""; {
		if e.modules[candidate] {
			return true
		}
		i := strings.LastIndex(candidate, "/")
		if i < 0 {
			break
		}
		candidate = candidate[:i]
	}
	return false
}

// ExecutableEnvironment reports executables reachable through $PATH.
type ExecutableEnvironment struct {
	lookPath func(string) (string, error)
}

// NewExecutableEnvironment returns an environment backed by exec.LookPath.
func NewExecutableEnvironment() *ExecutableEnvironment {
	return &ExecutableEnvironment{lookPath: exec.LookPath}
}

// Has reports whether pkg resolves to an executable.
func (e *ExecutableEnvironment) Has(pkg string) bool {
	if pkg == "" || strings.ContainsAny(pkg, `/\`) {
		return false
	}
	_, err := e.lookPath(pkg)
	return err == nil
}

// AnyEnvironment is satisfied when any member has the package.
type AnyEnvironment []Environment

// Has reports whether any member environment has pkg.
func (envs AnyEnvironment) Has(pkg string) bool {
	for _, env := range envs {
		if env != nil && env.Has(pkg) {
			return true
		}
	}
	return false
}

// DefaultEnvironment combines linked Go modules with executables on $PATH.
func DefaultEnvironment() Environment {
	return AnyEnvironment{NewBuildInfoEnvironment(), NewExecutableEnvironment()}
}
