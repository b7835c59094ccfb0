package pyfind

import "github.com/bilusteknoloji/pymodule/internal/config"

// sourceSatisfiesEnvironmentPreference is the cheap, source-tag-only
// pre-filter of spec.md §4.C ("Filtering"). It never queries the
// candidate; it only looks at where it came from.
func sourceSatisfiesEnvironmentPreference(src Source, pref config.EnvironmentPreference) bool {
	switch pref {
	case config.EnvironmentOnlyVirtual:
		return src.isVirtualLike() || src == SourceParentInterpreter
	case config.EnvironmentOnlySystem:
		return !src.isVirtualLike()
	case config.EnvironmentExplicitSystem:
		return true
	case config.EnvironmentAny:
		return true
	default:
		return true
	}
}

// interpreterSatisfiesEnvironmentPreference is the final, post-query
// filter of spec.md §4.C, based on the interpreter's actual
// IsVirtualenv flag (conda environments count as virtual).
func interpreterSatisfiesEnvironmentPreference(interp Interpreter, pref config.EnvironmentPreference) bool {
	switch pref {
	case config.EnvironmentOnlyVirtual:
		return interp.IsVirtualenv
	case config.EnvironmentOnlySystem:
		return !interp.IsVirtualenv
	case config.EnvironmentExplicitSystem:
		return !interp.IsVirtualenv || interp.Source == SourceActiveEnvironment
	case config.EnvironmentAny:
		return true
	default:
		return true
	}
}

// sourceOrder returns the ordered list of installed-interpreter sources
// to scan, per the PythonPreference policy of spec.md §4.C ("Installed
// sources, ordered by preference").
func sourceOrder(pref config.PythonPreference) []Source {
	switch pref {
	case config.PreferenceOnlyManaged:
		return []Source{SourceManaged}
	case config.PreferenceSystem:
		return []Source{SourceSearchPath, SourceRegistry, SourceMicrosoftStore, SourceManaged}
	case config.PreferenceOnlySystem:
		return []Source{SourceSearchPath, SourceRegistry, SourceMicrosoftStore}
	case config.PreferenceManaged:
		fallthrough
	default:
		return []Source{SourceManaged, SourceSearchPath, SourceRegistry, SourceMicrosoftStore}
	}
}
