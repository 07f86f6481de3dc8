// Package transaction implements the transaction engine: it turns a
// list of install/uninstall actions into a dependency-ordered
// plan, then drives that plan through the download manager and package
// store, reporting typed progress events and accepting cooperative
// cancellation. Grounded on PackageTransaction/PackageAction in
// original_source/pahkat-cli/src/install.rs and pahkat-client-core.
package transaction

import (
	"errors"
	"fmt"

	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/resolver"
)

// ActionKind discriminates a planned action.
type ActionKind int

const (
	Install ActionKind = iota
	Uninstall
)

func (k ActionKind) String() string {
	if k == Uninstall {
		return "Uninstall"
	}
	return "Install"
}

// Action is one user-requested step: install or uninstall a key.
type Action struct {
	Kind ActionKind
	Key  pahkattype.PackageKey
}

// Plan errors, forming the "Transaction" bucket of the error taxonomy.
var (
	ErrInvalidPlan       = errors.New("transaction: invalid plan")
	ErrMissingDependency = errors.New("transaction: missing dependency")
	ErrVersionConflict   = errors.New("transaction: version conflict")
	ErrDependencyCycle   = errors.New("transaction: dependency cycle")
	ErrConflictingActions = errors.New("transaction: conflicting actions")
)

// step is one entry of a built Plan: an action plus, for installs, the
// resolved target it will apply.
type step struct {
	action   Action
	resolved resolver.Result
	explicit bool
}

// Plan is a topologically sorted, deduplicated, conflict-free sequence
// of actions.
type Plan struct {
	steps []step
}

// Len returns the number of steps in the plan.
func (p *Plan) Len() int { return len(p.steps) }

// Actions returns the plan's actions in execution order.
func (p *Plan) Actions() []Action {
	out := make([]Action, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.action
	}
	return out
}

// Build constructs a Plan from a caller-supplied list of actions against
// snapshot.
//
// Install actions pull in their full dependency closure: each
// dependency is resolved the same way as an explicit install and
// ordered to precede its dependent. A dependency that fails to resolve
// yields MissingDependency; two actions requiring different version
// constraints for the same dependency id within a repository yield
// VersionConflict; a cycle among installs yields DependencyCycle.
//
// Uninstall actions are ordered so that, among the uninstall actions
// present in the same plan, a package is removed only after packages
// that depend on it (resolved against snapshot on a best-effort basis:
// a package missing from the current index contributes no known
// dependencies to this ordering, since its dependency edges are not
// needed to satisfy the uninstall itself).
//
// A key that appears as both an install and an uninstall target fails
// the whole plan with ConflictingActions.
func Build(actions []Action, snapshot map[string]*pahkattype.Index) (*Plan, error) {
	installKeys := map[string]bool{}
	uninstallKeys := map[string]bool{}
	for _, a := range actions {
		k := a.Key.String()
		if a.Kind == Install {
			installKeys[k] = true
		} else {
			uninstallKeys[k] = true
		}
	}
	for k := range installKeys {
		if uninstallKeys[k] {
			return nil, fmt.Errorf("%w: %s", ErrConflictingActions, k)
		}
	}

	installOrder, err := planInstalls(actions, snapshot)
	if err != nil {
		return nil, err
	}

	uninstallOrder, err := planUninstalls(actions, snapshot)
	if err != nil {
		return nil, err
	}

	steps := make([]step, 0, len(installOrder)+len(uninstallOrder))
	steps = append(steps, installOrder...)
	steps = append(steps, uninstallOrder...)
	return &Plan{steps: steps}, nil
}

// planInstalls resolves every explicit install action and its transitive
// dependency closure, returning them in dependency-first topological
// order.
func planInstalls(actions []Action, snapshot map[string]*pahkattype.Index) ([]step, error) {
	nodes := map[string]*step{}
	constraints := map[string]string{}
	state := map[string]int{} // 0 unvisited, 1 visiting, 2 done
	var order []step

	var visit func(key pahkattype.PackageKey, explicit bool) error
	visit = func(key pahkattype.PackageKey, explicit bool) error {
		k := key.String()
		switch state[k] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, k)
		}
		state[k] = 1

		res, err := resolver.Resolve(key, key.Query, snapshot)
		if err != nil {
			state[k] = 2
			if explicit {
				return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
			}
			return fmt.Errorf("%w: %s", ErrMissingDependency, key.PackageID)
		}

		for depID, wantVersion := range res.Target.Dependencies {
			scope := key.RepositoryURL + "#" + depID
			if prev, ok := constraints[scope]; ok && prev != wantVersion {
				return fmt.Errorf("%w: %s requires %q and %q", ErrVersionConflict, depID, prev, wantVersion)
			}
			constraints[scope] = wantVersion

			depKey := pahkattype.PackageKey{RepositoryURL: key.RepositoryURL, PackageID: depID}
			if err := visit(depKey, false); err != nil {
				return err
			}
		}

		if _, ok := nodes[k]; !ok {
			s := step{action: Action{Kind: Install, Key: key}, resolved: res, explicit: explicit}
			nodes[k] = &s
			order = append(order, s)
		}
		state[k] = 2
		return nil
	}

	for _, a := range actions {
		if a.Kind != Install {
			continue
		}
		if err := visit(a.Key, true); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// planUninstalls orders the plan's explicit uninstall actions so that,
// among themselves, a package is removed only after packages that
// depend on it.
func planUninstalls(actions []Action, snapshot map[string]*pahkattype.Index) ([]step, error) {
	var explicit []Action
	for _, a := range actions {
		if a.Kind == Uninstall {
			explicit = append(explicit, a)
		}
	}
	if len(explicit) == 0 {
		return nil, nil
	}

	deps := map[string][]string{} // key string -> dependency key strings, restricted to this action set
	present := map[string]pahkattype.PackageKey{}
	for _, a := range explicit {
		present[a.Key.String()] = a.Key
	}

	for _, a := range explicit {
		k := a.Key.String()
		res, err := resolver.Resolve(a.Key, a.Key.Query, snapshot)
		if err != nil {
			deps[k] = nil // package no longer in index; no known edges
			continue
		}
		for depID := range res.Target.Dependencies {
			depKey := pahkattype.PackageKey{RepositoryURL: a.Key.RepositoryURL, PackageID: depID}
			if _, ok := present[depKey.String()]; ok {
				deps[k] = append(deps[k], depKey.String())
			}
		}
	}

	// Reverse topological order relative to deps (dependent-before-dependency):
	// a standard dependency-first DFS post-order, then reversed, since
	// "dependent before dependency" is the mirror of "dependency before
	// dependent".
	state := map[string]int{}
	var order []string

	var visit func(k string) error
	visit = func(k string) error {
		switch state[k] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, k)
		}
		state[k] = 1
		for _, d := range deps[k] {
			if err := visit(d); err != nil {
				return err
			}
		}
		order = append(order, k)
		state[k] = 2
		return nil
	}

	for _, a := range explicit {
		if err := visit(a.Key.String()); err != nil {
			return nil, err
		}
	}

	// order is dependency-first; uninstalls need dependent-first, so reverse.
	steps := make([]step, len(order))
	for i, k := range order {
		steps[len(order)-1-i] = step{action: Action{Kind: Uninstall, Key: present[k]}, explicit: true}
	}
	return steps, nil
}
