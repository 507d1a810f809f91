package sync

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/rjrsync/rjrsync/internal/boss"
)

// Behavior is one of the four policy outcomes a user can pick for a class
// of action. A prompt answer applies to a single entry only; there is no
// durable "apply to all" answer.
type Behavior int

const (
	BehaviorPrompt Behavior = iota
	BehaviorSkip
	BehaviorOverwrite
	BehaviorError
)

// ParseBehavior parses a --dest-* flag value.
func ParseBehavior(s string) (Behavior, error) {
	switch s {
	case "prompt":
		return BehaviorPrompt, nil
	case "skip":
		return BehaviorSkip, nil
	case "overwrite", "delete":
		return BehaviorOverwrite, nil
	case "error":
		return BehaviorError, nil
	default:
		return 0, errors.Errorf("invalid policy %q: must be one of prompt, skip, overwrite, error", s)
	}
}

// Policies bundles the four independently-configurable policy classes
// named in spec.md §4.7.4.
type Policies struct {
	DestFileNewer        Behavior
	DestFileOlder        Behavior
	DestEntryNeedsDelete Behavior
	DestRootNeedsDelete  Behavior
}

// resolver applies a Policies set to individual entries. Unlike
// confirm_actions's richer PromptResult (which lets a single answer
// durably override the policy for every remaining entry of the same
// class), this asks once per entry: Prompter.Confirm only returns a
// plain yes/no, so there's no channel for an "apply to all" answer. A
// caller wanting that behavior can still get it by resolving a policy to
// BehaviorSkip/BehaviorOverwrite directly after the first prompt.
type resolver struct {
	policies Policies
	prompter boss.Prompter
}

func newResolver(policies Policies, prompter boss.Prompter) *resolver {
	return &resolver{policies: policies, prompter: prompter}
}

// resolve returns true if the action should proceed, false if it should be
// skipped (including when the prompter's answer is no), or an error if the
// policy is Error, no prompter is configured, or the prompter itself fails.
func (r *resolver) resolve(class Behavior, message string) (proceed bool, err error) {
	switch class {
	case BehaviorSkip:
		return false, nil
	case BehaviorOverwrite:
		return true, nil
	case BehaviorError:
		return false, errors.Errorf("%s (policy is 'error')", message)
	case BehaviorPrompt:
		if r.prompter == nil {
			return false, errors.Errorf("%s, and no prompter is configured to ask", message)
		}
		ok, err := r.prompter.Confirm(fmt.Sprintf("%s. Proceed?", message))
		if err != nil {
			return false, err
		}
		return ok, nil
	default:
		return false, errors.Errorf("invalid behavior %d", class)
	}
}
