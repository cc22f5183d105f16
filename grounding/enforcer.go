package grounding

import (
	"fmt"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

// State is the per-request enforcement state.
type State string

const (
	StateNotRequested State = "NOT_REQUESTED"
	StateAttempting   State = "ATTEMPTING"
	StateSatisfied    State = "SATISFIED"
	StateFailedClosed State = "FAILED_CLOSED"
)

// Reason codes populated on any non-satisfied outcome.
const (
	ReasonToolNotInvoked     = "tool_not_invoked"
	ReasonNoAnchoredEvidence = "no_anchored_evidence"
	ReasonCapabilityMismatch = "capability_mismatch"
	ReasonEmptyResults       = "empty_results"
)

// Enforcer decides whether a request's grounding requirement was met. It is
// stateless; each call evaluates one request.
type Enforcer struct{}

// PreCheck runs before any dispatch. REQUIRED mode against a provider that
// cannot force tool invocation fails closed immediately, with zero dispatch
// attempts, rather than dispatching and hoping.
func (Enforcer) PreCheck(mode core.GroundingMode, caps core.Capabilities) error {
	if mode != core.GroundingModeRequired {
		return nil
	}
	if !caps.CanForceToolInvocation {
		return core.NewError(core.ErrGroundingRequired,
			fmt.Sprintf("provider %s cannot force tool invocation", caps.Provider),
			core.WithDetails(map[string]any{"why_not_grounded": ReasonCapabilityMismatch}))
	}
	return nil
}

// Evaluate computes the terminal outcome after classification. attempted
// reports whether a grounding tool was dispatched at least once; emptyResult
// reports whether the provider signaled a tool run that produced nothing.
//
// AUTO is satisfied by model discretion: a tool attempt with zero citations
// counts, and so does the model declining to search at all. REQUIRED
// additionally demands at least one anchored citation; unlinked-only
// evidence never satisfies it.
func (Enforcer) Evaluate(mode core.GroundingMode, attempted bool, toolCalls int, counts core.CitationCounts, emptyResult bool) (core.GroundingOutcome, State, error) {
	outcome := core.GroundingOutcome{
		Attempted:     attempted,
		Effective:     attempted && counts.Total > 0,
		ToolCallCount: toolCalls,
		AnchoredCount: counts.Anchored,
		UnlinkedCount: counts.Unlinked,
	}

	switch mode {
	case core.GroundingModeNone, "":
		return outcome, StateNotRequested, nil

	case core.GroundingModeAuto:
		// WhyNotGrounded here is informational, not a failure code: AUTO is
		// always satisfied, and the reason only records why the response
		// ended up without effective grounding so the telemetry row can
		// explain ungrounded answers. Enforcement failures carry the reason
		// inside a FAILED_CLOSED error instead.
		if !attempted {
			outcome.WhyNotGrounded = ReasonToolNotInvoked
		} else if emptyResult {
			outcome.WhyNotGrounded = ReasonEmptyResults
		} else if counts.Total == 0 {
			outcome.WhyNotGrounded = ReasonEmptyResults
		}
		return outcome, StateSatisfied, nil

	case core.GroundingModeRequired:
		switch {
		case !attempted:
			outcome.WhyNotGrounded = ReasonToolNotInvoked
		case emptyResult && counts.Total == 0:
			outcome.WhyNotGrounded = ReasonEmptyResults
		case counts.Anchored == 0:
			outcome.WhyNotGrounded = ReasonNoAnchoredEvidence
		default:
			return outcome, StateSatisfied, nil
		}
		err := core.NewError(core.ErrGroundingRequired,
			fmt.Sprintf("grounding required but not satisfied: %s", outcome.WhyNotGrounded),
			core.WithDetails(map[string]any{"why_not_grounded": outcome.WhyNotGrounded}))
		return outcome, StateFailedClosed, err
	}

	return outcome, StateNotRequested, core.NewError(core.ErrBadRequest,
		fmt.Sprintf("unknown grounding mode %q", mode))
}
