package grounding

import (
	"testing"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

func TestPreCheckRequiredNeedsForcingCapability(t *testing.T) {
	var enforcer Enforcer

	err := enforcer.PreCheck(core.GroundingModeRequired, core.Capabilities{Provider: "openai", CanForceToolInvocation: false})
	if err == nil {
		t.Fatalf("REQUIRED against a non-forcing provider must fail before dispatch")
	}
	if !core.IsGroundingRequired(err) {
		t.Fatalf("expected grounding_required_failed, got %v", err)
	}

	if err := enforcer.PreCheck(core.GroundingModeRequired, core.Capabilities{Provider: "vertex", CanForceToolInvocation: true}); err != nil {
		t.Fatalf("forcing provider should pass pre-check: %v", err)
	}
	if err := enforcer.PreCheck(core.GroundingModeAuto, core.Capabilities{Provider: "openai"}); err != nil {
		t.Fatalf("AUTO never fails pre-check: %v", err)
	}
}

func TestEvaluateNone(t *testing.T) {
	var enforcer Enforcer
	outcome, state, err := enforcer.Evaluate(core.GroundingModeNone, false, 0, core.CitationCounts{}, false)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if state != StateNotRequested {
		t.Fatalf("unexpected state %s", state)
	}
	if outcome.Attempted || outcome.Effective {
		t.Fatalf("NONE must not report grounding: %+v", outcome)
	}
}

func TestEvaluateAutoRespectsModelDiscretion(t *testing.T) {
	var enforcer Enforcer

	// Model searched and found nothing usable.
	outcome, state, err := enforcer.Evaluate(core.GroundingModeAuto, true, 1, core.CitationCounts{}, false)
	if err != nil || state != StateSatisfied {
		t.Fatalf("AUTO with an attempt must satisfy: state=%s err=%v", state, err)
	}
	if outcome.Effective {
		t.Fatalf("zero citations cannot be effective")
	}

	// Model declined to search at all.
	outcome, state, err = enforcer.Evaluate(core.GroundingModeAuto, false, 0, core.CitationCounts{}, false)
	if err != nil || state != StateSatisfied {
		t.Fatalf("AUTO without an attempt must still satisfy: state=%s err=%v", state, err)
	}
	if outcome.WhyNotGrounded != ReasonToolNotInvoked {
		t.Fatalf("expected reason %s, got %q", ReasonToolNotInvoked, outcome.WhyNotGrounded)
	}
}

func TestEvaluateRequiredDemandsAnchoredEvidence(t *testing.T) {
	var enforcer Enforcer

	// Five unlinked items and zero anchored: fail closed regardless of volume.
	counts := core.CitationCounts{Unlinked: 5, Total: 5}
	outcome, state, err := enforcer.Evaluate(core.GroundingModeRequired, true, 2, counts, false)
	if state != StateFailedClosed {
		t.Fatalf("unlinked-only evidence must fail REQUIRED, got %s", state)
	}
	if !core.IsGroundingRequired(err) {
		t.Fatalf("expected grounding_required_failed, got %v", err)
	}
	if outcome.WhyNotGrounded != ReasonNoAnchoredEvidence {
		t.Fatalf("expected reason %s, got %q", ReasonNoAnchoredEvidence, outcome.WhyNotGrounded)
	}

	// Same evidence under AUTO succeeds.
	_, state, err = enforcer.Evaluate(core.GroundingModeAuto, true, 2, counts, false)
	if err != nil || state != StateSatisfied {
		t.Fatalf("AUTO with unlinked evidence must satisfy: state=%s err=%v", state, err)
	}

	// One anchored citation satisfies REQUIRED.
	counts = core.CitationCounts{Anchored: 1, Unlinked: 4, Total: 5}
	outcome, state, err = enforcer.Evaluate(core.GroundingModeRequired, true, 2, counts, false)
	if err != nil || state != StateSatisfied {
		t.Fatalf("anchored evidence must satisfy REQUIRED: state=%s err=%v", state, err)
	}
	if !outcome.Effective || outcome.WhyNotGrounded != "" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestEvaluateRequiredDistinguishesEmptyFromNotInvoked(t *testing.T) {
	var enforcer Enforcer

	outcome, state, _ := enforcer.Evaluate(core.GroundingModeRequired, false, 0, core.CitationCounts{}, false)
	if state != StateFailedClosed || outcome.WhyNotGrounded != ReasonToolNotInvoked {
		t.Fatalf("expected tool_not_invoked failure, got state=%s reason=%q", state, outcome.WhyNotGrounded)
	}

	outcome, state, _ = enforcer.Evaluate(core.GroundingModeRequired, true, 1, core.CitationCounts{}, true)
	if state != StateFailedClosed || outcome.WhyNotGrounded != ReasonEmptyResults {
		t.Fatalf("expected empty_results failure, got state=%s reason=%q", state, outcome.WhyNotGrounded)
	}
}
