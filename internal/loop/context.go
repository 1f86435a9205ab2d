package loop

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContextBudget is returned when the summary and criticism alone leave no
// room in the context budget.
var ErrContextBudget = errors.New("context budget exceeded")

// BuildContext assembles the model context for s:
//
//	SUMMARY
//	<summary>
//	PREV ACTIONS:
//	<records>
//	<criticism>
//
// Records are recalled newest-last within whatever budget the frame leaves.
// The result only changes when memory or criticism change.
func BuildContext(s *Session) (string, error) {
	summary := s.Memory.Summary()

	summaryTokens := s.Estimator.Estimate(summary)
	criticismTokens := 0
	if s.Criticism != "" {
		criticismTokens = s.Estimator.Estimate(s.Criticism)
	}
	if summaryTokens+criticismTokens > s.MaxContextTokens {
		return "", fmt.Errorf("%w: summary (%d tokens) and criticism (%d tokens) exceed %d",
			ErrContextBudget, summaryTokens, criticismTokens, s.MaxContextTokens)
	}

	overhead := s.Estimator.Estimate(frame(summary, "", s.Criticism))
	if overhead > s.MaxContextTokens {
		return "", fmt.Errorf("%w: context frame needs %d tokens, limit %d",
			ErrContextBudget, overhead, s.MaxContextTokens)
	}

	limit := s.RecallLimit
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	records := s.Memory.Recall(limit, s.MaxContextTokens-overhead)
	return frame(summary, strings.Join(records, "\n"), s.Criticism), nil
}

func frame(summary, records, criticism string) string {
	return "SUMMARY\n" + summary + "\nPREV ACTIONS:\n" + records + "\n" + criticism
}
