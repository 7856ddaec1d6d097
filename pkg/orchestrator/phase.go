package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

// Phase is one stage of the generation pipeline.
type Phase uint8

const (
	ChartOfAccounts Phase = iota
	MasterData
	DocumentFlows
	JournalEntries
	AnomalyInjection
	BalanceValidation
	DataQuality
	Complete
)

var phaseNames = [...]string{
	ChartOfAccounts:   "chart_of_accounts",
	MasterData:        "master_data",
	DocumentFlows:     "document_flows",
	JournalEntries:    "journal_entries",
	AnomalyInjection:  "anomaly_injection",
	BalanceValidation: "balance_validation",
	DataQuality:       "data_quality",
	Complete:          "complete",
}

// AllPhases lists every phase in pipeline order.
var AllPhases = []Phase{
	ChartOfAccounts,
	MasterData,
	DocumentFlows,
	JournalEntries,
	AnomalyInjection,
	BalanceValidation,
	DataQuality,
	Complete,
}

// Name returns the snake_case phase name used in events and config.
func (p Phase) Name() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase_%d", uint8(p))
}

func (p Phase) String() string { return p.Name() }

// ParsePhase accepts the snake_case name, case insensitive.
func ParsePhase(s string) (Phase, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// ParsePhases parses a list of phase names, rejecting duplicates.
func ParsePhases(names []string) ([]Phase, error) {
	phases := make([]Phase, 0, len(names))
	seen := make(map[Phase]bool, len(names))
	for _, n := range names {
		p, err := ParsePhase(n)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			return nil, fmt.Errorf("phase %q listed twice", n)
		}
		seen[p] = true
		phases = append(phases, p)
	}
	return phases, nil
}

// PhaseFunc generates the items of one phase through the emitter. It should
// return as soon as Emit returns false or ShouldStop reports true.
type PhaseFunc func(ctx context.Context, em *Emitter) error

// Registry maps each phase to its generation logic.
type Registry map[Phase]PhaseFunc
