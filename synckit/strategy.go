package synckit

import (
	"fmt"
	"strings"

	"github.com/c0deZ3R0/go-sync-merge/errors"
)

// Strategy selects how a true conflict is settled for an entity type.
type Strategy int

const (
	// LastWriterWins keeps the version with the later timestamp.
	LastWriterWins Strategy = iota
	// FirstWriterWins keeps the version with the earlier timestamp.
	FirstWriterWins
	// FieldLevelMerge merges field by field using a FieldMerger.
	FieldLevelMerge
	// KeepBoth is accepted for configuration compatibility and resolves as LastWriterWins.
	KeepBoth
	// Custom delegates to a registered function.
	Custom
)

// Unconfigured is reported as the requested strategy for entity types that
// have no configuration. It cannot be configured or parsed.
const Unconfigured Strategy = -1

var strategyNames = map[Strategy]string{
	LastWriterWins:  "LastWriterWins",
	FirstWriterWins: "FirstWriterWins",
	FieldLevelMerge: "FieldLevelMerge",
	KeepBoth:        "KeepBoth",
	Custom:          "Custom",
}

func (s Strategy) String() string {
	if s == Unconfigured {
		return "unconfigured"
	}
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy accepts a strategy name in any case, with or without
// underscores or dashes, plus the short forms lww and fww.
func ParseStrategy(s string) (Strategy, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "lastwriterwins", "lastwritewins", "lww":
		return LastWriterWins, nil
	case "firstwriterwins", "firstwritewins", "fww":
		return FirstWriterWins, nil
	case "fieldlevelmerge", "fieldmerge", "field":
		return FieldLevelMerge, nil
	case "keepboth":
		return KeepBoth, nil
	case "custom":
		return Custom, nil
	default:
		return 0, errors.NewConfigurationError(errors.OpConfigure, fmt.Errorf("unknown resolution strategy: %q", s))
	}
}
