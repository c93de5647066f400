package privilege

import (
	"strings"

	"legal-discovery-be/pkg/store"
)

const (
	SignalCounselParty        = "counsel_party"
	SignalPrivilegeFlag       = "privilege_flag"
	SignalPrivilegeMarking    = "privilege_marking"
	SignalPrivilegedProximity = "privileged_proximity"
)

// Input is everything a signal may look at. Metadata is never nil when an
// evaluator runs.
type Input struct {
	Candidate    store.Candidate
	Metadata     *store.DocumentMetadata
	Neighborhood []store.Neighbor
}

// EvaluateFunc returns a score in [0,1]. Higher means more likely privileged.
type EvaluateFunc func(in Input) (float64, error)

// Signal is one weighted evidence source of the ensemble.
type Signal struct {
	Name     string
	Weight   float64
	Evaluate EvaluateFunc
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return address[i+1:]
	}
	return ""
}

// CounselParty scores 1 when any party is on the roster or carries a counsel
// role. Roster entries are full addresses or bare domains ("@firm.com" or "firm.com").
func CounselParty(roster, roles []string) EvaluateFunc {
	addresses := make(map[string]bool)
	domains := make(map[string]bool)
	for _, entry := range normalizeAll(roster) {
		switch {
		case strings.HasPrefix(entry, "@"):
			domains[entry[1:]] = true
		case strings.Contains(entry, "@"):
			addresses[entry] = true
		default:
			domains[entry] = true
		}
	}
	counselRoles := make(map[string]bool)
	for _, r := range normalizeAll(roles) {
		counselRoles[r] = true
	}

	return func(in Input) (float64, error) {
		for _, party := range in.Metadata.Parties() {
			if addresses[party] || domains[domainOf(party)] {
				return 1, nil
			}
		}
		for party, role := range in.Metadata.Roles {
			if counselRoles[strings.ToLower(strings.TrimSpace(role))] && strings.TrimSpace(party) != "" {
				return 1, nil
			}
		}
		return 0, nil
	}
}

// PrivilegeFlag scores 1 when metadata carries any of the given flags.
func PrivilegeFlag(flags []string) EvaluateFunc {
	wanted := make(map[string]bool)
	for _, f := range normalizeAll(flags) {
		wanted[f] = true
	}
	return func(in Input) (float64, error) {
		for _, f := range normalizeAll(in.Metadata.Flags) {
			if wanted[f] {
				return 1, nil
			}
		}
		return 0, nil
	}
}

// PrivilegeMarking scores 1 when the title or subject carries a legend term.
func PrivilegeMarking(terms []string) EvaluateFunc {
	legends := normalizeAll(terms)
	return func(in Input) (float64, error) {
		heading := strings.ToLower(in.Metadata.Title + " " + in.Metadata.Subject)
		for _, term := range legends {
			if strings.Contains(heading, term) {
				return 1, nil
			}
		}
		return 0, nil
	}
}

// PrivilegedProximity scores the closest neighbor tagged tag as 1/(1+distance).
func PrivilegedProximity(tag string) EvaluateFunc {
	return func(in Input) (float64, error) {
		best := 0.0
		for _, n := range in.Neighborhood {
			if !n.HasTag(tag) {
				continue
			}
			d := n.Distance
			if d < 0 {
				d = 0
			}
			if s := 1 / (1 + d); s > best {
				best = s
			}
		}
		return best, nil
	}
}
