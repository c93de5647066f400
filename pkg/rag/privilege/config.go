package privilege

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnsembleConfig is the on-disk description of the signal ensemble.
//
//	counsel_roster: ["@lawfirm.com", "gc@acme.com"]
//	counsel_roles: [counsel, attorney]
//	flags: [attorney_client, work_product, privileged]
//	legend_terms: [privileged, attorney-client, work product]
//	proximity_tag: privileged
//	weights:
//	  counsel_party: 0.5
//	  privilege_flag: 0.6
//	  privilege_marking: 0.4
//	  privileged_proximity: 0.3
type EnsembleConfig struct {
	CounselRoster []string           `yaml:"counsel_roster"`
	CounselRoles  []string           `yaml:"counsel_roles"`
	Flags         []string           `yaml:"flags"`
	LegendTerms   []string           `yaml:"legend_terms"`
	ProximityTag  string             `yaml:"proximity_tag"`
	Weights       map[string]float64 `yaml:"weights"`
}

func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		CounselRoles: []string{"counsel", "attorney", "legal"},
		Flags:        []string{"attorney_client", "work_product", "privileged"},
		LegendTerms:  []string{"privileged", "attorney-client", "attorney client", "work product"},
		ProximityTag: "privileged",
		Weights: map[string]float64{
			SignalCounselParty:        0.5,
			SignalPrivilegeFlag:       0.6,
			SignalPrivilegeMarking:    0.4,
			SignalPrivilegedProximity: 0.3,
		},
	}
}

// LoadEnsembleConfig reads a YAML file over the defaults. Keys absent from
// the file keep their default values.
func LoadEnsembleConfig(path string) (EnsembleConfig, error) {
	cfg := DefaultEnsembleConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read privilege config: %w", err)
	}

	var file EnsembleConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, fmt.Errorf("parse privilege config %s: %w", path, err)
	}
	if file.CounselRoster != nil {
		cfg.CounselRoster = file.CounselRoster
	}
	if file.CounselRoles != nil {
		cfg.CounselRoles = file.CounselRoles
	}
	if file.Flags != nil {
		cfg.Flags = file.Flags
	}
	if file.LegendTerms != nil {
		cfg.LegendTerms = file.LegendTerms
	}
	if file.ProximityTag != "" {
		cfg.ProximityTag = file.ProximityTag
	}
	for name, w := range file.Weights {
		cfg.Weights[name] = w
	}
	return cfg, nil
}

// Build composes the four standard signals in a fixed order.
func (cfg EnsembleConfig) Build() (*Classifier, error) {
	for name := range cfg.Weights {
		switch name {
		case SignalCounselParty, SignalPrivilegeFlag, SignalPrivilegeMarking, SignalPrivilegedProximity:
		default:
			return nil, fmt.Errorf("privilege: unknown signal %q in weights", name)
		}
	}
	return NewClassifier(
		Signal{Name: SignalCounselParty, Weight: cfg.Weights[SignalCounselParty], Evaluate: CounselParty(cfg.CounselRoster, cfg.CounselRoles)},
		Signal{Name: SignalPrivilegeFlag, Weight: cfg.Weights[SignalPrivilegeFlag], Evaluate: PrivilegeFlag(cfg.Flags)},
		Signal{Name: SignalPrivilegeMarking, Weight: cfg.Weights[SignalPrivilegeMarking], Evaluate: PrivilegeMarking(cfg.LegendTerms)},
		Signal{Name: SignalPrivilegedProximity, Weight: cfg.Weights[SignalPrivilegedProximity], Evaluate: PrivilegedProximity(cfg.ProximityTag)},
	)
}
