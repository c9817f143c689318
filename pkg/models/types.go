package models

import (
	"fmt"
	"strings"
)

// RunStatus represents the status of an annealing run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ParseRunStatus parses a status name case-insensitively. Unknown names yield "".
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RunStatusPending:
		return RunStatusPending
	case RunStatusRunning:
		return RunStatusRunning
	case RunStatusCompleted:
		return RunStatusCompleted
	case RunStatusFailed:
		return RunStatusFailed
	case RunStatusCancelled:
		return RunStatusCancelled
	}
	return ""
}

// StageKind distinguishes the two kinds of simulation stage
type StageKind string

const (
	StageKindNVT          StageKind = "nvt"
	StageKindMinimization StageKind = "minimization"
)

// MoleculeSpec describes the adsorbate loaded into the framework.
type MoleculeSpec struct {
	Name        string  `yaml:"name" json:"name"`
	Forcefield  string  `yaml:"forcefield" json:"forcefield"`
	MolSatDens  float64 `yaml:"molsatdens,omitempty" json:"molsatdens,omitempty"`
	ProbeRadius float64 `yaml:"proberad,omitempty" json:"proberad,omitempty"`
	Charged     bool    `yaml:"charged" json:"charged"`
	SingleBead  bool    `yaml:"singlebead" json:"singlebead"`
}

// Validate checks the fields the stage document and force-field builder rely on
func (m MoleculeSpec) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("molecule name cannot be empty")
	}
	if strings.ContainsAny(m.Name, " \t/") {
		return fmt.Errorf("molecule name %q cannot contain whitespace or '/'", m.Name)
	}
	if strings.TrimSpace(m.Forcefield) == "" {
		return fmt.Errorf("molecule %s: forcefield cannot be empty", m.Name)
	}
	return nil
}

// Energy keys read from framework_1.general of every stage's output parameters
const (
	KeyHostAdsTotal   = "energy_host/ads_tot_final"
	KeyHostAdsVdW     = "energy_host/ads_vdw_final"
	KeyHostAdsCoulomb = "energy_host/ads_coulomb_final"
	KeyAdsAdsTotal    = "energy_ads/ads_tot_final"
	KeyAdsAdsVdW      = "energy_ads/ads_vdw_final"
	KeyAdsAdsCoulomb  = "energy_ads/ads_coulomb_final"

	EnergyUnit = "kJ/mol"
)

// EnergyKeys lists the energy components in report order
var EnergyKeys = []string{
	KeyHostAdsTotal,
	KeyHostAdsVdW,
	KeyHostAdsCoulomb,
	KeyAdsAdsTotal,
	KeyAdsAdsVdW,
	KeyAdsAdsCoulomb,
}

// EnergyReport is the aggregated energy series of an annealing run: one entry per
// NVT stage in submission order followed by one entry for the final minimization.
type EnergyReport struct {
	NumberOfMolecules int       `json:"number_of_molecules" yaml:"number_of_molecules"`
	Description       []string  `json:"description" yaml:"description"`
	EnergyUnit        string    `json:"energy_unit" yaml:"energy_unit"`
	HostAdsTotal      []float64 `json:"energy_host/ads_tot_final" yaml:"energy_host/ads_tot_final"`
	HostAdsVdW        []float64 `json:"energy_host/ads_vdw_final" yaml:"energy_host/ads_vdw_final"`
	HostAdsCoulomb    []float64 `json:"energy_host/ads_coulomb_final" yaml:"energy_host/ads_coulomb_final"`
	AdsAdsTotal       []float64 `json:"energy_ads/ads_tot_final" yaml:"energy_ads/ads_tot_final"`
	AdsAdsVdW         []float64 `json:"energy_ads/ads_vdw_final" yaml:"energy_ads/ads_vdw_final"`
	AdsAdsCoulomb     []float64 `json:"energy_ads/ads_coulomb_final" yaml:"energy_ads/ads_coulomb_final"`
}

// Series returns a pointer to the series stored under one of EnergyKeys, or nil.
func (r *EnergyReport) Series(key string) *[]float64 {
	switch key {
	case KeyHostAdsTotal:
		return &r.HostAdsTotal
	case KeyHostAdsVdW:
		return &r.HostAdsVdW
	case KeyHostAdsCoulomb:
		return &r.HostAdsCoulomb
	case KeyAdsAdsTotal:
		return &r.AdsAdsTotal
	case KeyAdsAdsVdW:
		return &r.AdsAdsVdW
	case KeyAdsAdsCoulomb:
		return &r.AdsAdsCoulomb
	}
	return nil
}

// Len returns the number of report entries
func (r *EnergyReport) Len() int {
	return len(r.Description)
}
