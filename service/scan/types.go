package scan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RiskLevel classifies the overall risk of a scanned contract.
// It is a closed set; unknown values are rejected at decode time.
type RiskLevel string

const (
	RiskSafe      RiskLevel = "safe"
	RiskWarning   RiskLevel = "warning"
	RiskDangerous RiskLevel = "dangerous"
)

// Valid reports whether the risk level is one of the known variants.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskSafe, RiskWarning, RiskDangerous:
		return true
	}
	return false
}

// UnmarshalJSON validates the risk level at the decode boundary.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level := RiskLevel(s)
	if !level.Valid() {
		return fmt.Errorf("invalid risk level %q", s)
	}
	*r = level
	return nil
}

// CheckStatus is the outcome of a single security check.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckWarning CheckStatus = "warning"
	CheckFail    CheckStatus = "fail"
)

// Valid reports whether the check status is one of the known variants.
func (s CheckStatus) Valid() bool {
	switch s {
	case CheckPass, CheckWarning, CheckFail:
		return true
	}
	return false
}

// UnmarshalJSON validates the check status at the decode boundary.
func (s *CheckStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := CheckStatus(str)
	if !status.Valid() {
		return fmt.Errorf("invalid check status %q", str)
	}
	*s = status
	return nil
}

// RiskAssessment is the headline classification for a scan.
type RiskAssessment struct {
	Level       RiskLevel `json:"level"`
	Score       float64   `json:"score"` // 0.0 (benign) to 10.0 (critical)
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// SecurityCheck is one named check in a scan report. Order is meaningful
// and preserved from the scanner.
type SecurityCheck struct {
	Name        string      `json:"name"`
	Status      CheckStatus `json:"status"`
	Description string      `json:"description"`
}

// MarketSeed carries the initial prediction-market distribution produced
// alongside a scan. NoPercentage is derived, never stored independently.
type MarketSeed struct {
	YesPercentage int     `json:"yes_percentage"`
	TotalStaked   float64 `json:"total_staked"`
	Participants  int     `json:"participants"`
}

// Result is a complete scan report for one contract address.
type Result struct {
	ID                string          `json:"id"`
	ContractAddress   string          `json:"contract_address"`
	Risk              RiskAssessment  `json:"risk"`
	SecurityChecks    []SecurityCheck `json:"security_checks"`
	ExploitLikelihood int             `json:"exploit_likelihood"` // percentage, 0-100
	MarketSeed        MarketSeed      `json:"market_seed"`
	ScannedAt         time.Time       `json:"scanned_at"`
}

// Validate checks a Result for well-formedness. Scanner implementations
// are untrusted collaborators; everything crossing this boundary gets
// validated before it seeds a market or reaches a caller.
func (r *Result) Validate() error {
	if err := ValidateAddress(r.ContractAddress); err != nil {
		return err
	}
	if !r.Risk.Level.Valid() {
		return fmt.Errorf("invalid risk level %q", r.Risk.Level)
	}
	if r.Risk.Score < 0 || r.Risk.Score > 10 {
		return fmt.Errorf("risk score %v out of range [0,10]", r.Risk.Score)
	}
	if r.ExploitLikelihood < 0 || r.ExploitLikelihood > 100 {
		return fmt.Errorf("exploit likelihood %d out of range [0,100]", r.ExploitLikelihood)
	}
	for i, check := range r.SecurityChecks {
		if check.Name == "" {
			return fmt.Errorf("security check %d has no name", i)
		}
		if !check.Status.Valid() {
			return fmt.Errorf("security check %q has invalid status %q", check.Name, check.Status)
		}
	}
	if r.MarketSeed.YesPercentage < 0 || r.MarketSeed.YesPercentage > 100 {
		return fmt.Errorf("market seed yes percentage %d out of range [0,100]", r.MarketSeed.YesPercentage)
	}
	if r.MarketSeed.TotalStaked < 0 {
		return fmt.Errorf("market seed total staked %v is negative", r.MarketSeed.TotalStaked)
	}
	if r.MarketSeed.Participants < 0 {
		return fmt.Errorf("market seed participants %d is negative", r.MarketSeed.Participants)
	}
	return nil
}

// ValidateAddress checks that an address is a 0x-prefixed 20-byte hex string.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid contract address %q: must be 0x followed by 40 hex characters", address)
	}
	return nil
}

// NormalizeAddress lowercases a valid hex address so it can be used as a
// map or database key. Callers must validate first.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}
