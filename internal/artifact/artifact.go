// Package artifact loads the tally results file produced by the offline
// tally computation.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"tally-claim/internal/types"
)

// TallyResults is a committed vector of per-option values.
type TallyResults struct {
	Tally      []*big.Int
	Salt       *big.Int
	Commitment *big.Int
}

// SpentVoiceCredits is the committed total of spent voice credits.
type SpentVoiceCredits struct {
	Spent      *big.Int
	Salt       *big.Int
	Commitment *big.Int
}

// TallyArtifact is the parsed tally file. It is not modified after Load.
type TallyArtifact struct {
	IsQuadratic            bool
	TallyAddress           common.Address
	Results                TallyResults
	TotalSpentVoiceCredits SpentVoiceCredits
	PerVOSpentVoiceCredits *TallyResults // set iff IsQuadratic

	// Optional provenance fields.
	MACI               common.Address
	PollID             *big.Int
	ChainID            string
	Network            string
	NewTallyCommitment *big.Int
}

// numeric accepts both JSON strings and JSON numbers.
type numeric string

func (n *numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = numeric(num.String())
	return nil
}

type rawResults struct {
	Tally      []numeric `json:"tally"`
	Salt       numeric   `json:"salt"`
	Commitment numeric   `json:"commitment"`
}

type rawSpent struct {
	Spent      numeric `json:"spent"`
	Salt       numeric `json:"salt"`
	Commitment numeric `json:"commitment"`
}

type rawArtifact struct {
	MACI                   string      `json:"maci"`
	PollID                 numeric     `json:"pollId"`
	ChainID                numeric     `json:"chainId"`
	Network                string      `json:"network"`
	IsQuadratic            *bool       `json:"isQuadratic"`
	TallyAddress           string      `json:"tallyAddress"`
	NewTallyCommitment     numeric     `json:"newTallyCommitment"`
	Results                *rawResults `json:"results"`
	TotalSpentVoiceCredits *rawSpent   `json:"totalSpentVoiceCredits"`
	PerVOSpentVoiceCredits *rawResults `json:"perVOSpentVoiceCredits"`
}

// ParseInteger parses a non-negative decimal or 0x-prefixed hex integer.
func ParseInteger(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty value")
	}
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%q is negative", s)
	}
	return v, nil
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", types.ErrArtifactMalformed, fmt.Sprintf(format, args...))
}

func requireInteger(field string, v numeric) (*big.Int, error) {
	if v == "" {
		return nil, malformed("missing %s", field)
	}
	n, err := ParseInteger(string(v))
	if err != nil {
		return nil, malformed("%s: %v", field, err)
	}
	return n, nil
}

func optionalInteger(field string, v numeric) (*big.Int, error) {
	if v == "" {
		return nil, nil
	}
	return requireInteger(field, v)
}

func parseResults(field string, raw *rawResults) (*TallyResults, error) {
	if raw == nil {
		return nil, malformed("missing %s", field)
	}
	if len(raw.Tally) == 0 {
		return nil, malformed("%s.tally is empty", field)
	}
	tally := make([]*big.Int, len(raw.Tally))
	for i, entry := range raw.Tally {
		v, err := requireInteger(fmt.Sprintf("%s.tally[%d]", field, i), entry)
		if err != nil {
			return nil, err
		}
		tally[i] = v
	}
	salt, err := requireInteger(field+".salt", raw.Salt)
	if err != nil {
		return nil, err
	}
	commitment, err := requireInteger(field+".commitment", raw.Commitment)
	if err != nil {
		return nil, err
	}
	return &TallyResults{Tally: tally, Salt: salt, Commitment: commitment}, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, malformed("%s %q is not an address", field, s)
	}
	return common.HexToAddress(s), nil
}

// Parse decodes a tally artifact from JSON.
func Parse(data []byte) (*TallyArtifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}

	results, err := parseResults("results", raw.Results)
	if err != nil {
		return nil, err
	}

	if raw.TotalSpentVoiceCredits == nil {
		return nil, malformed("missing totalSpentVoiceCredits")
	}
	spent, err := requireInteger("totalSpentVoiceCredits.spent", raw.TotalSpentVoiceCredits.Spent)
	if err != nil {
		return nil, err
	}
	spentSalt, err := requireInteger("totalSpentVoiceCredits.salt", raw.TotalSpentVoiceCredits.Salt)
	if err != nil {
		return nil, err
	}
	spentCommitment, err := requireInteger("totalSpentVoiceCredits.commitment", raw.TotalSpentVoiceCredits.Commitment)
	if err != nil {
		return nil, err
	}

	// Older tally files omit isQuadratic; per-option data implies it.
	isQuadratic := raw.PerVOSpentVoiceCredits != nil
	if raw.IsQuadratic != nil {
		isQuadratic = *raw.IsQuadratic
	}

	art := &TallyArtifact{
		IsQuadratic: isQuadratic,
		Results:     *results,
		TotalSpentVoiceCredits: SpentVoiceCredits{
			Spent:      spent,
			Salt:       spentSalt,
			Commitment: spentCommitment,
		},
		Network: raw.Network,
		ChainID: string(raw.ChainID),
	}

	if isQuadratic {
		perVO, err := parseResults("perVOSpentVoiceCredits", raw.PerVOSpentVoiceCredits)
		if err != nil {
			return nil, err
		}
		if len(perVO.Tally) != len(results.Tally) {
			return nil, malformed("perVOSpentVoiceCredits.tally has %d entries, results.tally has %d",
				len(perVO.Tally), len(results.Tally))
		}
		art.PerVOSpentVoiceCredits = perVO
	} else if raw.PerVOSpentVoiceCredits != nil {
		return nil, malformed("perVOSpentVoiceCredits present but isQuadratic is false")
	}

	if art.TallyAddress, err = parseAddress("tallyAddress", raw.TallyAddress); err != nil {
		return nil, err
	}
	if art.MACI, err = parseAddress("maci", raw.MACI); err != nil {
		return nil, err
	}
	if art.PollID, err = optionalInteger("pollId", raw.PollID); err != nil {
		return nil, err
	}
	if art.NewTallyCommitment, err = optionalInteger("newTallyCommitment", raw.NewTallyCommitment); err != nil {
		return nil, err
	}

	return art, nil
}

// Load reads and parses the tally artifact at path.
func Load(path string) (*TallyArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("failed to read tally file %s: %w", path, err)
	}
	art, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return art, nil
}

// NumOptions is the number of recipient options in the results tree.
func (a *TallyArtifact) NumOptions() int {
	return len(a.Results.Tally)
}

// VoiceCreditsFor returns the per-option voice credits used for the payout
// of index: the per-option spent credits for quadratic tallies, otherwise
// the raw tally value.
func (a *TallyArtifact) VoiceCreditsFor(index int) *big.Int {
	if a.IsQuadratic && a.PerVOSpentVoiceCredits != nil {
		return a.PerVOSpentVoiceCredits.Tally[index]
	}
	return a.Results.Tally[index]
}

// PerVOSpentHash is the per-option commitment passed to the verifier, zero
// for non-quadratic tallies.
func (a *TallyArtifact) PerVOSpentHash() *big.Int {
	if a.IsQuadratic && a.PerVOSpentVoiceCredits != nil {
		return a.PerVOSpentVoiceCredits.Commitment
	}
	return big.NewInt(0)
}
