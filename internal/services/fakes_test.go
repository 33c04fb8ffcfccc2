package services

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tally-claim/internal/events"
	"tally-claim/internal/models"
	"tally-claim/internal/types"
)

var (
	registryAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	pollAddr     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	mpAddr       = common.HexToAddress("0x4444444444444444444444444444444444444444")
	tallyAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	signerAddr   = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

var errRPC = errors.New("rpc unavailable")

func newTestLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func hasEntry(hook *logtest.Hook, level logrus.Level, contains string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, contains) {
			return true
		}
	}
	return false
}

func writeTallyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ===== registry =====

type fakeRegistry struct {
	contracts *types.PollContracts
	pollsErr  error
	depth     uint8
	depthErr  error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		contracts: &types.PollContracts{Poll: pollAddr, MessageProcessor: mpAddr, Tally: tallyAddr},
		depth:     1,
	}
}

func (r *fakeRegistry) Address() common.Address { return registryAddr }

func (r *fakeRegistry) Polls(_ context.Context, _ *big.Int) (*types.PollContracts, error) {
	if r.pollsErr != nil {
		return nil, r.pollsErr
	}
	c := *r.contracts
	return &c, nil
}

func (r *fakeRegistry) VoteOptionTreeDepth(_ context.Context, _ common.Address) (uint8, error) {
	return r.depth, r.depthErr
}

// ===== tally contract =====

type fakeTally struct {
	mu sync.Mutex

	storedValue *big.Int
	storedSet   bool
	storedErr   error

	verifyResult bool
	verifyErr    error
	perVOResult  bool
	perVOErr     error

	paused  bool
	claimed bool

	amount    *big.Int
	amountErr error
	tallied   bool
	diagErr   error

	simulateErr error
	revert      *types.DecodedRevert
	revertData  []byte

	calls       map[string]int
	lastQuery   *types.TallyResultQuery
	lastPerVO   *types.PerVOSpentQuery
	amountArgs  []*big.Int
	simulatedBy common.Address
}

func newFakeTally() *fakeTally {
	return &fakeTally{
		storedValue:  big.NewInt(50),
		storedSet:    true,
		verifyResult: true,
		perVOResult:  true,
		amount:       big.NewInt(500),
		tallied:      true,
		calls:        make(map[string]int),
	}
}

func (f *fakeTally) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeTally) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeTally) Address() common.Address { return tallyAddr }

func (f *fakeTally) TallyResult(_ context.Context, _ *big.Int) (*big.Int, bool, error) {
	f.record("tallyResults")
	if f.storedErr != nil {
		return nil, false, f.storedErr
	}
	return f.storedValue, f.storedSet, nil
}

func (f *fakeTally) VerifyTallyResult(_ context.Context, q *types.TallyResultQuery) (bool, error) {
	f.record("verifyTallyResult")
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	return f.verifyResult, f.verifyErr
}

func (f *fakeTally) VerifyPerVOSpentVoiceCredits(_ context.Context, q *types.PerVOSpentQuery) (bool, error) {
	f.record("verifyPerVOSpentVoiceCredits")
	f.mu.Lock()
	f.lastPerVO = q
	f.mu.Unlock()
	return f.perVOResult, f.perVOErr
}

func (f *fakeTally) IsPaused(_ context.Context) (bool, error) {
	f.record("paused")
	return f.paused, nil
}

func (f *fakeTally) IsClaimed(_ context.Context, _ *big.Int) (bool, error) {
	f.record("claimed")
	return f.claimed, nil
}

func (f *fakeTally) AllocatedAmount(_ context.Context, index, voiceCredits *big.Int) (*big.Int, error) {
	f.record("getAllocatedAmount")
	f.mu.Lock()
	f.amountArgs = []*big.Int{index, voiceCredits}
	f.mu.Unlock()
	return f.amount, f.amountErr
}

func (f *fakeTally) IsTallied(_ context.Context) (bool, error) {
	f.record("isTallied")
	return f.tallied, f.diagErr
}

func (f *fakeTally) diag(name string, v int64) (*big.Int, error) {
	f.record(name)
	if f.diagErr != nil {
		return nil, f.diagErr
	}
	return big.NewInt(v), nil
}

func (f *fakeTally) TallyBatchNum(_ context.Context) (*big.Int, error) {
	return f.diag("tallyBatchNum", 1)
}

func (f *fakeTally) TotalTallyResults(_ context.Context) (*big.Int, error) {
	return f.diag("totalTallyResults", 3)
}

func (f *fakeTally) RecipientCount(_ context.Context) (*big.Int, error) {
	return f.diag("recipientCount", 3)
}

func (f *fakeTally) Token(_ context.Context) (common.Address, error) {
	f.record("token")
	if f.diagErr != nil {
		return common.Address{}, f.diagErr
	}
	return common.HexToAddress("0x6666666666666666666666666666666666666666"), nil
}

func (f *fakeTally) TotalAmount(_ context.Context) (*big.Int, error) {
	return f.diag("totalAmount", 500)
}

func (f *fakeTally) TotalSpent(_ context.Context) (*big.Int, error) {
	return f.diag("totalSpent", 60)
}

func (f *fakeTally) VoiceCreditFactor(_ context.Context) (*big.Int, error) {
	return f.diag("voiceCreditFactor", 10)
}

func (f *fakeTally) Alpha(_ context.Context) (*big.Int, error) {
	return f.diag("alpha", 0)
}

func (f *fakeTally) TotalVotesSquares(_ context.Context) (*big.Int, error) {
	return f.diag("totalVotesSquares", 2600)
}

func (f *fakeTally) ClaimCalldata(p *types.ClaimParams) ([]byte, error) {
	return append([]byte{0xc1, 0xa1, 0x13, 0x00}, p.Index.Bytes()...), nil
}

func (f *fakeTally) SimulateClaim(_ context.Context, from common.Address, _ *types.ClaimParams) error {
	f.record("simulateClaim")
	f.mu.Lock()
	f.simulatedBy = from
	f.mu.Unlock()
	return f.simulateErr
}

func (f *fakeTally) DecodeRevert(_ error) (*types.DecodedRevert, []byte) {
	return f.revert, f.revertData
}

// ===== sender =====

type fakeSender struct {
	mu      sync.Mutex
	sends   int
	to      common.Address
	data    []byte
	err     error
	receipt *types.TxReceipt
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		receipt: &types.TxReceipt{
			TxHash:      common.HexToHash("0xabc"),
			BlockNumber: 42,
			GasUsed:     21000,
			GasPrice:    big.NewInt(1),
		},
	}
}

func (s *fakeSender) From() common.Address { return signerAddr }

func (s *fakeSender) SendAndWait(_ context.Context, to common.Address, data []byte) (*types.TxReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	s.to = to
	s.data = data
	if s.err != nil {
		return nil, s.err
	}
	return s.receipt, nil
}

// ===== audit store / publisher =====

type fakeStore struct {
	mu        sync.Mutex
	records   []*models.ClaimRecord
	prior     []*models.ClaimRecord
	createErr error
}

func (s *fakeStore) Create(_ context.Context, record *models.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("record not found")
}

func (s *fakeStore) FindByRecipient(_ context.Context, _, _ string, _ int) ([]*models.ClaimRecord, error) {
	return s.prior, nil
}

type fakePublisher struct {
	events []*events.ClaimOutcomeEvent
	err    error
}

func (p *fakePublisher) PublishClaimOutcome(event *events.ClaimOutcomeEvent) error {
	p.events = append(p.events, event)
	return p.err
}
