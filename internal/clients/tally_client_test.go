package clients

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally-claim/internal/types"
)

var (
	testMACI  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPoll  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testMP    = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testTally = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testToken = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

func uintResult(v int64) methodHandler {
	return func([]interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(v)}, nil
	}
}

func boolResult(v bool) methodHandler {
	return func([]interface{}) ([]interface{}, error) {
		return []interface{}{v}, nil
	}
}

func testProof() [][]*big.Int {
	return [][]*big.Int{{big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4)}}
}

func TestMACIClient(t *testing.T) {
	caller := newFakeCaller()
	caller.register(testMACI, maciABI, map[string]methodHandler{
		"polls": func(args []interface{}) ([]interface{}, error) {
			if args[0].(*big.Int).Int64() != 5 {
				return []interface{}{common.Address{}, common.Address{}, common.Address{}}, nil
			}
			return []interface{}{testPoll, testMP, testTally}, nil
		},
	})
	caller.register(testPoll, pollABI, map[string]methodHandler{
		"treeDepths": func([]interface{}) ([]interface{}, error) {
			return []interface{}{uint8(10), uint8(2), uint8(6), uint8(3)}, nil
		},
	})

	client := NewMACIClient(testMACI, caller)
	ctx := context.Background()
	assert.Equal(t, testMACI, client.Address())

	contracts, err := client.Polls(ctx, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, testPoll, contracts.Poll)
	assert.Equal(t, testMP, contracts.MessageProcessor)
	assert.Equal(t, testTally, contracts.Tally)

	missing, err := client.Polls(ctx, big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, missing.Poll)

	depth, err := client.VoteOptionTreeDepth(ctx, testPoll)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), depth)
}

func TestTallyClient_Reads(t *testing.T) {
	caller := newFakeCaller()
	var verifyArgs, perVOArgs, amountArgs []interface{}
	caller.register(testTally, tallyABI, map[string]methodHandler{
		"tallyResults": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{big.NewInt(50), true}, nil
		},
		"verifyTallyResult": func(args []interface{}) ([]interface{}, error) {
			verifyArgs = args
			return []interface{}{true}, nil
		},
		"verifyPerVOSpentVoiceCredits": func(args []interface{}) ([]interface{}, error) {
			perVOArgs = args
			return []interface{}{false}, nil
		},
		"getAllocatedAmount": func(args []interface{}) ([]interface{}, error) {
			amountArgs = args
			return []interface{}{big.NewInt(500)}, nil
		},
		"claimed":           boolResult(true),
		"paused":            boolResult(false),
		"isTallied":         boolResult(true),
		"tallyBatchNum":     uintResult(2),
		"totalTallyResults": uintResult(3),
		"recipientCount":    uintResult(3),
		"totalAmount":       uintResult(1000),
		"totalSpent":        uintResult(60),
		"voiceCreditFactor": uintResult(10),
		"alpha":             uintResult(7),
		"totalVotesSquares": uintResult(2600),
		"token": func([]interface{}) ([]interface{}, error) {
			return []interface{}{testToken}, nil
		},
	})

	client := NewTallyClient(testTally, caller)
	ctx := context.Background()
	assert.Equal(t, testTally, client.Address())

	value, isSet, err := client.TallyResult(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, int64(50), value.Int64())
	assert.True(t, isSet)

	valid, err := client.VerifyTallyResult(ctx, &types.TallyResultQuery{
		Index:                      big.NewInt(1),
		TallyResult:                big.NewInt(50),
		Proof:                      testProof(),
		TallyResultSalt:            big.NewInt(123),
		VoteOptionTreeDepth:        1,
		SpentVoiceCreditsHash:      big.NewInt(8),
		PerVOSpentVoiceCreditsHash: big.NewInt(0),
	})
	require.NoError(t, err)
	assert.True(t, valid)
	require.Len(t, verifyArgs, 7)
	assert.Equal(t, int64(50), verifyArgs[1].(*big.Int).Int64())
	assert.Equal(t, testProof(), verifyArgs[2])
	assert.Equal(t, uint8(1), verifyArgs[4])

	valid, err = client.VerifyPerVOSpentVoiceCredits(ctx, &types.PerVOSpentQuery{
		Index:                 big.NewInt(1),
		Spent:                 big.NewInt(2500),
		Proof:                 testProof(),
		SpentSalt:             big.NewInt(9),
		VoteOptionTreeDepth:   1,
		SpentVoiceCreditsHash: big.NewInt(8),
		ResultCommitment:      big.NewInt(456),
	})
	require.NoError(t, err)
	assert.False(t, valid)
	require.Len(t, perVOArgs, 7)
	assert.Equal(t, int64(456), perVOArgs[6].(*big.Int).Int64())

	amount, err := client.AllocatedAmount(ctx, big.NewInt(1), big.NewInt(50))
	require.NoError(t, err)
	assert.Equal(t, int64(500), amount.Int64())
	assert.Equal(t, int64(50), amountArgs[1].(*big.Int).Int64())

	claimed, err := client.IsClaimed(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, claimed)

	paused, err := client.IsPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	tallied, err := client.IsTallied(ctx)
	require.NoError(t, err)
	assert.True(t, tallied)

	token, err := client.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, testToken, token)

	reads := map[string]func(context.Context) (*big.Int, error){
		"tallyBatchNum":     client.TallyBatchNum,
		"totalTallyResults": client.TotalTallyResults,
		"recipientCount":    client.RecipientCount,
		"totalAmount":       client.TotalAmount,
		"totalSpent":        client.TotalSpent,
		"voiceCreditFactor": client.VoiceCreditFactor,
		"alpha":             client.Alpha,
		"totalVotesSquares": client.TotalVotesSquares,
	}
	expected := map[string]int64{
		"tallyBatchNum": 2, "totalTallyResults": 3, "recipientCount": 3, "totalAmount": 1000,
		"totalSpent": 60, "voiceCreditFactor": 10, "alpha": 7, "totalVotesSquares": 2600,
	}
	for name, read := range reads {
		v, err := read(ctx)
		require.NoError(t, err, name)
		assert.Equal(t, expected[name], v.Int64(), name)
	}
}

func TestTallyClient_ReadErrorsAreWrapped(t *testing.T) {
	caller := newFakeCaller()
	caller.register(testTally, tallyABI, map[string]methodHandler{
		"totalAmount": func([]interface{}) ([]interface{}, error) {
			return nil, errors.New("header not found")
		},
	})
	client := NewTallyClient(testTally, caller)

	_, err := client.TotalAmount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "totalAmount call failed")
	assert.Contains(t, err.Error(), "header not found")
}

func TestTallyClient_ClaimCalldata(t *testing.T) {
	client := NewTallyClient(testTally, newFakeCaller())
	params := &types.ClaimParams{
		Index:                      big.NewInt(1),
		VoiceCreditsPerOption:      big.NewInt(50),
		Proof:                      testProof(),
		TallyResultSalt:            big.NewInt(123),
		VoteOptionTreeDepth:        1,
		SpentVoiceCreditsHash:      big.NewInt(8),
		PerVOSpentVoiceCreditsHash: big.NewInt(0),
	}

	data, err := client.ClaimCalldata(params)
	require.NoError(t, err)

	method := TallyABI().Methods["claim"]
	assert.Equal(t, method.ID, data[:4])

	values, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, values, 1)
	decoded := abi.ConvertType(values[0], new(claimFunds)).(*claimFunds)
	assert.Equal(t, int64(1), decoded.Index.Int64())
	assert.Equal(t, int64(50), decoded.VoiceCreditsPerOption.Int64())
	assert.Equal(t, testProof(), decoded.TallyResultProof)
	assert.Equal(t, int64(123), decoded.TallyResultSalt.Int64())
	assert.Equal(t, uint8(1), decoded.VoteOptionTreeDepth)
	assert.Equal(t, int64(8), decoded.SpentVoiceCreditsHash.Int64())
	assert.Equal(t, 0, decoded.PerVOSpentVoiceCreditsHash.Sign())

	again, err := client.ClaimCalldata(params)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestTallyClient_SimulateClaim(t *testing.T) {
	from := common.HexToAddress("0x5555555555555555555555555555555555555555")
	params := &types.ClaimParams{
		Index:                      big.NewInt(2),
		VoiceCreditsPerOption:      big.NewInt(10),
		Proof:                      testProof(),
		TallyResultSalt:            big.NewInt(1),
		VoteOptionTreeDepth:        1,
		SpentVoiceCreditsHash:      big.NewInt(2),
		PerVOSpentVoiceCreditsHash: big.NewInt(0),
	}

	t.Run("success", func(t *testing.T) {
		caller := newFakeCaller()
		caller.register(testTally, tallyABI, map[string]methodHandler{
			"claim": func([]interface{}) ([]interface{}, error) { return nil, nil },
		})
		client := NewTallyClient(testTally, caller)

		require.NoError(t, client.SimulateClaim(context.Background(), from, params))
		msg := caller.lastCall()
		assert.Equal(t, from, msg.From)
		assert.Equal(t, testTally, *msg.To)
		expected, err := client.ClaimCalldata(params)
		require.NoError(t, err)
		assert.Equal(t, expected, msg.Data)
	})

	t.Run("custom error revert", func(t *testing.T) {
		revert := customErrorRevert(t, "InvalidRecipient", big.NewInt(2))
		caller := newFakeCaller()
		caller.register(testTally, tallyABI, map[string]methodHandler{
			"claim": func([]interface{}) ([]interface{}, error) {
				return nil, &rpcDataError{data: hexutil.Encode(revert)}
			},
		})
		client := NewTallyClient(testTally, caller)

		err := client.SimulateClaim(context.Background(), from, params)
		require.Error(t, err)
		decoded, raw := client.DecodeRevert(err)
		require.NotNil(t, decoded)
		assert.Equal(t, "InvalidRecipient(2)", decoded.String())
		assert.Equal(t, revert, raw)
	})

	t.Run("undecodable revert keeps raw data", func(t *testing.T) {
		revert := []byte{0xde, 0xad, 0xbe, 0xef}
		caller := newFakeCaller()
		caller.register(testTally, tallyABI, map[string]methodHandler{
			"claim": func([]interface{}) ([]interface{}, error) {
				return nil, &rpcDataError{data: revert}
			},
		})
		client := NewTallyClient(testTally, caller)

		decoded, raw := client.DecodeRevert(client.SimulateClaim(context.Background(), from, params))
		assert.Nil(t, decoded)
		assert.Equal(t, revert, raw)
	})

	t.Run("no revert data", func(t *testing.T) {
		client := NewTallyClient(testTally, newFakeCaller())
		decoded, raw := client.DecodeRevert(errors.New("timeout"))
		assert.Nil(t, decoded)
		assert.Nil(t, raw)
	})
}

func TestTallyContractFactory(t *testing.T) {
	factory := TallyContractFactory(newFakeCaller())
	contract := factory(testTally)
	assert.Equal(t, testTally, contract.Address())
}
