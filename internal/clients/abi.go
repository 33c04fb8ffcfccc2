package clients

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MACI registry: poll id -> deployed contracts
const maciABIJSON = `[
	{
		"inputs": [{"name": "pollId", "type": "uint256"}],
		"name": "polls",
		"outputs": [
			{"name": "poll", "type": "address"},
			{"name": "messageProcessor", "type": "address"},
			{"name": "tally", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "nextPollId",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Poll: only the tree depths are needed
const pollABIJSON = `[
	{
		"inputs": [],
		"name": "treeDepths",
		"outputs": [
			{"name": "intStateTreeDepth", "type": "uint8"},
			{"name": "messageTreeSubDepth", "type": "uint8"},
			{"name": "messageTreeDepth", "type": "uint8"},
			{"name": "voteOptionTreeDepth", "type": "uint8"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Tally with payout: verification, claim and funding views
const tallyABIJSON = `[
	{
		"inputs": [{"name": "index", "type": "uint256"}],
		"name": "tallyResults",
		"outputs": [
			{"name": "value", "type": "uint256"},
			{"name": "isSet", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_voteOptionIndex", "type": "uint256"},
			{"name": "_tallyResult", "type": "uint256"},
			{"name": "_tallyResultProof", "type": "uint256[][]"},
			{"name": "_tallyResultSalt", "type": "uint256"},
			{"name": "_voteOptionTreeDepth", "type": "uint8"},
			{"name": "_spentVoiceCreditsHash", "type": "uint256"},
			{"name": "_perVOSpentVoiceCreditsHash", "type": "uint256"}
		],
		"name": "verifyTallyResult",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_voteOptionIndex", "type": "uint256"},
			{"name": "_spent", "type": "uint256"},
			{"name": "_spentProof", "type": "uint256[][]"},
			{"name": "_spentSalt", "type": "uint256"},
			{"name": "_voteOptionTreeDepth", "type": "uint8"},
			{"name": "_spentVoiceCreditsHash", "type": "uint256"},
			{"name": "_resultCommitment", "type": "uint256"}
		],
		"name": "verifyPerVOSpentVoiceCredits",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"name": "index", "type": "uint256"},
					{"name": "voiceCreditsPerOption", "type": "uint256"},
					{"name": "tallyResultProof", "type": "uint256[][]"},
					{"name": "tallyResultSalt", "type": "uint256"},
					{"name": "voteOptionTreeDepth", "type": "uint8"},
					{"name": "spentVoiceCreditsHash", "type": "uint256"},
					{"name": "perVOSpentVoiceCreditsHash", "type": "uint256"}
				],
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "claim",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "index", "type": "uint256"},
			{"name": "voiceCreditsPerOption", "type": "uint256"}
		],
		"name": "getAllocatedAmount",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "index", "type": "uint256"}],
		"name": "claimed",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{"inputs": [], "name": "paused", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "isTallied", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "tallyBatchNum", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalTallyResults", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "recipientCount", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "token", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalAmount", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalSpent", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "voiceCreditFactor", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "alpha", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalVotesSquares", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "ClaimsPaused", "type": "error"},
	{"inputs": [], "name": "AlreadyClaimed", "type": "error"},
	{"inputs": [], "name": "VotesNotTallied", "type": "error"},
	{"inputs": [], "name": "IncorrectTallyResult", "type": "error"},
	{"inputs": [], "name": "IncorrectSpentVoiceCredits", "type": "error"},
	{"inputs": [], "name": "IncorrectPerVOSpentVoiceCredits", "type": "error"},
	{"inputs": [], "name": "NoProjectHasMoreThanOneVote", "type": "error"},
	{"inputs": [], "name": "InvalidBudget", "type": "error"},
	{"inputs": [{"name": "index", "type": "uint256"}], "name": "InvalidRecipient", "type": "error"},
	{
		"inputs": [
			{"name": "required", "type": "uint256"},
			{"name": "available", "type": "uint256"}
		],
		"name": "InsufficientFunds",
		"type": "error"
	}
]`

var (
	maciABI  = mustParseABI(maciABIJSON)
	pollABI  = mustParseABI(pollABIJSON)
	tallyABI = mustParseABI(tallyABIJSON)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("invalid contract ABI: " + err.Error())
	}
	return parsed
}

// TallyABI exposes the tally contract ABI for calldata inspection.
func TallyABI() abi.ABI {
	return tallyABI
}
