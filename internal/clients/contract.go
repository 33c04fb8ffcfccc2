package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"tally-claim/internal/types"
)

// Panic(uint256)
var panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}

// boundContract packs, calls and unpacks view methods of one contract.
type boundContract struct {
	address common.Address
	abi     abi.ABI
	caller  ethereum.ContractCaller
}

func newBoundContract(address common.Address, parsed abi.ABI, caller ethereum.ContractCaller) *boundContract {
	return &boundContract{address: address, abi: parsed, caller: caller}
}

func (c *boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	result, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	values, err := c.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *boundContract) callBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	values, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, expected uint256", method, values[0])
	}
	return v, nil
}

func (c *boundContract) callBool(ctx context.Context, method string, args ...interface{}) (bool, error) {
	values, err := c.call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	if len(values) == 0 {
		return false, fmt.Errorf("%s returned no values", method)
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s returned %T, expected bool", method, values[0])
	}
	return v, nil
}

func (c *boundContract) callAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	values, err := c.call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	if len(values) == 0 {
		return common.Address{}, fmt.Errorf("%s returned no values", method)
	}
	v, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned %T, expected address", method, values[0])
	}
	return v, nil
}

// RevertData extracts the revert payload that JSON-RPC nodes attach to
// eth_call and eth_estimateGas errors.
func RevertData(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		decoded, decodeErr := hexutil.Decode(data)
		if decodeErr != nil {
			return nil
		}
		return decoded
	case []byte:
		return data
	default:
		return nil
	}
}

// DecodeRevertData matches a revert payload against the custom errors of
// contractABI, then against Error(string) and Panic(uint256).
func DecodeRevertData(contractABI abi.ABI, data []byte) (*types.DecodedRevert, bool) {
	if len(data) < 4 {
		return nil, false
	}

	for name, abiErr := range contractABI.Errors {
		if !bytes.Equal(data[:4], abiErr.ID[:4]) {
			continue
		}
		args, err := abiErr.Inputs.Unpack(data[4:])
		if err != nil {
			continue
		}
		return &types.DecodedRevert{Name: name, Args: args, Raw: data}, true
	}

	if reason, err := abi.UnpackRevert(data); err == nil {
		name := "Error"
		if bytes.Equal(data[:4], panicSelector) {
			name = "Panic"
		}
		return &types.DecodedRevert{Name: name, Args: []interface{}{reason}, Raw: data}, true
	}

	return nil, false
}
