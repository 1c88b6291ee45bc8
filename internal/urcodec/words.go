package urcodec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// WordSize is the width of one ABI slot.
const WordSize = 32

var (
	errShortInput = errors.New("command input too short")
	errBadShape   = errors.New("command input has unexpected shape")
	errNotExactIn = errors.New("opcode is not an exact-input swap")
	errEmptyPath  = errors.New("swap path is empty")
)

var (
	tripleArgs = abi.Arguments{
		{Name: "a", Type: typeAddress},
		{Name: "b", Type: typeAddress},
		{Name: "v", Type: typeUint256},
	}
	pairArgs = abi.Arguments{
		{Name: "a", Type: typeAddress},
		{Name: "v", Type: typeUint256},
	}

	typeAddressArray = mustType("address[]")
	typeBool         = mustType("bool")

	v2SwapArgs = abi.Arguments{
		{Name: "recipient", Type: typeAddress},
		{Name: "amountIn", Type: typeUint256},
		{Name: "amountOutMin", Type: typeUint256},
		{Name: "path", Type: typeAddressArray},
		{Name: "payerIsUser", Type: typeBool},
	}
	v3SwapArgs = abi.Arguments{
		{Name: "recipient", Type: typeAddress},
		{Name: "amountIn", Type: typeUint256},
		{Name: "amountOutMin", Type: typeUint256},
		{Name: "path", Type: typeBytes},
		{Name: "payerIsUser", Type: typeBool},
	}
)

// DecodeTriple decodes an (address, address, uint256) input, the shape
// shared by SWEEP, TRANSFER, PAY_PORTION and BALANCE_CHECK_ERC20.
func DecodeTriple(input []byte) (common.Address, common.Address, *big.Int, error) {
	if len(input) != 3*WordSize {
		return common.Address{}, common.Address{}, nil, errShortInput
	}
	values, err := tripleArgs.Unpack(input)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	a, okA := values[0].(common.Address)
	b, okB := values[1].(common.Address)
	v, okV := values[2].(*big.Int)
	if !okA || !okB || !okV {
		return common.Address{}, common.Address{}, nil, errBadShape
	}
	return a, b, v, nil
}

// EncodeTriple packs an (address, address, uint256) input.
func EncodeTriple(a, b common.Address, v *big.Int) []byte {
	packed, err := tripleArgs.Pack(a, b, v)
	if err != nil {
		// Static types with in-range values cannot fail to pack.
		panic(fmt.Sprintf("pack triple: %v", err))
	}
	return packed
}

// DecodePair decodes an (address, uint256) input, the shape of UNWRAP_WETH
// and WRAP_ETH.
func DecodePair(input []byte) (common.Address, *big.Int, error) {
	if len(input) != 2*WordSize {
		return common.Address{}, nil, errShortInput
	}
	values, err := pairArgs.Unpack(input)
	if err != nil {
		return common.Address{}, nil, err
	}
	a, okA := values[0].(common.Address)
	v, okV := values[1].(*big.Int)
	if !okA || !okV {
		return common.Address{}, nil, errBadShape
	}
	return a, v, nil
}

// EncodePair packs an (address, uint256) input.
func EncodePair(a common.Address, v *big.Int) []byte {
	packed, err := pairArgs.Pack(a, v)
	if err != nil {
		panic(fmt.Sprintf("pack pair: %v", err))
	}
	return packed
}

// Word returns the i-th 32-byte slot of a blob, or false when out of range.
func Word(input []byte, i int) ([]byte, bool) {
	off := i * WordSize
	if off < 0 || off+WordSize > len(input) {
		return nil, false
	}
	return input[off : off+WordSize], true
}

// WordCount returns the number of whole 32-byte slots in a blob.
func WordCount(input []byte) int {
	return len(input) / WordSize
}

// WordAddress interprets a 32-byte slot as a right-aligned address.
func WordAddress(word []byte) common.Address {
	return common.BytesToAddress(word[12:WordSize])
}

// WithWord returns a copy of the blob with slot i replaced.
func WithWord(input []byte, i int, word []byte) []byte {
	out := append([]byte{}, input...)
	copy(out[i*WordSize:(i+1)*WordSize], word)
	return out
}

// AddressWord left-pads an address into a fresh 32-byte slot.
func AddressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), WordSize)
}

// UintWord encodes a non-negative integer into a fresh 32-byte slot.
func UintWord(v *big.Int) []byte {
	word := make([]byte, WordSize)
	v.FillBytes(word)
	return word
}

// SwapExactIn is the decoded static head of a v2/v3 exact-input swap:
//
//	(address recipient, uint256 amountIn, uint256 amountOutMin, path, bool payerIsUser)
//
// The path tail differs between v2 (address[]) and v3 (packed bytes); only
// the output token is pulled out of it. The raw input is retained so a
// rewrite patches exactly the recipient and minimum-output slots.
type SwapExactIn struct {
	Command      Command
	Recipient    common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	OutputToken  common.Address
	raw          []byte
}

const (
	swapSlotRecipient = 0
	swapSlotAmountIn  = 1
	swapSlotMinOut    = 2
	swapSlotPath      = 3
)

// DecodeSwapExactIn decodes the input of V2_SWAP_EXACT_IN or
// V3_SWAP_EXACT_IN. Exact-output and unknown opcodes are rejected.
func DecodeSwapExactIn(cmd Command, input []byte) (*SwapExactIn, error) {
	if !cmd.IsExactInSwap() {
		return nil, errNotExactIn
	}
	recipientWord, ok := Word(input, swapSlotRecipient)
	if !ok {
		return nil, errShortInput
	}
	amountInWord, ok := Word(input, swapSlotAmountIn)
	if !ok {
		return nil, errShortInput
	}
	minOutWord, ok := Word(input, swapSlotMinOut)
	if !ok {
		return nil, errShortInput
	}
	output, err := swapOutputToken(cmd, input)
	if err != nil {
		return nil, err
	}
	return &SwapExactIn{
		Command:      cmd,
		Recipient:    WordAddress(recipientWord),
		AmountIn:     new(big.Int).SetBytes(amountInWord),
		AmountOutMin: new(big.Int).SetBytes(minOutWord),
		OutputToken:  output,
		raw:          input,
	}, nil
}

// Rewrite returns a copy of the swap input with the recipient redirected
// and the minimum output replaced.
func (s *SwapExactIn) Rewrite(recipient common.Address, minOut *big.Int) []byte {
	out := WithWord(s.raw, swapSlotRecipient, AddressWord(recipient))
	return WithWord(out, swapSlotMinOut, UintWord(minOut))
}

// EncodeV2SwapExactIn packs a V2_SWAP_EXACT_IN input with an address-array
// path.
func EncodeV2SwapExactIn(recipient common.Address, amountIn, amountOutMin *big.Int, path []common.Address, payerIsUser bool) []byte {
	packed, err := v2SwapArgs.Pack(recipient, amountIn, amountOutMin, path, payerIsUser)
	if err != nil {
		panic(fmt.Sprintf("pack v2 swap input: %v", err))
	}
	return packed
}

// EncodeV3SwapExactIn packs a V3_SWAP_EXACT_IN input with a packed-bytes
// path (token, fee, token, ...).
func EncodeV3SwapExactIn(recipient common.Address, amountIn, amountOutMin *big.Int, path []byte, payerIsUser bool) []byte {
	packed, err := v3SwapArgs.Pack(recipient, amountIn, amountOutMin, path, payerIsUser)
	if err != nil {
		panic(fmt.Sprintf("pack v3 swap input: %v", err))
	}
	return packed
}

func swapOutputToken(cmd Command, input []byte) (common.Address, error) {
	offsetWord, ok := Word(input, swapSlotPath)
	if !ok {
		return common.Address{}, errShortInput
	}
	offset := new(big.Int).SetBytes(offsetWord)
	if !offset.IsInt64() {
		return common.Address{}, errBadShape
	}
	pathStart := int(offset.Int64())
	if pathStart < 0 || pathStart+WordSize > len(input) {
		return common.Address{}, errBadShape
	}
	length := new(big.Int).SetBytes(input[pathStart : pathStart+WordSize])
	if !length.IsInt64() {
		return common.Address{}, errBadShape
	}
	n := int(length.Int64())
	if n <= 0 {
		return common.Address{}, errEmptyPath
	}
	body := input[pathStart+WordSize:]

	switch cmd {
	case V2SwapExactIn:
		// address[] path: the output token is the last element.
		end := n * WordSize
		if end > len(body) {
			return common.Address{}, errShortInput
		}
		return WordAddress(body[end-WordSize : end]), nil
	case V3SwapExactIn:
		// Packed bytes path token(20) [fee(3) token(20)]*: the output
		// token is the trailing 20 bytes.
		if n > len(body) || n < common.AddressLength {
			return common.Address{}, errShortInput
		}
		return common.BytesToAddress(body[n-common.AddressLength : n]), nil
	}
	return common.Address{}, errNotExactIn
}
