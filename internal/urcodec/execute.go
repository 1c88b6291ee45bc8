package urcodec

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The two execute selectors the engine recognizes. Any other selector is
// "not a supported router call".
//
//	execute(bytes commands, bytes[] inputs, uint256 deadline)
//	execute(bytes commands, bytes[] inputs)
var (
	SelectorExecuteDeadline = [4]byte{0x35, 0x93, 0x56, 0x4c}
	SelectorExecute         = [4]byte{0x24, 0x85, 0x6b, 0xc3}
)

var (
	ErrNotExecuteCall = errors.New("calldata is not a recognized execute call")
	ErrMalformedCall  = errors.New("execute calldata is malformed")
)

var (
	typeBytes      = mustType("bytes")
	typeBytesArray = mustType("bytes[]")
	typeUint256    = mustType("uint256")
	typeAddress    = mustType("address")

	executeArgs = abi.Arguments{
		{Name: "commands", Type: typeBytes},
		{Name: "inputs", Type: typeBytesArray},
	}
	executeDeadlineArgs = abi.Arguments{
		{Name: "commands", Type: typeBytes},
		{Name: "inputs", Type: typeBytesArray},
		{Name: "deadline", Type: typeUint256},
	}
)

func mustType(t string) abi.Type {
	parsed, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return parsed
}

// CommandStream is the parsed form of a router execute call: parallel
// opcode and input sequences plus the optional deadline. Commands and
// Inputs stay index-aligned at every stage; a stream is built fresh per
// call and discarded afterwards.
type CommandStream struct {
	Commands []Command
	Inputs   [][]byte
	Deadline *big.Int // nil when the two-argument signature was used
}

// DecodeExecute parses execute calldata into a CommandStream. It returns
// ErrNotExecuteCall for foreign selectors and ErrMalformedCall when the
// arguments do not unpack or the opcode/input counts disagree.
func DecodeExecute(data []byte) (*CommandStream, error) {
	if len(data) < 4 {
		return nil, ErrNotExecuteCall
	}
	var selector [4]byte
	copy(selector[:], data[:4])

	var args abi.Arguments
	switch selector {
	case SelectorExecuteDeadline:
		args = executeDeadlineArgs
	case SelectorExecute:
		args = executeArgs
	default:
		return nil, ErrNotExecuteCall
	}

	values, err := args.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCall, err)
	}
	rawCommands, ok := values[0].([]byte)
	if !ok {
		return nil, ErrMalformedCall
	}
	inputs, ok := values[1].([][]byte)
	if !ok {
		return nil, ErrMalformedCall
	}
	if len(rawCommands) != len(inputs) {
		return nil, fmt.Errorf("%w: %d commands but %d inputs", ErrMalformedCall, len(rawCommands), len(inputs))
	}

	stream := &CommandStream{
		Commands: make([]Command, len(rawCommands)),
		Inputs:   inputs,
	}
	for i, b := range rawCommands {
		stream.Commands[i] = Command(b)
	}
	if selector == SelectorExecuteDeadline {
		deadline, ok := values[2].(*big.Int)
		if !ok {
			return nil, ErrMalformedCall
		}
		stream.Deadline = deadline
	}
	return stream, nil
}

// Encode re-encodes the stream as execute calldata, using the
// deadline-bearing selector exactly when the stream carries a deadline.
// Decoding and immediately re-encoding reproduces the original bytes.
func (s *CommandStream) Encode() ([]byte, error) {
	if len(s.Commands) != len(s.Inputs) {
		return nil, fmt.Errorf("%w: %d commands but %d inputs", ErrMalformedCall, len(s.Commands), len(s.Inputs))
	}
	rawCommands := make([]byte, len(s.Commands))
	for i, c := range s.Commands {
		rawCommands[i] = byte(c)
	}

	var (
		packed []byte
		err    error
		buf    bytes.Buffer
	)
	if s.Deadline != nil {
		packed, err = executeDeadlineArgs.Pack(rawCommands, s.Inputs, s.Deadline)
		buf.Write(SelectorExecuteDeadline[:])
	} else {
		packed, err = executeArgs.Pack(rawCommands, s.Inputs)
		buf.Write(SelectorExecute[:])
	}
	if err != nil {
		return nil, err
	}
	buf.Write(packed)
	return buf.Bytes(), nil
}

// Clone returns a stream whose command and input sequences can be reshaped
// without touching the original. Input blobs are shared: rewrites replace
// whole entries, they never edit a blob in place.
func (s *CommandStream) Clone() *CommandStream {
	out := &CommandStream{
		Commands: append([]Command{}, s.Commands...),
		Inputs:   append([][]byte{}, s.Inputs...),
		Deadline: s.Deadline,
	}
	return out
}

// Insert places an opcode/input pair at index i, shifting later entries
// right. Both sequences move together, which keeps the alignment invariant.
func (s *CommandStream) Insert(i int, c Command, input []byte) {
	s.Commands = append(s.Commands, 0)
	copy(s.Commands[i+1:], s.Commands[i:])
	s.Commands[i] = c

	s.Inputs = append(s.Inputs, nil)
	copy(s.Inputs[i+1:], s.Inputs[i:])
	s.Inputs[i] = input
}

// Append adds an opcode/input pair at the end of the stream.
func (s *CommandStream) Append(c Command, input []byte) {
	s.Commands = append(s.Commands, c)
	s.Inputs = append(s.Inputs, input)
}
