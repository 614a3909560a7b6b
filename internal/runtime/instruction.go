package runtime

import (
	"fmt"

	"github.com/roach88/socialledger/internal/address"
)

// Processor executes the instructions addressed to one program.
// Implementations must be deterministic: the same context contents must
// produce the same writes and the same error.
type Processor interface {
	Process(ictx *InstructionContext) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ictx *InstructionContext) error

// Process calls f(ictx).
func (f ProcessorFunc) Process(ictx *InstructionContext) error {
	return f(ictx)
}

// accountState is the in-memory view of one address for the duration of a
// transaction. Metas naming the same address share it, so later
// instructions see earlier writes.
type accountState struct {
	owner  address.Pubkey
	data   []byte
	exists bool
	dirty  bool
}

// AccountInfo is one declared account as the program sees it.
type AccountInfo struct {
	Address    address.Pubkey
	IsSigner   bool
	IsWritable bool
	IsInit     bool

	state *accountState
}

// Exists reports whether the account holds data.
func (a *AccountInfo) Exists() bool { return a.state.exists }

// Owner returns the program that created the account, or the zero key.
func (a *AccountInfo) Owner() address.Pubkey { return a.state.owner }

// Data returns a copy of the account data, nil if the account does not exist.
func (a *AccountInfo) Data() []byte {
	if !a.state.exists {
		return nil
	}
	out := make([]byte, len(a.state.data))
	copy(out, a.state.data)
	return out
}

// InstructionContext carries one instruction into a Processor.
type InstructionContext struct {
	ProgramID address.Pubkey
	Data      []byte
	Index     int // Position of the instruction in its message

	accounts []*AccountInfo
}

// NumAccounts returns the number of declared accounts.
func (c *InstructionContext) NumAccounts() int {
	return len(c.accounts)
}

// Account returns the i-th declared account.
func (c *InstructionContext) Account(i int) (*AccountInfo, error) {
	if i < 0 || i >= len(c.accounts) {
		return nil, newNotEnoughAccountKeys(i, len(c.accounts))
	}
	return c.accounts[i], nil
}

// Load returns the data of an account that must already exist.
func (c *InstructionContext) Load(acc *AccountInfo) ([]byte, error) {
	if !acc.Exists() {
		return nil, NewAccountNotInitialized(acc.Address)
	}
	return acc.Data(), nil
}

// Create initialises acc with data, owned by the calling program. The
// length of data becomes the account's fixed space.
func (c *InstructionContext) Create(acc *AccountInfo, data []byte) error {
	if !acc.IsWritable {
		return &TransactionError{
			Code:    ErrCodeReadonlyDataModified,
			Message: "cannot create an account not declared writable",
			Address: acc.Address,
		}
	}
	if acc.state.exists {
		return NewInitializationConflict(acc.Address)
	}
	acc.state.owner = c.ProgramID
	acc.state.data = append([]byte(nil), data...)
	acc.state.exists = true
	acc.state.dirty = true
	return nil
}

// Write replaces the data of an existing account owned by the calling
// program. Data shorter than the account space is zero padded; longer data
// fails with AccountDataTooSmall.
func (c *InstructionContext) Write(acc *AccountInfo, data []byte) error {
	if !acc.state.exists {
		return NewAccountNotInitialized(acc.Address)
	}
	if !acc.IsWritable {
		return &TransactionError{
			Code:    ErrCodeReadonlyDataModified,
			Message: "account not declared writable",
			Address: acc.Address,
		}
	}
	if acc.state.owner != c.ProgramID {
		return &TransactionError{
			Code:    ErrCodeExternalAccountDataModified,
			Message: fmt.Sprintf("account owned by %s", acc.state.owner),
			Address: acc.Address,
		}
	}
	space := len(acc.state.data)
	if len(data) > space {
		return &TransactionError{
			Code:    ErrCodeAccountDataTooSmall,
			Message: fmt.Sprintf("write of %d bytes exceeds space %d", len(data), space),
			Address: acc.Address,
		}
	}
	buf := make([]byte, space)
	copy(buf, data)
	acc.state.data = buf
	acc.state.dirty = true
	return nil
}
