// internal/settlement/memory.go
package settlement

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// ledger is the shared state behind MemoryContract views.
type ledger struct {
	mu          sync.Mutex
	tournaments map[uint64]*Tournament
	escrows     map[uint64]map[string]*Escrow
	now         func() time.Time
}

// MemoryContract is an in-process escrow with the same rules as the
// deployed contract. It is used when no relay is configured and in tests.
type MemoryContract struct {
	l      *ledger
	sender string
}

// NewMemoryContract opens an empty ledger viewed by sender.
func NewMemoryContract(sender string) (*MemoryContract, error) {
	l := &ledger{
		tournaments: make(map[uint64]*Tournament),
		escrows:     make(map[uint64]map[string]*Escrow),
		now:         time.Now,
	}
	return (&MemoryContract{l: l}).As(sender)
}

// As returns a view of the same ledger acting for another wallet.
func (m *MemoryContract) As(sender string) (*MemoryContract, error) {
	addr, err := NormalizeAddress(sender)
	if err != nil {
		return nil, err
	}
	return &MemoryContract{l: m.l, sender: addr}, nil
}

func (m *MemoryContract) Sender() string { return m.sender }

func (m *MemoryContract) CreateTournament(_ context.Context, participant1, participant2 string) (Created, error) {
	p1, err := NormalizeAddress(participant1)
	if err != nil {
		return Created{}, err
	}
	p2, err := NormalizeAddress(participant2)
	if err != nil {
		return Created{}, err
	}
	if p1 == p2 {
		return Created{}, fmt.Errorf("%w: participants must differ", ErrInvalidAddress)
	}

	m.l.mu.Lock()
	defer m.l.mu.Unlock()

	id := newTournamentID()
	for m.l.tournaments[id] != nil {
		id = newTournamentID()
	}
	m.l.tournaments[id] = &Tournament{
		ID:           id,
		Participant1: p1,
		Participant2: p2,
		Token1:       ZeroAddress,
		Token2:       ZeroAddress,
		Winner:       ZeroAddress,
		Amount1:      decimal.Zero,
		Amount2:      decimal.Zero,
		Timestamp:    m.l.now(),
	}
	m.l.escrows[id] = make(map[string]*Escrow)
	return Created{TournamentID: id, TxHash: newTxHash()}, nil
}

func (m *MemoryContract) DepositStake(_ context.Context, tournamentID uint64, amount decimal.Decimal) (Receipt, error) {
	if !amount.IsPositive() {
		return Receipt{}, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}
	if _, err := ToWei(amount); err != nil {
		return Receipt{}, err
	}

	m.l.mu.Lock()
	defer m.l.mu.Unlock()

	t, err := m.l.tournamentLocked(tournamentID)
	if err != nil {
		return Receipt{}, err
	}
	if t.IsCompleted {
		return Receipt{}, ErrAlreadyCompleted
	}
	key := strings.ToLower(m.sender)
	if esc := m.l.escrows[tournamentID][key]; esc != nil && esc.IsDeposited {
		return Receipt{}, ErrAlreadyDeposited
	}
	switch m.sender {
	case t.Participant1:
		t.Amount1 = amount
	case t.Participant2:
		t.Amount2 = amount
	default:
		return Receipt{}, ErrNotParticipant
	}
	m.l.escrows[tournamentID][key] = &Escrow{
		Participant: m.sender,
		Token:       ZeroAddress,
		Amount:      amount,
		IsDeposited: true,
	}
	return Receipt{TxHash: newTxHash()}, nil
}

// CheckDeposit returns a zero Escrow for participants who have not deposited.
func (m *MemoryContract) CheckDeposit(_ context.Context, tournamentID uint64, address string) (Escrow, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return Escrow{}, err
	}
	m.l.mu.Lock()
	defer m.l.mu.Unlock()

	if _, err := m.l.tournamentLocked(tournamentID); err != nil {
		return Escrow{}, err
	}
	esc := m.l.escrows[tournamentID][strings.ToLower(addr)]
	if esc == nil {
		return Escrow{Participant: ZeroAddress, Token: ZeroAddress, Amount: decimal.Zero}, nil
	}
	return *esc, nil
}

func (m *MemoryContract) AnnounceWinner(_ context.Context, tournamentID uint64, winner string) (Receipt, error) {
	addr, err := NormalizeAddress(winner)
	if err != nil {
		return Receipt{}, err
	}
	m.l.mu.Lock()
	defer m.l.mu.Unlock()

	t, err := m.l.tournamentLocked(tournamentID)
	if err != nil {
		return Receipt{}, err
	}
	if t.IsCompleted {
		return Receipt{}, ErrAlreadyCompleted
	}
	if addr != t.Participant1 && addr != t.Participant2 {
		return Receipt{}, ErrNotParticipant
	}
	if !m.l.bothDepositedLocked(t) {
		return Receipt{}, ErrDepositsIncomplete
	}
	t.Winner = addr
	t.IsCompleted = true
	return Receipt{TxHash: newTxHash()}, nil
}

func (m *MemoryContract) GetTournament(_ context.Context, tournamentID uint64) (Tournament, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	t, err := m.l.tournamentLocked(tournamentID)
	if err != nil {
		return Tournament{}, err
	}
	return *t, nil
}

func (m *MemoryContract) BothDeposited(_ context.Context, tournamentID uint64) (bool, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	t, err := m.l.tournamentLocked(tournamentID)
	if err != nil {
		return false, err
	}
	return m.l.bothDepositedLocked(t), nil
}

// EmergencyWithdraw returns the sender's deposit from an unfinished tournament.
func (m *MemoryContract) EmergencyWithdraw(_ context.Context, tournamentID uint64) (Receipt, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()

	t, err := m.l.tournamentLocked(tournamentID)
	if err != nil {
		return Receipt{}, err
	}
	if t.IsCompleted {
		return Receipt{}, ErrAlreadyCompleted
	}
	esc := m.l.escrows[tournamentID][strings.ToLower(m.sender)]
	if esc == nil || !esc.IsDeposited || esc.IsWithdrawn {
		return Receipt{}, ErrNothingToWithdraw
	}
	esc.IsWithdrawn = true
	return Receipt{TxHash: newTxHash()}, nil
}

func (l *ledger) tournamentLocked(id uint64) (*Tournament, error) {
	t := l.tournaments[id]
	if t == nil {
		return nil, fmt.Errorf("%w: %d", ErrTournamentNotFound, id)
	}
	return t, nil
}

func (l *ledger) bothDepositedLocked(t *Tournament) bool {
	deposited := func(addr string) bool {
		esc := l.escrows[t.ID][strings.ToLower(addr)]
		return esc != nil && esc.IsDeposited && !esc.IsWithdrawn
	}
	return deposited(t.Participant1) && deposited(t.Participant2)
}

func newTournamentID() uint64 {
	return uint64(minTournamentID + rand.IntN(maxTournamentID-minTournamentID+1))
}

func newTxHash() string {
	id := uuid.New()
	h := sha3.NewLegacyKeccak256()
	h.Write(id[:])
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
