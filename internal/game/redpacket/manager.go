// Package redpacket implements the in-memory red-packet game: random
// slice splitting, grab serialization, and timed expiry with refund.
// Packets are process-local state and do not survive a restart.
package redpacket

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/RussellLuo/timingwheel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/pkg/lock"
)

var (
	ErrPacketNotFound = errors.New("red packet not found or expired")
	ErrFullyGrabbed   = errors.New("red packet fully grabbed")
	ErrSelfGrab       = errors.New("cannot grab your own red packet")
	ErrAlreadyGrabbed = errors.New("already grabbed this red packet")
	ErrGrabInProgress = errors.New("another grab is in progress")
	ErrInvalidAmount  = errors.New("red packet amount must be positive")
)

// SystemSender marks packets created by the bot itself (legendary
// fishing drops). System packets are never debited and never refunded.
const SystemSender int64 = 0

// Grab records one slice taken from a packet.
type Grab struct {
	UserID int64
	Name   string
	Amount int64
	Time   time.Time
}

// Packet is one live red packet. All mutation happens under mu.
type Packet struct {
	ID              string
	SenderID        int64
	SenderName      string
	ChatID          int64
	MessageID       int
	TotalAmount     int64
	SliceCount      int
	RemainingCount  int
	RemainingAmount int64
	Grabs           []Grab
	CreatedAt       time.Time

	mu    sync.Mutex
	timer *timingwheel.Timer
}

// snapshot copies the packet for rendering after its lock is released.
// The caller must hold p.mu.
func (p *Packet) snapshot() *Packet {
	return &Packet{
		ID:              p.ID,
		SenderID:        p.SenderID,
		SenderName:      p.SenderName,
		ChatID:          p.ChatID,
		MessageID:       p.MessageID,
		TotalAmount:     p.TotalAmount,
		SliceCount:      p.SliceCount,
		RemainingCount:  p.RemainingCount,
		RemainingAmount: p.RemainingAmount,
		Grabs:           append([]Grab(nil), p.Grabs...),
		CreatedAt:       p.CreatedAt,
	}
}

// Manager owns the packet map and the expiry wheel.
type Manager struct {
	pool   *db.Pool
	ledger *ledger.Engine
	locks  *lock.UserLock
	cfg    config.RedPacketConfig
	log    zerolog.Logger

	mu      sync.Mutex
	packets map[string]*Packet
	wheel   *timingwheel.TimingWheel

	// draw returns a uniform integer in [min, max]. Overridable in tests.
	draw func(min, max int64) (int64, error)

	// OnSettled fires after a packet leaves the map, either fully
	// grabbed or expired. The chat layer edits the original message
	// with the final tally. May be nil.
	OnSettled func(p *Packet, expired bool)
}

func NewManager(pool *db.Pool, eng *ledger.Engine, cfg config.RedPacketConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		pool:    pool,
		ledger:  eng,
		locks:   lock.NewUserLock(),
		cfg:     cfg,
		log:     logger.With().Str("game", "redpacket").Logger(),
		packets: make(map[string]*Packet),
		wheel:   timingwheel.NewTimingWheel(500*time.Millisecond, 1024),
		draw:    secureDraw,
	}
}

func secureDraw(min, max int64) (int64, error) {
	if max <= min {
		return min, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, fmt.Errorf("failed to draw slice: %w", err)
	}
	return min + n.Int64(), nil
}

// Start spins the expiry wheel.
func (m *Manager) Start() { m.wheel.Start() }

// Stop halts the wheel. Live packets are abandoned without refund; the
// process owns no durable packet state.
func (m *Manager) Stop() { m.wheel.Stop() }

// SliceCountFor derives the slice count of a user packet from its amount.
func SliceCountFor(amount int64) int {
	n := int(amount / 10_000)
	if n < 1 {
		n = 1
	}
	if n > 20 {
		n = 20
	}
	return n
}

// CreateUser debits the sender's points and registers a new packet.
func (m *Manager) CreateUser(ctx context.Context, senderID int64, senderName string, chatID int64, amount int64) (*Packet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	err := db.RunInTx(ctx, m.pool, func(tx pgx.Tx) error {
		src := ledger.Source{Remarks: fmt.Sprintf("发红包 %d 积分", amount)}
		_, err := m.ledger.Debit(ctx, tx, senderID, model.AccountPoints, amount, model.TxKindRedpacketSend, src)
		return err
	})
	if err != nil {
		return nil, err
	}

	return m.register(senderID, senderName, chatID, amount, SliceCountFor(amount)), nil
}

// CreateSystem registers a packet funded by the bot (no debit). The
// slice count is clamped to [3, 20].
func (m *Manager) CreateSystem(chatID int64, amount int64, slices int) (*Packet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if slices < 3 {
		slices = 3
	}
	if slices > 20 {
		slices = 20
	}
	return m.register(SystemSender, "系统", chatID, amount, slices), nil
}

func (m *Manager) register(senderID int64, senderName string, chatID, amount int64, slices int) *Packet {
	p := &Packet{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		SenderName:      senderName,
		ChatID:          chatID,
		TotalAmount:     amount,
		SliceCount:      slices,
		RemainingCount:  slices,
		RemainingAmount: amount,
		CreatedAt:       time.Now(),
	}

	expiry := time.Duration(m.cfg.ExpireMinutes) * time.Minute
	m.mu.Lock()
	m.packets[p.ID] = p
	p.timer = m.wheel.AfterFunc(expiry, func() { m.expire(p.ID) })
	m.mu.Unlock()

	m.log.Info().
		Str("packet_id", p.ID).
		Int64("sender_id", senderID).
		Int64("amount", amount).
		Int("slices", slices).
		Msg("Red packet created")
	return p
}

// Attach records the chat message carrying the packet, so expiry can
// edit it later.
func (m *Manager) Attach(packetID string, messageID int) {
	m.mu.Lock()
	p, ok := m.packets[packetID]
	m.mu.Unlock()
	if !ok {
		return
	}
	p.mu.Lock()
	p.MessageID = messageID
	p.mu.Unlock()
}

// Grab takes one slice for userID and returns the amount plus a snapshot
// of the packet for rendering. Grabs on one packet are serialized by the
// packet mutex; the per-user lock rejects a user's overlapping grab
// attempts instead of queueing them.
func (m *Manager) Grab(ctx context.Context, packetID string, userID int64, name string) (int64, *Packet, error) {
	if !m.locks.TryLock(userID) {
		return 0, nil, ErrGrabInProgress
	}
	defer m.locks.Unlock(userID)

	m.mu.Lock()
	p, ok := m.packets[packetID]
	m.mu.Unlock()
	if !ok {
		return 0, nil, ErrPacketNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.RemainingCount == 0 {
		return 0, nil, ErrFullyGrabbed
	}
	if userID == p.SenderID {
		return 0, nil, ErrSelfGrab
	}
	for _, g := range p.Grabs {
		if g.UserID == userID {
			return 0, nil, ErrAlreadyGrabbed
		}
	}

	amount, err := m.sliceAmount(p.RemainingAmount, p.RemainingCount)
	if err != nil {
		return 0, nil, err
	}

	// The grabber must already hold a points account; the credit writes
	// no log entry.
	err = db.RunInTx(ctx, m.pool, func(tx pgx.Tx) error {
		return m.ledger.CreditNoLog(ctx, tx, userID, model.AccountPoints, amount)
	})
	if err != nil {
		return 0, nil, err
	}

	p.RemainingCount--
	p.RemainingAmount -= amount
	p.Grabs = append(p.Grabs, Grab{UserID: userID, Name: name, Amount: amount, Time: time.Now()})

	m.log.Info().
		Str("packet_id", p.ID).
		Int64("user_id", userID).
		Int64("amount", amount).
		Int("remaining", p.RemainingCount).
		Msg("Red packet grabbed")

	if p.RemainingCount == 0 {
		m.remove(p)
		if m.OnSettled != nil {
			m.OnSettled(p, false)
		}
	}
	return amount, p.snapshot(), nil
}

// sliceAmount draws one slice. While more than one slice remains the
// draw is uniform in [1, min(remaining-(count-1), 2*remaining/count)],
// which guarantees every later grabber at least 1; the last grabber
// takes the exact remainder.
func (m *Manager) sliceAmount(remaining int64, count int) (int64, error) {
	if count == 1 {
		return remaining, nil
	}
	max := remaining - int64(count-1)
	if double := 2 * remaining / int64(count); double < max {
		max = double
	}
	if max < 1 {
		max = 1
	}
	return m.draw(1, max)
}

func (m *Manager) remove(p *Packet) {
	m.mu.Lock()
	delete(m.packets, p.ID)
	m.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
}

// expire refunds the sender's unclaimed remainder and drops the packet.
// It runs on the wheel goroutine with its own context.
func (m *Manager) expire(packetID string) {
	m.mu.Lock()
	p, ok := m.packets[packetID]
	delete(m.packets, packetID)
	m.mu.Unlock()
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.RemainingAmount > 0 && p.SenderID != SystemSender {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := db.RunInTx(ctx, m.pool, func(tx pgx.Tx) error {
			src := ledger.Source{Remarks: fmt.Sprintf("红包过期退回 %d 积分", p.RemainingAmount)}
			_, err := m.ledger.Credit(ctx, tx, p.SenderID, model.AccountPoints, p.RemainingAmount, model.TxKindRedpacketSend, src)
			return err
		})
		if err != nil {
			m.log.Error().Err(err).Str("packet_id", p.ID).Msg("Red packet refund failed")
		}
	}

	m.log.Info().
		Str("packet_id", p.ID).
		Int64("refunded", p.RemainingAmount).
		Int("grabs", len(p.Grabs)).
		Msg("Red packet expired")

	if m.OnSettled != nil {
		m.OnSettled(p, true)
	}
}
