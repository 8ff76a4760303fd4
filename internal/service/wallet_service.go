// Package service implements the wallet ledger: player registration, atomic
// transaction posting and the read-only balance/history queries.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/playerledger/wallet-service/internal/model"
	"github.com/playerledger/wallet-service/internal/repo"
)

// ErrInvalidUsername means an empty username was passed.
var ErrInvalidUsername = errors.New("username must not be empty")

// ErrInvalidAmount means non-positive amount passed.
var ErrInvalidAmount = errors.New("amount must be positive")

// ErrInvalidTransactionType means the type is not Deposit, Stake or Win.
var ErrInvalidTransactionType = errors.New("invalid transaction type")

// ErrInsufficientFunds is returned when a stake exceeds the balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// WalletService glues business logic and repository.
type WalletService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger

	// one lock per player: sqlite's pooled sessions do not guarantee
	// serializable read-modify-write across connections, so concurrent posts
	// against the same wallet are serialized here.
	locks sync.Map

	// delay, when set, runs before each posted transaction's atomic unit.
	// Test hook for widening race windows; nil in production.
	delay func()
}

// NewWalletService returns WalletService.
func NewWalletService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *WalletService {
	return &WalletService{repo: r, log: logger}
}

// WithDelay installs the pre-transaction delay hook and returns the service.
// Test use only.
func (s *WalletService) WithDelay(d func()) *WalletService {
	s.delay = d
	return s
}

func (s *WalletService) playerLock(idPlayer string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(idPlayer, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// RegisterPlayer creates a new player identity and returns its id. Fails
// with ErrUsernameTaken if the username is already registered.
func (s *WalletService) RegisterPlayer(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", ErrInvalidUsername
	}
	db, err := s.repo.Conn(ctx)
	if err != nil {
		return "", err
	}
	p := &model.Player{IDPlayer: uuid.NewString(), Username: username}
	if err := s.repo.CreatePlayer(ctx, db, p); err != nil {
		return "", err
	}
	s.log.Infow("player registered", "id_player", p.IDPlayer, "username", username)
	return p.IDPlayer, nil
}

// signFor maps a transaction type to the sign of its balance delta.
func signFor(transactionType string) (negative bool, err error) {
	switch transactionType {
	case model.TypeDeposit, model.TypeWin:
		return false, nil
	case model.TypeStake:
		return true, nil
	default:
		return false, ErrInvalidTransactionType
	}
}

// PostTransaction applies a signed balance change and appends the ledger
// record as one atomic unit. The stored amount is always the positive
// magnitude; Stake subtracts and requires balance >= amount. On any failure
// the whole unit rolls back, so neither the balance mutation nor the record
// is observable. Errors are never retried internally.
func (s *WalletService) PostTransaction(ctx context.Context, idPlayer, transactionType string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	negative, err := signFor(transactionType)
	if err != nil {
		return err
	}

	if s.delay != nil {
		s.delay()
	}

	mu := s.playerLock(idPlayer)
	mu.Lock()
	defer mu.Unlock()

	db, err := s.repo.Conn(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.VerifyPlayer(ctx, tx, idPlayer); err != nil {
			return err
		}

		balance := decimal.Zero
		w, err := s.repo.GetWalletForUpdate(ctx, tx, idPlayer)
		switch {
		case err == nil:
			balance = w.Balance
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no wallet row yet, balance stays 0
		default:
			return err
		}

		delta := amount
		if negative {
			if balance.LessThan(amount) {
				return ErrInsufficientFunds
			}
			delta = amount.Neg()
		}
		newBalance := balance.Add(delta)

		if err := s.repo.UpsertWalletBalance(ctx, tx, idPlayer, newBalance); err != nil {
			return err
		}

		t := &model.Transaction{
			IDTransaction:   uuid.NewString(),
			IDRef:           idPlayer,
			RefType:         model.RefTypePlayer,
			Amount:          amount,
			TransactionType: transactionType,
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"id_player": idPlayer,
			"type":      transactionType,
			"amount":    amount,
			"balance":   newBalance,
		})
		evt := &model.OutboxEvent{
			Aggregate:   "Wallet",
			AggregateID: idPlayer,
			EventType:   "TransactionPosted",
			Payload:     string(payload),
		}
		return s.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return err
	}

	s.log.Infow("transaction posted", "id_player", idPlayer, "type", transactionType, "amount", amount)
	return nil
}

// GetWallet returns the player's wallet, defaulting to a zero balance when no
// transaction has created the row yet. Unknown players fail with
// ErrPlayerNotFound.
func (s *WalletService) GetWallet(ctx context.Context, idPlayer string) (*model.Wallet, error) {
	db, err := s.repo.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.VerifyPlayer(ctx, db, idPlayer); err != nil {
		return nil, err
	}
	w, err := s.repo.GetWallet(ctx, db, idPlayer)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Wallet{IDPlayer: idPlayer, Balance: decimal.Zero}, nil
	}
	return w, err
}

// GetTransactions returns all of the player's ledger records in insertion
// order. Unknown players fail with ErrPlayerNotFound.
func (s *WalletService) GetTransactions(ctx context.Context, idPlayer string) ([]model.Transaction, error) {
	db, err := s.repo.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.VerifyPlayer(ctx, db, idPlayer); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, db, model.RefTypePlayer, idPlayer)
}

// Repo exposes underlying repository (unit tests helper).
func (s *WalletService) Repo() repo.RepositoryInterface {
	return s.repo
}
