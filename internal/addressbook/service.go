package addressbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/repository"
)

const maxAttempts = 3

var ErrAddressNotFound = fmt.Errorf("address: %w", domain.ErrNotFound)

// Service keeps each user's saved addresses with exactly one default whenever
// the book is non-empty.
type Service struct {
	repo repository.AddressRepository
	log  *zap.Logger
}

func NewService(repo repository.AddressRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Address, error) {
	book, err := s.repo.GetAddresses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get addresses: %w", err)
	}
	return book.Addresses, nil
}

func (s *Service) Get(ctx context.Context, userID, addressID string) (domain.Address, error) {
	book, err := s.repo.GetAddresses(ctx, userID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("failed to get addresses: %w", err)
	}
	i := indexOf(book.Addresses, addressID)
	if i < 0 {
		return domain.Address{}, ErrAddressNotFound
	}
	return book.Addresses[i], nil
}

// Default returns ErrNotFound when the user has no saved address.
func (s *Service) Default(ctx context.Context, userID string) (domain.Address, error) {
	book, err := s.repo.GetAddresses(ctx, userID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("failed to get addresses: %w", err)
	}
	for _, a := range book.Addresses {
		if a.IsDefault {
			return a, nil
		}
	}
	return domain.Address{}, ErrAddressNotFound
}

// Add stores a new address. The first address, or one flagged IsDefault,
// becomes the only default.
func (s *Service) Add(ctx context.Context, userID string, addr domain.Address) (domain.Address, error) {
	if err := addr.Validate(); err != nil {
		return domain.Address{}, err
	}
	addr.ID = uuid.NewString()

	var added domain.Address
	err := s.update(ctx, userID, func(book *domain.AddressBook) error {
		book.Addresses = append(book.Addresses, addr)
		last := len(book.Addresses) - 1
		if addr.IsDefault || last == 0 {
			makeDefault(book.Addresses, last)
		}
		added = book.Addresses[last]
		return nil
	})
	if err != nil {
		return domain.Address{}, err
	}
	return added, nil
}

// Update replaces the address fields. Clearing IsDefault on the default
// address promotes the first sibling; a sole address stays default.
func (s *Service) Update(ctx context.Context, userID string, addr domain.Address) (domain.Address, error) {
	if err := addr.Validate(); err != nil {
		return domain.Address{}, err
	}

	var updated domain.Address
	err := s.update(ctx, userID, func(book *domain.AddressBook) error {
		i := indexOf(book.Addresses, addr.ID)
		if i < 0 {
			return ErrAddressNotFound
		}
		wasDefault := book.Addresses[i].IsDefault
		book.Addresses[i] = addr

		switch {
		case addr.IsDefault:
			makeDefault(book.Addresses, i)
		case wasDefault:
			book.Addresses[i].IsDefault = false
			ensureDefault(book.Addresses, i)
		}
		updated = book.Addresses[i]
		return nil
	})
	if err != nil {
		return domain.Address{}, err
	}
	return updated, nil
}

// Delete removes an address. If it was the default, the first remaining
// address becomes default.
func (s *Service) Delete(ctx context.Context, userID, addressID string) error {
	return s.update(ctx, userID, func(book *domain.AddressBook) error {
		i := indexOf(book.Addresses, addressID)
		if i < 0 {
			return ErrAddressNotFound
		}
		wasDefault := book.Addresses[i].IsDefault
		book.Addresses = append(book.Addresses[:i], book.Addresses[i+1:]...)
		if wasDefault && len(book.Addresses) > 0 {
			makeDefault(book.Addresses, 0)
		}
		return nil
	})
}

func (s *Service) SetDefault(ctx context.Context, userID, addressID string) error {
	return s.update(ctx, userID, func(book *domain.AddressBook) error {
		i := indexOf(book.Addresses, addressID)
		if i < 0 {
			return ErrAddressNotFound
		}
		makeDefault(book.Addresses, i)
		return nil
	})
}

// update runs a read-modify-write against the versioned book, retrying when
// another writer got there first.
func (s *Service) update(ctx context.Context, userID string, mutate func(*domain.AddressBook) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var book *domain.AddressBook
		book, err = s.repo.GetAddresses(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get addresses: %w", err)
		}
		if err := mutate(book); err != nil {
			return err
		}

		err = s.repo.SaveAddresses(ctx, book)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return fmt.Errorf("failed to save addresses: %w", err)
		}
		s.log.Debug("address book changed concurrently, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt))
	}
	return err
}

func indexOf(addrs []domain.Address, id string) int {
	for i, a := range addrs {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func makeDefault(addrs []domain.Address, i int) {
	for j := range addrs {
		addrs[j].IsDefault = j == i
	}
}

// ensureDefault promotes the first address other than skip when none is default.
func ensureDefault(addrs []domain.Address, skip int) {
	for _, a := range addrs {
		if a.IsDefault {
			return
		}
	}
	for j := range addrs {
		if j != skip {
			makeDefault(addrs, j)
			return
		}
	}
	addrs[skip].IsDefault = true
}
