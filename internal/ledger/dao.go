package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Key layout of the ledger state.
const (
	keyContract        byte = 0x01 // owner || price feed
	prefixContribution byte = 0x02 // || address -> amount
	prefixFunder       byte = 0x03 // || uint32 BE index -> address
	keyFunderCount     byte = 0x04 // -> uint32 BE
)

func contributionKey(addr models.Address) []byte {
	return append([]byte{prefixContribution}, addr[:]...)
}

// funderKey builds the key of the i-th entry of the funders list
func funderKey(i uint32) []byte {
	k := make([]byte, 5) // prefix byte + 4 byte index
	k[0] = prefixFunder
	binary.BigEndian.PutUint32(k[1:], i)
	return k
}

func encodeContract(owner, priceFeed models.Address) []byte {
	b := make([]byte, 0, 2*models.AddressSize)
	b = append(b, owner[:]...)
	return append(b, priceFeed[:]...)
}

func decodeContract(b []byte) (owner, priceFeed models.Address, err error) {
	if len(b) != 2*models.AddressSize {
		return owner, priceFeed, fmt.Errorf("ledger: corrupted contract record of %d bytes", len(b))
	}
	copy(owner[:], b[:models.AddressSize])
	copy(priceFeed[:], b[models.AddressSize:])
	return owner, priceFeed, nil
}

func getContribution(s interfaces.StateReader, addr models.Address) (decimal.Decimal, error) {
	raw, err := s.Get(contributionKey(addr))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return decimal.Zero, nil // never funded, or cleared by a withdrawal
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decodeAmount(raw)
}

func decodeAmount(raw []byte) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: corrupted amount: %w", err)
	}
	return amount, nil
}

// putContribution stores amount, a zero amount removes the record.
func putContribution(s interfaces.StateWriter, addr models.Address, amount decimal.Decimal) {
	if amount.IsZero() {
		s.Delete(contributionKey(addr))
		return
	}
	s.Put(contributionKey(addr), []byte(amount.String()))
}

func funderCount(s interfaces.StateReader) (uint32, error) {
	raw, err := s.Get([]byte{keyFunderCount})
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 4 {
		return 0, fmt.Errorf("ledger: corrupted funder count of %d bytes", len(raw))
	}
	return binary.BigEndian.Uint32(raw), nil
}

func putFunderCount(s interfaces.StateWriter, n uint32) {
	if n == 0 {
		s.Delete([]byte{keyFunderCount})
		return
	}
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, n)
	s.Put([]byte{keyFunderCount}, raw)
}

func getFunder(s interfaces.StateReader, i uint32) (models.Address, error) {
	raw, err := s.Get(funderKey(i))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return models.ZeroAddress, ErrIndexOutOfRange
	}
	if err != nil {
		return models.ZeroAddress, err
	}
	return models.AddressFromBytes(raw)
}

func appendFunder(s interfaces.StateWriter, addr models.Address) error {
	n, err := funderCount(s)
	if err != nil {
		return err
	}
	s.Put(funderKey(n), addr.Bytes())
	putFunderCount(s, n+1)
	return nil
}

// loadFunders reads the whole contributor sequence into memory.
func loadFunders(s interfaces.StateReader) ([]models.Address, error) {
	n, err := funderCount(s)
	if err != nil {
		return nil, err
	}
	funders := make([]models.Address, n)
	for i := range funders {
		if funders[i], err = getFunder(s, uint32(i)); err != nil {
			return nil, err
		}
	}
	return funders, nil
}
