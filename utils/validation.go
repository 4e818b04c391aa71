package utils

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
	"github.com/vitwit/arkpay/types"
)

// transferInput is the subset of a session that must be valid before any
// network work starts.
type transferInput struct {
	Recipient   string `validate:"required,alphanum"`
	VendorField string `validate:"required,max=255"`
	Currency    string `validate:"required,alpha"`
	Coin        string `validate:"required,alphanum"`
	Network     string `validate:"required"`
}

// ValidatePeer checks a peer that has already been normalized.
func ValidatePeer(peer types.Peer) error {
	if err := validate.Struct(peer); err != nil {
		return fmt.Errorf("invalid peer %q: %w", peer.IP, err)
	}
	return nil
}

// ValidateAmount checks that a fiat amount is strictly positive.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero, got %s", amount.String())
	}
	return nil
}

// ValidateAddress decodes a base58check address. For coins with known
// address versions the version byte must match the network.
func ValidateAddress(address, coin, network string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	_, version, err := base58.CheckDecode(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}

	if expected, ok := types.AddressVersion(coin, network); ok && version != expected {
		return fmt.Errorf("address %q does not belong to %s %s (version %d, want %d)",
			address, strings.ToUpper(coin), network, version, expected)
	}

	return nil
}

// ValidateSession checks everything a session needs before discovery,
// conversion and polling may start.
func ValidateSession(session *types.Session) error {
	in := transferInput{
		Recipient:   session.Transfer.Recipient,
		VendorField: session.Transfer.VendorField,
		Currency:    session.Transfer.Currency,
		Coin:        session.Network.Coin,
		Network:     session.Network.Name,
	}
	if err := validate.Struct(in); err != nil {
		return invalidInput("invalid transfer", err)
	}

	if err := ValidateAmount(session.Transfer.Amounts.Fiat); err != nil {
		return invalidInput("invalid amount", err)
	}

	if err := ValidateAddress(in.Recipient, in.Coin, in.Network); err != nil {
		return invalidInput("invalid recipient", err)
	}

	return nil
}

func invalidInput(msg string, err error) error {
	return &types.GatewayError{
		Code:    types.ErrInvalidInput,
		Message: msg,
		Err:     err,
	}
}
