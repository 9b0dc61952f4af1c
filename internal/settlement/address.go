// internal/settlement/address.go
package settlement

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

const weiDecimals = 18

// ChecksumAddress returns the EIP-55 mixed-case form of a 20 byte hex address.
func ChecksumAddress(addr string) (string, error) {
	body := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if len(body) != 40 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	lower := strings.ToLower(body)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte(lower)
	for i, ch := range out {
		if ch < 'a' || ch > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = ch - 'a' + 'A'
		}
	}
	return "0x" + string(out), nil
}

// NormalizeAddress accepts all-lower, all-upper or correctly checksummed
// input and returns the checksummed form.
func NormalizeAddress(addr string) (string, error) {
	sum, err := ChecksumAddress(addr)
	if err != nil {
		return "", err
	}
	body := addr[len(addr)-40:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return sum, nil
	}
	if body != sum[2:] {
		return "", fmt.Errorf("%w: %s", ErrBadChecksum, addr)
	}
	return sum, nil
}

// ToWei converts a currency amount to wei. More than 18 decimal places is
// an error rather than a silent truncation.
func ToWei(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, amount)
	}
	shifted := amount.Shift(weiDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, amount, weiDecimals)
	}
	return shifted.BigInt(), nil
}

func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiDecimals)
}
