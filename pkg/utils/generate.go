package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ==================== UUID ====================

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

// ==================== BOOKING CODE ====================

const (
	BookingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	BookingCodeLength   = 10
)

var alphabetSize = big.NewInt(int64(len(BookingCodeAlphabet)))

// GenerateBookingCode draws BookingCodeLength symbols uniformly from
// BookingCodeAlphabet. Uniqueness is the caller's job: check the ledger.
func GenerateBookingCode() string {
	var sb strings.Builder
	sb.Grow(BookingCodeLength)

	for i := 0; i < BookingCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is gone
			panic("booking code: read random: " + err.Error())
		}
		sb.WriteByte(BookingCodeAlphabet[n.Int64()])
	}

	return sb.String()
}

// IsBookingCode reports whether code has the booking code shape.
func IsBookingCode(code string) bool {
	if len(code) != BookingCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(BookingCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
