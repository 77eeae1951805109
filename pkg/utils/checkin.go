package utils

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/blake2b"
)

const (
	checkInPrefix = "CINEMOX"
	checkInTagLen = 8 // bytes, hex encoded to 16 chars
	qrImageSize   = 300
)

// CheckInPayload is the data encoded in the venue barcode. It is a pure
// function of its inputs.
func CheckInPayload(code, movieTitle string, showDate time.Time, showTime string) string {
	return strings.Join([]string{
		checkInPrefix,
		code,
		movieTitle,
		showDate.Format(DateLayout),
		showTime,
	}, "|")
}

// SignCheckInPayload appends a keyed BLAKE2b tag so scanners can reject
// forged payloads. An empty secret leaves the payload unchanged.
func SignCheckInPayload(payload, secret string) string {
	if secret == "" {
		return payload
	}
	return payload + "|" + checkInTag(payload, secret)
}

// VerifyCheckInPayload checks a scanned payload and returns its booking code.
func VerifyCheckInPayload(signed, secret string) (string, error) {
	parts := strings.Split(signed, "|")
	if len(parts) < 5 || parts[0] != checkInPrefix {
		return "", fmt.Errorf("invalid check-in payload")
	}

	if secret != "" {
		if len(parts) < 6 {
			return "", fmt.Errorf("check-in payload is not signed")
		}
		i := strings.LastIndexByte(signed, '|')
		payload, tag := signed[:i], signed[i+1:]
		want := checkInTag(payload, secret)
		if subtle.ConstantTimeCompare([]byte(tag), []byte(want)) != 1 {
			return "", fmt.Errorf("check-in payload signature mismatch")
		}
	}

	if !IsBookingCode(parts[1]) {
		return "", fmt.Errorf("invalid booking code in check-in payload")
	}
	return parts[1], nil
}

func checkInTag(payload, secret string) string {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	h, err := blake2b.New256(key)
	if err != nil {
		// key length is bounded above, New256 cannot fail
		panic("check-in tag: " + err.Error())
	}
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil)[:checkInTagLen])
}

// RenderCheckInQR renders payload as a PNG QR code data URL.
func RenderCheckInQR(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("render check-in QR: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
