package utils

import (
	"encoding/base64"
	"encoding/json"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// qrPayload is what gets encoded into a booking's QR image. Check-in
// scanners verify the booking id against the database; the blob itself
// is not a proof of payment.
type qrPayload struct {
	BookingID string `json:"bookingId"`
	Reference string `json:"reference"`
	Timestamp string `json:"timestamp"`
	Verified  bool   `json:"verified"`
}

// GenerateBookingQR renders the booking's check-in QR code as a base64
// data URL. Generation failure never blocks booking creation; callers
// log and move on.
func GenerateBookingQR(bookingID, reference string) (string, error) {
	payload, err := json.Marshal(qrPayload{
		BookingID: bookingID,
		Reference: reference,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Verified:  true,
	})
	if err != nil {
		return "", err
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// VerifyBookingQR decodes a scanned QR payload and reports whether it is
// structurally valid, returning the embedded booking id.
func VerifyBookingQR(data string) (bookingID string, ok bool) {
	var p qrPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return "", false
	}
	if !p.Verified || p.BookingID == "" || p.Timestamp == "" {
		return "", false
	}
	return p.BookingID, true
}
