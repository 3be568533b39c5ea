package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

// Payload is the ticket reference sealed inside a QR code.
type Payload struct {
	TicketID string    `json:"tid"`
	Number   string    `json:"num"`
	QueueID  string    `json:"qid"`
	TenantID string    `json:"ten"`
	IssuedAt time.Time `json:"iat"`
}

var ErrInvalidPayload = errors.New("invalid QR payload")

type QRGenerator struct {
	secret []byte
	size   int
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:], size: 256}
}

// Seal encrypts the ticket reference into a URL-safe string.
func (q *QRGenerator) Seal(ticket *models.Ticket, at time.Time) (string, error) {
	data, err := json.Marshal(Payload{
		TicketID: ticket.ID,
		Number:   ticket.Number,
		QueueID:  ticket.QueueID,
		TenantID: ticket.TenantID,
		IssuedAt: at.UTC(),
	})
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// GenerateEncryptedQR renders the sealed ticket reference as a PNG.
func (q *QRGenerator) GenerateEncryptedQR(ticket *models.Ticket, at time.Time) ([]byte, error) {
	sealed, err := q.Seal(ticket, at)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(sealed, qrcode.Medium, q.size)
}

func (q *QRGenerator) DecryptQRData(encoded string) (*Payload, error) {
	data, err := decryptAES(encoded, q.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.TicketID == "" {
		return nil, fmt.Errorf("%w: missing ticket id", ErrInvalidPayload)
	}
	return &payload, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
