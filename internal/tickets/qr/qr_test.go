package qr_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/tickets/qr"
)

var ticket = &models.Ticket{ID: "8f0c", Number: "AB12", QueueID: "q1", TenantID: "tenant-a"}

func TestSealAndDecrypt(t *testing.T) {
	gen := qr.NewQRGenerator("secret")
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	sealed, err := gen.Seal(ticket, at)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "AB12")

	payload, err := gen.DecryptQRData(sealed)
	require.NoError(t, err)
	assert.Equal(t, "8f0c", payload.TicketID)
	assert.Equal(t, "AB12", payload.Number)
	assert.Equal(t, "tenant-a", payload.TenantID)
	assert.True(t, at.Equal(payload.IssuedAt))
}

func TestDecryptRejectsForeignOrTamperedData(t *testing.T) {
	gen := qr.NewQRGenerator("secret")
	sealed, err := gen.Seal(ticket, time.Now())
	require.NoError(t, err)

	_, err = qr.NewQRGenerator("other").DecryptQRData(sealed)
	assert.ErrorIs(t, err, qr.ErrInvalidPayload)

	tampered := []byte(sealed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}
	_, err = gen.DecryptQRData(string(tampered))
	assert.ErrorIs(t, err, qr.ErrInvalidPayload)

	_, err = gen.DecryptQRData("not base64 !!")
	assert.ErrorIs(t, err, qr.ErrInvalidPayload)
}

func TestGenerateEncryptedQRIsPNG(t *testing.T) {
	png, err := qr.NewQRGenerator("secret").GenerateEncryptedQR(ticket, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
