// Package documents renders member cards, receipts, QR codes and
// spreadsheets from gym data.
package documents

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QRSize is the default edge length in pixels of generated QR codes.
const QRSize = 256

// QRCode encodes content as a PNG QR code.
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = QRSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
