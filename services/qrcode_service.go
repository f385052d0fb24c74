package services

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QRGenerator renders the PNG a printed plaque carries
type QRGenerator interface {
	Generate(content string) ([]byte, error)
}

// GoQRCodeGenerator renders QR codes with github.com/skip2/go-qrcode
type GoQRCodeGenerator struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// NewQRGenerator returns a generator producing 512px PNGs with medium error correction
func NewQRGenerator() *GoQRCodeGenerator {
	return &GoQRCodeGenerator{Size: 512, Level: qrcode.Medium}
}

// Generate encodes content as a PNG
func (g *GoQRCodeGenerator) Generate(content string) ([]byte, error) {
	qr, err := qrcode.New(content, g.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	png, err := qr.PNG(g.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
