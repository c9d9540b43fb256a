package service

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	qrcode "github.com/skip2/go-qrcode"

	"cardpress/utils"
)

const qrImageSize = 256

// encodeQRDataURI synthesizes a QR code PNG for value and returns it as a
// data URI. An empty value yields an empty string; the renderer shows a
// placeholder in that case.
func encodeQRDataURI(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	data, err := qrcode.Encode(value, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return utils.BuildDataURI("image/png", data), nil
}

// encodeBarcodeDataURI renders value as a Code 128 barcode PNG data URI.
// An empty value yields an empty string and the renderer falls back to a
// placeholder glyph pattern.
func encodeBarcodeDataURI(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	bc, err := code128.Encode(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode barcode: %w", err)
	}
	scaled, err := barcode.Scale(bc, 400, 120)
	if err != nil {
		return "", fmt.Errorf("failed to scale barcode: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return "", fmt.Errorf("failed to render barcode: %w", err)
	}
	return utils.BuildDataURI("image/png", buf.Bytes()), nil
}
