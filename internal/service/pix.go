package service

import (
	"fmt"
	"strings"

	"bakery-service/internal/models"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// PixService builds EMV BR Code payloads for pix payments and renders them
// as QR codes.
type PixService struct {
	key          string
	merchantName string
	merchantCity string
}

// A TLV length is two digits, so the key must leave room for the
// br.gov.bcb.pix GUI and both subfield headers inside field 26.
const maxPixKeyLen = 77

// NewPixService creates a new pix payload builder
func NewPixService(key, merchantName, merchantCity string) *PixService {
	return &PixService{
		key:          truncate(key, maxPixKeyLen),
		merchantName: truncate(merchantName, 25),
		merchantCity: truncate(merchantCity, 15),
	}
}

// BuildPayload assembles the copy-and-paste BR Code string for an order.
// Layout follows the EMV merchant-presented mode: TLV fields with two-digit
// ids and two-digit lengths, CRC16-CCITT over everything including the "6304"
// header of the checksum field itself.
func (p *PixService) BuildPayload(order *models.Order) string {
	merchantAccount := emvField("00", "br.gov.bcb.pix") + emvField("01", p.key)

	var b strings.Builder
	b.WriteString(emvField("00", "01"))
	b.WriteString(emvField("26", merchantAccount))
	b.WriteString(emvField("52", "0000"))
	b.WriteString(emvField("53", "986"))
	if order.Total.IsPositive() {
		b.WriteString(emvField("54", order.Total.StringFixed(2)))
	}
	b.WriteString(emvField("58", "BR"))
	b.WriteString(emvField("59", p.merchantName))
	b.WriteString(emvField("60", p.merchantCity))
	b.WriteString(emvField("62", emvField("05", pixTxID(order.ID))))
	b.WriteString("6304")

	payload := b.String()
	return payload + fmt.Sprintf("%04X", crc16ccitt(payload))
}

// QRCodePNG renders a payload as a PNG image
func (p *PixService) QRCodePNG(payload string, size int) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pix QR code: %w", err)
	}
	return png, nil
}

// VerifyPayload checks the trailing CRC of a BR Code string
func VerifyPayload(payload string) bool {
	if len(payload) < 8 {
		return false
	}
	body, crc := payload[:len(payload)-4], payload[len(payload)-4:]
	if !strings.HasSuffix(body, "6304") {
		return false
	}
	return fmt.Sprintf("%04X", crc16ccitt(body)) == crc
}

// pixTxID derives a transaction id from the order id. The BR Code txid field
// is limited to 25 alphanumeric characters, so the uuid's hyphens go.
func pixTxID(orderID string) string {
	return truncate(strings.ReplaceAll(orderID, "-", ""), 25)
}

func emvField(id, value string) string {
	// TLV lengths are exactly two digits; a longer value would silently
	// corrupt the payload.
	value = truncate(value, 99)
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// crc16ccitt computes CRC16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as
// required by the BR Code spec.
func crc16ccitt(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// PixChargeFor is a convenience wrapper returning payload plus QR for an
// order, rejecting non-pix orders.
func (p *PixService) PixChargeFor(order *models.Order, size int) (string, []byte, error) {
	if order.PaymentMethod != models.PaymentMethodPix {
		return "", nil, fmt.Errorf("order %s is not a pix order", order.ID)
	}
	if order.Total.Equal(decimal.Zero) {
		return "", nil, fmt.Errorf("order %s is fully paid with cashback", order.ID)
	}
	payload := p.BuildPayload(order)
	png, err := p.QRCodePNG(payload, size)
	if err != nil {
		return "", nil, err
	}
	return payload, png, nil
}
