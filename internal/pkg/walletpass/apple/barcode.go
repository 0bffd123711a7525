package apple

import "fmt"

// BuildBarcode returns a block holding exactly one QR barcode for message.
func BuildBarcode(message, altTextPrefix string) BarcodeBlock {
	return BarcodeBlock{
		Barcodes: []Barcode{{
			Message:         message,
			Format:          BarcodeFormatQR,
			MessageEncoding: BarcodeEncodingLatin1,
			AltText:         fmt.Sprintf("%s: %s", altTextPrefix, message),
		}},
	}
}
