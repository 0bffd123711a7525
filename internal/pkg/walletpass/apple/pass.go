// Package apple builds PassKit store-card documents for Apple Wallet.
package apple

import "context"

const (
	FormatVersion = 1

	BarcodeFormatQR       = "PKBarcodeFormatQR"
	BarcodeEncodingLatin1 = "iso-8859-1"

	// ContentType is what signed archives are served as.
	ContentType = "application/vnd.apple.pkpass"
)

// PassDocument is the pass.json of a store-card pass.
type PassDocument struct {
	FormatVersion       int       `json:"formatVersion"`
	PassTypeIdentifier  string    `json:"passTypeIdentifier"`
	SerialNumber        string    `json:"serialNumber"`
	TeamIdentifier      string    `json:"teamIdentifier"`
	OrganizationName    string    `json:"organizationName"`
	Description         string    `json:"description"`
	LogoText            string    `json:"logoText,omitempty"`
	ForegroundColor     string    `json:"foregroundColor"`
	BackgroundColor     string    `json:"backgroundColor"`
	LabelColor          string    `json:"labelColor"`
	WebServiceURL       string    `json:"webServiceURL,omitempty"`
	AuthenticationToken string    `json:"authenticationToken,omitempty"`
	ExpirationDate      string    `json:"expirationDate,omitempty"`
	Voided              bool      `json:"voided,omitempty"`
	Barcodes            []Barcode `json:"barcodes"`
	StoreCard           StoreCard `json:"storeCard"`
}

type StoreCard struct {
	HeaderFields    []Field `json:"headerFields"`
	PrimaryFields   []Field `json:"primaryFields"`
	SecondaryFields []Field `json:"secondaryFields"`
	AuxiliaryFields []Field `json:"auxiliaryFields"`
	BackFields      []Field `json:"backFields"`
}

type Field struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Value         string `json:"value"`
	ChangeMessage string `json:"changeMessage,omitempty"`
	TextAlignment string `json:"textAlignment,omitempty"`
}

type Barcode struct {
	Message         string `json:"message"`
	Format          string `json:"format"`
	MessageEncoding string `json:"messageEncoding"`
	AltText         string `json:"altText"`
}

// BarcodeBlock is the barcode section merged into a pass document.
type BarcodeBlock struct {
	Barcodes []Barcode `json:"barcodes"`
}

// Signer packages a pass document with certificate material into a signed
// .pkpass archive.
type Signer interface {
	Sign(ctx context.Context, doc *PassDocument) ([]byte, error)
}

// FieldByKey returns the first field with key across all sections.
func (d *PassDocument) FieldByKey(key string) (Field, bool) {
	sections := [][]Field{
		d.StoreCard.HeaderFields,
		d.StoreCard.PrimaryFields,
		d.StoreCard.SecondaryFields,
		d.StoreCard.AuxiliaryFields,
		d.StoreCard.BackFields,
	}
	for _, fields := range sections {
		for _, f := range fields {
			if f.Key == key {
				return f, true
			}
		}
	}
	return Field{}, false
}
