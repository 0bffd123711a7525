// Package pwa builds the web app manifest for the browser fallback card.
package pwa

import (
	"fmt"
	"strings"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/pkg/walletpass"
)

const (
	ContentType    = "application/manifest+json"
	DisplayMode    = "standalone"
	defaultBgColor = "#ffffff"
)

type Icon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
}

type ManifestInput struct {
	Name            string
	ShortName       string
	ThemeColor      string
	BackgroundColor string
	Scope           string
	StartURL        string
	Icons           []Icon
}

type Manifest struct {
	Name            string `json:"name"`
	ShortName       string `json:"short_name"`
	ThemeColor      string `json:"theme_color"`
	BackgroundColor string `json:"background_color"`
	Display         string `json:"display"`
	Scope           string `json:"scope"`
	StartURL        string `json:"start_url"`
	Icons           []Icon `json:"icons"`
}

// BuildManifest maps in onto the web app manifest shape.
func BuildManifest(in ManifestInput) Manifest {
	icons := in.Icons
	if icons == nil {
		icons = []Icon{}
	}
	return Manifest{
		Name:            in.Name,
		ShortName:       in.ShortName,
		ThemeColor:      in.ThemeColor,
		BackgroundColor: in.BackgroundColor,
		Display:         DisplayMode,
		Scope:           in.Scope,
		StartURL:        in.StartURL,
		Icons:           icons,
	}
}

// ForCard builds the manifest for the PWA pass with the given serial.
func ForCard(cc *card.CustomerCard, serial, baseURL string) Manifest {
	base := strings.TrimRight(baseURL, "/")
	scope := fmt.Sprintf("/pwa/%s/", serial)

	name := cc.Template.Name
	if cc.Business.Name != "" {
		name = fmt.Sprintf("%s %s", cc.Business.Name, cc.Template.Name)
	}

	return BuildManifest(ManifestInput{
		Name:            name,
		ShortName:       truncate(cc.Template.Name, 12),
		ThemeColor:      walletpass.NormalizeHexColor(cc.Template.Color),
		BackgroundColor: defaultBgColor,
		Scope:           scope,
		StartURL:        scope + "card",
		Icons:           defaultIcons(base, cc.Template.Type),
	})
}

func defaultIcons(base string, t card.CardType) []Icon {
	variant := "stamp"
	if t == card.CardTypeMembership {
		variant = "membership"
	}
	return []Icon{
		{Src: fmt.Sprintf("%s/icons/%s-192.png", base, variant), Sizes: "192x192", Type: "image/png"},
		{Src: fmt.Sprintf("%s/icons/%s-512.png", base, variant), Sizes: "512x512", Type: "image/png", Purpose: "any maskable"},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
