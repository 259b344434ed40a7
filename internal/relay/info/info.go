// Package info assembles the relay information document (NIP-11) from relay
// settings. The document is pure data: every field is copied or derived from
// configuration, and nothing here touches storage.
package info

import (
	"strings"

	"github.com/thesimplekid/nostr-rs-relay/internal/relay/config"
)

// Unit is the currency unit used for all published fees.
const Unit = "sats"

// Version identifies the running build; set via -ldflags at release time.
var Version = "dev"

// software is the canonical URL identifying this relay implementation.
const software = "https://github.com/thesimplekid/nostr-rs-relay"

// supportedNIPs lists the protocol extensions this build implements.
var supportedNIPs = []int64{1, 2, 9, 11, 12, 15, 16, 20, 22, 33, 111}

// Limitation advertises operational restrictions of the relay.
type Limitation struct {
	PaymentRequired *bool `json:"payment_required,omitempty"`
}

// Fee is a single price in a fee schedule.
type Fee struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
}

// Fees groups the fee schedules the relay charges.
type Fees struct {
	Admission   []Fee `json:"admission,omitempty"`
	Publication []Fee `json:"publication,omitempty"`
}

// RelayInfo is the published relay information document.
type RelayInfo struct {
	ID            string      `json:"id,omitempty"`
	Name          string      `json:"name,omitempty"`
	Description   string      `json:"description,omitempty"`
	Pubkey        string      `json:"pubkey,omitempty"`
	Contact       string      `json:"contact,omitempty"`
	SupportedNIPs []int64     `json:"supported_nips,omitempty"`
	Software      string      `json:"software,omitempty"`
	Version       string      `json:"version,omitempty"`
	Limitation    *Limitation `json:"limitation,omitempty"`
	PaymentURL    string      `json:"payment_url,omitempty"`
	Fees          *Fees       `json:"fees,omitempty"`
}

// New builds the information document from relay settings.
//
// When pay-to-relay is enabled, the admission and publication fee schedules
// carry any non-zero costs and the payment URL is derived from the relay's
// websocket URL by swapping the scheme to HTTP.
func New(i config.Info, p config.PayToRelay) RelayInfo {
	paymentRequired := p.Enabled
	doc := RelayInfo{
		ID:            i.RelayURL,
		Name:          i.Name,
		Description:   i.Description,
		Pubkey:        i.Pubkey,
		Contact:       i.Contact,
		SupportedNIPs: supportedNIPs,
		Software:      software,
		Version:       Version,
		Limitation:    &Limitation{PaymentRequired: &paymentRequired},
	}

	if !p.Enabled {
		return doc
	}

	fees := &Fees{}
	if p.AdmissionCost > 0 {
		fees.Admission = []Fee{{Amount: p.AdmissionCost, Unit: Unit}}
	}
	if p.CostPerEvent > 0 {
		fees.Publication = []Fee{{Amount: p.CostPerEvent, Unit: Unit}}
	}
	doc.Fees = fees

	if i.RelayURL != "" {
		doc.PaymentURL = strings.ReplaceAll(i.RelayURL, "ws", "http") + "join"
	}
	return doc
}
