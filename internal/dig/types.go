package dig

import (
	"encoding/json"
	"fmt"

	"github.com/LeJamon/goXRPLdig/internal/network"
	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

// Activation is the tri-state existence flag for an account. "Not found" is
// a semantic negative from the ledger; it must never be conflated with a
// fetch failure, which leaves the state unknown.
type Activation int

const (
	ActivationUnknown Activation = iota
	Activated
	NotActivated
)

func (a Activation) String() string {
	switch a {
	case Activated:
		return "activated"
	case NotActivated:
		return "not-activated"
	}
	return "unknown"
}

// MarshalJSON encodes the tri-state as a string so consumers cannot
// accidentally collapse it into a boolean.
func (a Activation) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON restores the tri-state from its string form.
func (a *Activation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "activated":
		*a = Activated
	case "not-activated":
		*a = NotActivated
	case "unknown":
		*a = ActivationUnknown
	default:
		return fmt.Errorf("invalid activation state %q", s)
	}
	return nil
}

// FacetError records the failure of one facet fetch.
type FacetError struct {
	Facet   Facet               `json:"facet"`
	Kind    rpcclient.ErrorKind `json:"-"`
	Message string              `json:"message"`
	Err     error               `json:"-"`
}

func (e *FacetError) Error() string {
	return fmt.Sprintf("%s: %s", e.Facet, e.Message)
}

func (e *FacetError) Unwrap() error { return e.Err }

// IsTimeout reports whether the facet failed on the shared deadline.
func (e *FacetError) IsTimeout() bool { return e.Kind == rpcclient.KindTimeout }

// AccountData is the account_root entry returned by account_info.
type AccountData struct {
	Account           string `json:"Account"`
	Balance           string `json:"Balance"`
	Flags             uint32 `json:"Flags"`
	OwnerCount        uint32 `json:"OwnerCount"`
	Sequence          uint32 `json:"Sequence"`
	PreviousTxnID     string `json:"PreviousTxnID,omitempty"`
	PreviousTxnLgrSeq uint32 `json:"PreviousTxnLgrSeq,omitempty"`
	Domain            string `json:"Domain,omitempty"`
	EmailHash         string `json:"EmailHash,omitempty"`
	RegularKey        string `json:"RegularKey,omitempty"`
	TransferRate      uint32 `json:"TransferRate,omitempty"`
	TickSize          uint8  `json:"TickSize,omitempty"`
}

// Transaction is one entry of an account_tx page. Tx and Meta stay raw: the
// aggregator does not interpret transaction contents.
type Transaction struct {
	Hash        string          `json:"hash,omitempty"`
	LedgerIndex uint32          `json:"ledger_index,omitempty"`
	Validated   bool            `json:"validated"`
	Tx          json.RawMessage `json:"tx,omitempty"`
	TxJSON      json.RawMessage `json:"tx_json,omitempty"`
	Meta        json.RawMessage `json:"meta,omitempty"`
}

// NFToken is one entry of account_nfts.
type NFToken struct {
	NFTokenID    string `json:"NFTokenID"`
	Issuer       string `json:"Issuer"`
	URI          string `json:"URI,omitempty"`
	Flags        uint32 `json:"Flags"`
	TransferFee  uint16 `json:"TransferFee,omitempty"`
	NFTokenTaxon uint32 `json:"NFTokenTaxon"`
	NFTSerial    uint32 `json:"nft_serial"`
}

// TrustLine is one entry of account_lines.
type TrustLine struct {
	Account        string `json:"account"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
	Limit          string `json:"limit"`
	LimitPeer      string `json:"limit_peer"`
	QualityIn      uint32 `json:"quality_in"`
	QualityOut     uint32 `json:"quality_out"`
	NoRipple       bool   `json:"no_ripple,omitempty"`
	NoRipplePeer   bool   `json:"no_ripple_peer,omitempty"`
	Authorized     bool   `json:"authorized,omitempty"`
	PeerAuthorized bool   `json:"peer_authorized,omitempty"`
	Freeze         bool   `json:"freeze,omitempty"`
	FreezePeer     bool   `json:"freeze_peer,omitempty"`
}

// Channel is one entry of account_channels.
type Channel struct {
	Account            string `json:"account"`
	Amount             string `json:"amount"`
	Balance            string `json:"balance"`
	ChannelID          string `json:"channel_id"`
	DestinationAccount string `json:"destination_account"`
	SettleDelay        uint32 `json:"settle_delay"`
	PublicKey          string `json:"public_key,omitempty"`
	Expiration         uint32 `json:"expiration,omitempty"`
	CancelAfter        uint32 `json:"cancel_after,omitempty"`
	SourceTag          uint32 `json:"source_tag,omitempty"`
	DestinationTag     uint32 `json:"destination_tag,omitempty"`
}

// Snapshot is the merged, point-in-time result of one aggregation. It is
// immutable after construction; a refresh produces a new snapshot.
type Snapshot struct {
	Address string             `json:"address"`
	Network network.Descriptor `json:"network"`

	Activation Activation `json:"activation"`

	// Facet payloads. A field is populated only when its facet was
	// requested; a requested facet that failed holds its empty collection,
	// while an unrequested facet stays nil (JSON null).
	AccountInfo  *AccountData      `json:"account_info,omitempty"`
	Transactions []Transaction     `json:"transactions"`
	Objects      []json.RawMessage `json:"objects"`
	NFTs         []NFToken         `json:"nfts"`
	Currencies   []string          `json:"currencies"`
	TrustLines   []TrustLine       `json:"trust_lines"`
	Channels     []Channel         `json:"channels"`

	// Errors holds one entry per failed facet. A facet that succeeded with
	// an empty result is not an error, and an accountInfo "not found" is a
	// semantic negative recorded in Activation, never here.
	Errors map[Facet]*FacetError `json:"errors,omitempty"`

	// Diagnostics records non-fatal conditions such as a network fallback.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// Requested is the effective facet set of this aggregation.
	Requested []Facet `json:"requested"`
}

// HasFacet reports whether f was part of the aggregation.
func (s *Snapshot) HasFacet(f Facet) bool {
	for _, r := range s.Requested {
		if r == f {
			return true
		}
	}
	return false
}

// ErrorMessages flattens the error map for display boundaries.
func (s *Snapshot) ErrorMessages() map[string]string {
	if len(s.Errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(s.Errors))
	for f, e := range s.Errors {
		out[string(f)] = e.Message
	}
	return out
}
