// Package account holds the VPS account record, its field rules, the codec
// that seals sensitive fields and the gateway through which every read and
// write of the vpsAccounts collection passes.
package account

import (
	"fmt"
	"strings"
)

// CollectionPath is where account records live in the hosted store.
const CollectionPath = "vpsAccounts"

// DefaultUserID owns records created without an authenticated user.
const DefaultUserID = "anonymous"

type Protocol string

const (
	ProtocolSSH         Protocol = "SSH"
	ProtocolVLESS       Protocol = "VLESS"
	ProtocolTrojan      Protocol = "TROJAN"
	ProtocolSocks       Protocol = "SOCKS"
	ProtocolShadowsocks Protocol = "SHADOWSOCKS"
)

// Protocols lists every supported tag in display order.
var Protocols = []Protocol{
	ProtocolSSH,
	ProtocolVLESS,
	ProtocolTrojan,
	ProtocolSocks,
	ProtocolShadowsocks,
}

// ParseProtocol matches s against the known tags ignoring case.
func ParseProtocol(s string) (Protocol, error) {
	want := strings.TrimSpace(s)
	for _, p := range Protocols {
		if strings.EqualFold(want, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

func (p Protocol) Is(other Protocol) bool {
	return strings.EqualFold(string(p), string(other))
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Account is one credential record. Password and Config hold ciphertext in
// the stored body when Encrypted is true.
type Account struct {
	ID         string   `json:"id,omitempty"`
	Type       Protocol `json:"type"`
	ServerName string   `json:"server_name,omitempty"`

	IPAddress  string `json:"ip_address,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	ExpiryDate string `json:"expiry_date,omitempty"`

	Config string `json:"config,omitempty"`

	Status    Status `json:"status"`
	UserID    string `json:"userId,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

// Patch carries the fields of an update; nil fields are left unchanged.
type Patch struct {
	Type       *string `json:"type,omitempty"`
	ServerName *string `json:"server_name,omitempty"`
	IPAddress  *string `json:"ip_address,omitempty"`
	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
	ExpiryDate *string `json:"expiry_date,omitempty"`
	Config     *string `json:"config,omitempty"`
	Status     *string `json:"status,omitempty"`
}

func (p Patch) apply(a *Account) {
	if p.Type != nil {
		a.Type = Protocol(*p.Type)
	}
	if p.ServerName != nil {
		a.ServerName = *p.ServerName
	}
	if p.IPAddress != nil {
		a.IPAddress = *p.IPAddress
	}
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.Password != nil {
		a.Password = *p.Password
	}
	if p.ExpiryDate != nil {
		a.ExpiryDate = *p.ExpiryDate
	}
	if p.Config != nil {
		a.Config = *p.Config
	}
	if p.Status != nil {
		a.Status = Status(*p.Status)
	}
}

// normalize trims input and canonicalises the type and status tags.
func (a Account) normalize() Account {
	a.Type = Protocol(strings.ToUpper(strings.TrimSpace(string(a.Type))))
	a.Status = Status(strings.ToLower(strings.TrimSpace(string(a.Status))))
	a.ServerName = strings.TrimSpace(a.ServerName)
	a.IPAddress = strings.TrimSpace(a.IPAddress)
	a.Username = strings.TrimSpace(a.Username)
	a.ExpiryDate = strings.TrimSpace(a.ExpiryDate)
	return a
}

// withFieldSet drops the fields that do not belong to the record's type.
func (a Account) withFieldSet() Account {
	if a.Type.Is(ProtocolSSH) {
		a.Config = ""
		return a
	}
	a.IPAddress = ""
	a.Username = ""
	a.Password = ""
	a.ExpiryDate = ""
	return a
}
