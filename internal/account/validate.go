package account

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	protocolRule = validation.In(
		ProtocolSSH,
		ProtocolVLESS,
		ProtocolTrojan,
		ProtocolSocks,
		ProtocolShadowsocks,
	).Error("must be one of SSH, VLESS, TROJAN, SOCKS, SHADOWSOCKS")
	statusRule = validation.In(StatusActive, StatusInactive).Error("must be active or inactive")
)

// Validate checks a normalised record. SSH records need the full SSH
// field-set; every other type needs a config string.
func (a Account) Validate() error {
	ssh := a.Type == ProtocolSSH
	return validation.ValidateStruct(&a,
		validation.Field(&a.Type, validation.Required, protocolRule),
		validation.Field(&a.Status, validation.Required, statusRule),
		validation.Field(&a.IPAddress, validation.When(ssh, validation.Required.Error("IP address is required for SSH"))),
		validation.Field(&a.Username, validation.When(ssh, validation.Required.Error("username is required for SSH"))),
		validation.Field(&a.Password, validation.When(ssh, validation.Required.Error("password is required for SSH"))),
		validation.Field(&a.ExpiryDate, validation.When(ssh, validation.Required.Error("expiry date is required for SSH"))),
		validation.Field(&a.Config, validation.When(!ssh && a.Type != "", validation.Required.Error("config is required for this account type"))),
	)
}
