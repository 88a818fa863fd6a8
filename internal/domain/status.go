package domain

// ChannelStatus mirrors the connectivity of the external WhatsApp channel as
// last reported by the bridge. It is replaced field-by-field by the status
// webhook and read by the dashboard.
type ChannelStatus struct {
	Connected   bool   `json:"connected"`
	QRCode      string `json:"qr_code"`
	PhoneNumber string `json:"phone_number"`
	StatusText  string `json:"status_text"`
}

// StatusUpdate is a partial channel status report; nil fields are left as-is.
// The bridge clears a field by sending an explicit empty value.
type StatusUpdate struct {
	Connected   *bool   `json:"connected,omitempty"`
	QRCode      *string `json:"qr_code,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	StatusText  *string `json:"status_text,omitempty"`
}

// Merge applies the non-nil fields of u and reports whether anything changed.
func (s *ChannelStatus) Merge(u StatusUpdate) bool {
	changed := false
	if u.Connected != nil && s.Connected != *u.Connected {
		s.Connected = *u.Connected
		changed = true
	}
	if u.QRCode != nil && s.QRCode != *u.QRCode {
		s.QRCode = *u.QRCode
		changed = true
	}
	if u.PhoneNumber != nil && s.PhoneNumber != *u.PhoneNumber {
		s.PhoneNumber = *u.PhoneNumber
		changed = true
	}
	if u.StatusText != nil && s.StatusText != *u.StatusText {
		s.StatusText = *u.StatusText
		changed = true
	}
	return changed
}
