package device

import "strings"

// MatchReason records which rule identified a remembered device.
type MatchReason string

const (
	MatchNone     MatchReason = ""
	MatchSerial   MatchReason = "serial"
	MatchKey      MatchReason = "key"
	MatchNameHost MatchReason = "name_host"
)

// Resolve finds the remembered device in a freshly fetched list.
//
// Rules are tried in priority order across the whole list; the first rule
// with a hit wins, so a serial match beats an earlier name/host match.
func Resolve(remembered Device, list []Device) (Device, MatchReason, bool) {
	if remembered.SerialNumber != "" {
		for _, d := range list {
			if d.SerialNumber == remembered.SerialNumber {
				return d, MatchSerial, true
			}
		}
	}

	key := remembered.Key()
	for _, d := range list {
		if d.Key() == key {
			return d, MatchKey, true
		}
	}

	if remembered.Name != "" && remembered.Host != "" {
		for _, d := range list {
			if strings.EqualFold(d.Name, remembered.Name) && d.Host == remembered.Host {
				return d, MatchNameHost, true
			}
		}
	}

	return Device{}, MatchNone, false
}

// pickDefault chooses the device to auto-select: the first online device,
// else the first device.
func pickDefault(list []Device) (Device, bool) {
	for _, d := range list {
		if d.DerivedStatus() == StatusOnline {
			return d, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return Device{}, false
}
