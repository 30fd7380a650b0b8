package store

import "fmt"

// Variant key prefixes for the per-variant <v>_mac/<v>_sn pairing keys,
// literal per spec.md §6.
const (
	KeyBattery          = "d3"
	KeyAirConditioner   = "w2"
	KeyHighPowerBattery = "d3p"
	KeyAlternator       = "ac"
)

const (
	keyWifiSSID = "wifi_ssid"
	keyWifiPass = "wifi_pass"
)

// Pairing is the persisted binding for one device slot: an empty MAC means
// "not paired" per §4.5.
type Pairing struct {
	MAC    string
	Serial string
}

// LoadPairing reads the persisted MAC/serial for variantKey (one of the
// Key* constants). A missing pairing is reported as a zero-value Pairing,
// not an error.
func (s *Store) LoadPairing(variantKey string) (Pairing, error) {
	mac, _, err := s.Get(variantKey + "_mac")
	if err != nil {
		return Pairing{}, fmt.Errorf("store: load pairing %s: %w", variantKey, err)
	}
	serial, _, err := s.Get(variantKey + "_sn")
	if err != nil {
		return Pairing{}, fmt.Errorf("store: load pairing %s: %w", variantKey, err)
	}
	return Pairing{MAC: mac, Serial: serial}, nil
}

// SavePairing persists a new MAC/serial binding for variantKey.
func (s *Store) SavePairing(variantKey string, p Pairing) error {
	if err := s.Set(variantKey+"_mac", p.MAC); err != nil {
		return err
	}
	return s.Set(variantKey+"_sn", p.Serial)
}

// ForgetPairing clears the MAC/serial binding for variantKey.
func (s *Store) ForgetPairing(variantKey string) error {
	if err := s.Delete(variantKey + "_mac"); err != nil {
		return err
	}
	return s.Delete(variantKey + "_sn")
}

// LoadWifi returns the persisted Wi-Fi SSID and password.
func (s *Store) LoadWifi() (ssid, pass string, err error) {
	ssid, _, err = s.Get(keyWifiSSID)
	if err != nil {
		return "", "", err
	}
	pass, _, err = s.Get(keyWifiPass)
	if err != nil {
		return "", "", err
	}
	return ssid, pass, nil
}

// SaveWifi persists the Wi-Fi SSID and password.
func (s *Store) SaveWifi(ssid, pass string) error {
	if err := s.Set(keyWifiSSID, ssid); err != nil {
		return err
	}
	return s.Set(keyWifiPass, pass)
}
