package tor

import (
	"encoding/base32"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/torhybrid/internal/route"
)

// v3 onion address layout (rend-spec-v3, "Encoding onion addresses").
const (
	// OnionV3Length is the number of base32 characters before ".onion".
	OnionV3Length = 56

	// OnionV3TotalLength includes the ".onion" suffix.
	OnionV3TotalLength = OnionV3Length + len(route.OnionSuffix)

	// OnionV3Version is the trailing version byte of a v3 address.
	OnionV3Version = 0x03

	// onionV3DecodedLength is pubkey (32) + checksum (2) + version (1).
	onionV3DecodedLength = 35
)

// Onion address errors.
var (
	// ErrInvalidOnionAddress is returned for anything that is not a
	// well-formed v3 onion address.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for v2 addresses, which the Tor
	// network stopped serving in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address reports whether address is a v3 onion address with a
// correct checksum and version byte. Case is ignored.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	encoded := strings.ToUpper(strings.TrimSuffix(address, route.OnionSuffix))
	decoded, err := base32.StdEncoding.DecodeString(encoded)
	if err != nil || len(decoded) != onionV3DecodedLength {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]
	if version != OnionV3Version {
		return false
	}

	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum is the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	sum := sha3.Sum256(data)
	return sum[:2]
}

// IsV2Address reports whether address has the 16-character v2 format.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// IsValidOnionHost reports whether host names a v3 onion service.
// Subdomains are allowed ("www.<addr>.onion"), as Tor ignores every label
// but the last one before ".onion".
func IsValidOnionHost(host string) bool {
	host = strings.ToLower(strings.TrimRight(host, "."))
	if !strings.HasSuffix(host, route.OnionSuffix) {
		return false
	}
	if i := strings.LastIndexByte(strings.TrimSuffix(host, route.OnionSuffix), '.'); i >= 0 {
		host = host[i+1:]
	}
	return IsValidV3Address(host)
}

// NormalizeAddress turns user input into a lowercase v3 onion address.
// It accepts a missing ".onion" suffix, surrounding whitespace, an
// http/https scheme and a trailing path, query or fragment.
func NormalizeAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	address = strings.TrimPrefix(address, "https://")
	address = strings.TrimPrefix(address, "http://")

	if i := strings.IndexAny(address, "/?#"); i != -1 {
		address = address[:i]
	}
	if !strings.HasSuffix(address, route.OnionSuffix) {
		address += route.OnionSuffix
	}

	if !IsValidV3Address(address) {
		if IsV2Address(address) {
			return "", ErrV2AddressDeprecated
		}
		return "", ErrInvalidOnionAddress
	}
	return address, nil
}
