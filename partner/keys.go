/*
Package partner holds the read-only partner_id → {aes_key, api_key}
directory every connection handler consults exactly once, after decoding
the request header and before touching the encrypted body.

The directory is populated once at startup from partner_keys.yaml and
never mutated afterward, so every goroutine can read it without a lock —
the same "shared immutable state, no class-level mutable state" shape the
connection handler and acceptor use for config.
*/
package partner

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keys is one partner's credentials: the AES key used to decrypt/encrypt
// that partner's wire traffic, and the API key sent upstream on its
// behalf.
type Keys struct {
	AES [16]byte
	API string
}

// Directory is the immutable partner_id -> Keys mapping, safe for
// concurrent read-only lookup from every connection handler goroutine.
type Directory struct {
	byPartner map[uint32]Keys
}

// rawFile mirrors partner_keys.yaml's shape:
//
//	partners:
//	  7:
//	    aes: "<32 hex chars>"
//	    api: "partner7-upstream-key"
type rawFile struct {
	Partners map[uint32]struct {
		AES string `yaml:"aes"`
		API string `yaml:"api"`
	} `yaml:"partners"`
}

// Load reads and parses a partner_keys.yaml file, hex-decoding each AES
// key to its raw 16 bytes.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partner keys file: %w", err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse partner keys file: %w", err)
	}

	dir := &Directory{byPartner: make(map[uint32]Keys, len(raw.Partners))}
	for partnerID, entry := range raw.Partners {
		aesKey, err := hex.DecodeString(entry.AES)
		if err != nil {
			return nil, fmt.Errorf("partner %d: decode aes key: %w", partnerID, err)
		}
		if len(aesKey) != 16 {
			return nil, fmt.Errorf("partner %d: aes key must decode to 16 bytes, got %d", partnerID, len(aesKey))
		}
		if entry.API == "" {
			return nil, fmt.Errorf("partner %d: api key is required", partnerID)
		}
		var k Keys
		copy(k.AES[:], aesKey)
		k.API = entry.API
		dir.byPartner[partnerID] = k
	}
	return dir, nil
}

// Lookup returns the partner's keys and whether that partner_id is known.
// A miss is not an error condition for the directory itself — per the
// spec, the caller treats it as "drop the connection silently after
// warning."
func (d *Directory) Lookup(partnerID uint32) (Keys, bool) {
	k, ok := d.byPartner[partnerID]
	return k, ok
}
