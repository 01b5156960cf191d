package credstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/cape/internal/hashutil"
)

// Magic is the 4-byte little-endian magic that prefixes both .cape.db and
// .cape.hash, marking them as Cape credential files.
const Magic uint32 = 0xFFAAFABA

const magicSize = 4

// record is one parsed line of the .cape.db body:
// "username:permission:hex_hash".
type record struct {
	username string
	perm     Permission
	hash     hashutil.Digest
}

// encodeDB serializes magic + records, in order, into the .cape.db format.
func encodeDB(records []record) []byte {
	var buf bytes.Buffer
	var magicBytes [magicSize]byte
	binary.LittleEndian.PutUint32(magicBytes[:], Magic)
	buf.Write(magicBytes[:])

	for _, r := range records {
		fmt.Fprintf(&buf, "%s:%d:%s\n", r.username, r.perm, r.hash.Hex())
	}
	return buf.Bytes()
}

// decodeDB parses raw .cape.db bytes into an ordered list of records.
func decodeDB(data []byte) ([]record, error) {
	if len(data) < magicSize {
		return nil, fmt.Errorf("credstore: db file too short for magic header")
	}
	magic := binary.LittleEndian.Uint32(data[:magicSize])
	if magic != Magic {
		return nil, fmt.Errorf("credstore: db file has wrong magic bytes: %#x", magic)
	}

	var records []record
	scanner := bufio.NewScanner(bytes.NewReader(data[magicSize:]))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("credstore: malformed db record %q", line)
		}

		permVal, err := strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("credstore: malformed permission in record %q: %w", line, err)
		}
		perm := Permission(permVal)
		if !perm.Valid() {
			return nil, fmt.Errorf("credstore: invalid permission %d in record %q", permVal, line)
		}

		digest, err := hashutil.DecodeHex(parts[2])
		if err != nil {
			return nil, fmt.Errorf("credstore: malformed hash in record %q: %w", line, err)
		}

		records = append(records, record{username: parts[0], perm: perm, hash: digest})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// encodeHashFile builds the .cape.hash contents: 4-byte magic, a newline,
// then the raw 32-byte SHA-256 digest of the .cape.db bytes.
func encodeHashFile(dbDigest hashutil.Digest) []byte {
	var buf bytes.Buffer
	var magicBytes [magicSize]byte
	binary.LittleEndian.PutUint32(magicBytes[:], Magic)
	buf.Write(magicBytes[:])
	buf.WriteByte('\n')
	buf.Write(dbDigest[:])
	return buf.Bytes()
}

// decodeHashFile parses .cape.hash contents, returning the stored digest.
func decodeHashFile(data []byte) (hashutil.Digest, error) {
	var digest hashutil.Digest
	if len(data) < magicSize+1+hashutil.Size {
		return digest, fmt.Errorf("credstore: hash file too short")
	}
	magic := binary.LittleEndian.Uint32(data[:magicSize])
	if magic != Magic {
		return digest, fmt.Errorf("credstore: hash file has wrong magic bytes: %#x", magic)
	}
	if data[magicSize] != '\n' {
		return digest, fmt.Errorf("credstore: hash file missing newline after magic")
	}
	copy(digest[:], data[magicSize+1:magicSize+1+hashutil.Size])
	return digest, nil
}
