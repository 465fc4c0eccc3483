package license

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"math/big"
	"strings"

	"github.com/kelda/licensecheck/pkg/errors"
)

// MinKeyBits is the smallest RSA modulus accepted for license signatures.
const MinKeyBits = 2048

type rsaKeyValue struct {
	XMLName  xml.Name `xml:"RSAKeyValue"`
	Modulus  string   `xml:"Modulus"`
	Exponent string   `xml:"Exponent"`
}

// ParsePublicKey parses an RSA public key in either PEM ("PUBLIC KEY" or
// "RSA PUBLIC KEY") or XML <RSAKeyValue> form.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty public key")
	}

	var key *rsa.PublicKey
	var err error
	if data[0] == '<' {
		key, err = parseXMLPublicKey(data)
	} else {
		key, err = parsePEMPublicKey(data)
	}
	if err != nil {
		return nil, err
	}

	if key.N.BitLen() < MinKeyBits {
		return nil, errors.New("public key is %d bits, at least %d are required",
			key.N.BitLen(), MinKeyBits)
	}
	return key, nil
}

func parsePEMPublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, errors.WithContext("parse PKCS1 public key", err)
		}
		return key, nil
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, errors.WithContext("parse PKIX public key", err)
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is %T, not RSA", parsed)
		}
		return key, nil
	default:
		return nil, errors.New("unexpected PEM block type %q", block.Type)
	}
}

func parseXMLPublicKey(data []byte) (*rsa.PublicKey, error) {
	var kv rsaKeyValue
	if err := xml.Unmarshal(data, &kv); err != nil {
		return nil, errors.WithContext("parse XML public key", err)
	}

	modulus, err := decodeXMLInt(kv.Modulus)
	if err != nil {
		return nil, errors.WithContext("decode modulus", err)
	}
	exponent, err := decodeXMLInt(kv.Exponent)
	if err != nil {
		return nil, errors.WithContext("decode exponent", err)
	}

	if !exponent.IsInt64() || exponent.Int64() < 3 || exponent.Int64() > 1<<31-1 {
		return nil, errors.New("invalid public exponent")
	}

	return &rsa.PublicKey{N: modulus, E: int(exponent.Int64())}, nil
}

func decodeXMLInt(s string) (*big.Int, error) {
	// Pretty printed documents may wrap the value over several lines.
	b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty value")
	}
	return new(big.Int).SetBytes(b), nil
}

// MarshalPublicKeyXML encodes key as an <RSAKeyValue> document.
func MarshalPublicKeyXML(key *rsa.PublicKey) ([]byte, error) {
	return xml.Marshal(rsaKeyValue{
		Modulus:  base64.StdEncoding.EncodeToString(key.N.Bytes()),
		Exponent: base64.StdEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	})
}

// MarshalPublicKeyPEM encodes key as a PKIX "PUBLIC KEY" PEM block.
func MarshalPublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, errors.WithContext("marshal public key", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
