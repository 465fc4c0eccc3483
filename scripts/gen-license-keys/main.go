package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/kelda/licensecheck/pkg/license"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Printf("Usage: %s PRIVATE_KEY_FILE PUBLIC_KEY_PEM_FILE PUBLIC_KEY_XML_FILE\n", os.Args[0])
		os.Exit(1)
	}

	privkey, err := rsa.GenerateKey(rand.Reader, license.MinKeyBits)
	if err != nil {
		fmt.Printf("error while generating key: %v\n", err)
		os.Exit(1)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privkey),
	})
	err = ioutil.WriteFile(os.Args[1], privPEM, 0400)
	if err != nil {
		fmt.Printf("error while writing private key: %v\n", err)
		os.Exit(1)
	}

	pubPEM, err := license.MarshalPublicKeyPEM(&privkey.PublicKey)
	if err != nil {
		fmt.Printf("error while encoding public key: %v\n", err)
		os.Exit(1)
	}
	err = ioutil.WriteFile(os.Args[2], pubPEM, 0666)
	if err != nil {
		fmt.Printf("error while writing public key: %v\n", err)
		os.Exit(1)
	}

	pubXML, err := license.MarshalPublicKeyXML(&privkey.PublicKey)
	if err != nil {
		fmt.Printf("error while encoding public key: %v\n", err)
		os.Exit(1)
	}
	err = ioutil.WriteFile(os.Args[3], pubXML, 0666)
	if err != nil {
		fmt.Printf("error while writing public key: %v\n", err)
		os.Exit(1)
	}
}
