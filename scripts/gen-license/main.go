package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"io/ioutil"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kelda/licensecheck/pkg/license"
	"github.com/kelda/licensecheck/pkg/licensefile"
)

func main() {
	var inputPath string
	var expiryDays int
	var privateKeyPath string
	var outputPath string

	flag.StringVar(&inputPath, "in", "", "Path to a YAML or JSON description of the license")
	flag.IntVar(&expiryDays, "expiration-days", -1, "Days until license expires. Overrides the expiry in the description")
	flag.StringVar(&privateKeyPath, "privkey", "", "Path to private key")
	flag.StringVar(&outputPath, "out", "", "Output path for license")
	flag.Parse()

	if inputPath == "" {
		log.Fatal("Please specify -in")
	}

	if privateKeyPath == "" {
		log.Fatal("Please specify -privkey")
	}

	if outputPath == "" {
		log.Fatal("Please specify -out")
	}

	fs := afero.NewOsFs()
	lic, err := licensefile.Load(fs, inputPath)
	if err != nil {
		log.WithError(err).WithField("inputPath", inputPath).
			Fatal("Failed to read license description")
	}

	now := time.Now().UTC().Truncate(time.Second)
	if expiryDays != -1 {
		lic.Expires = now.AddDate(0, 0, expiryDays)
		lic.Period = expiryDays
	}
	if lic.Created.IsZero() {
		lic.Created = now
	}
	lic.SignDate = now

	privKey, err := readPrivateKey(privateKeyPath)
	if err != nil {
		log.WithError(err).WithField("privateKeyPath", privateKeyPath).
			Fatal("Failed to read private key")
	}

	lic.Signature, err = license.Sign(lic, privKey)
	if err != nil {
		log.WithError(err).Fatal("Failed to sign license")
	}

	if err := licensefile.Save(fs, outputPath, lic); err != nil {
		log.WithError(err).Fatal("Failed to write license")
	}
	fmt.Printf("Successfully wrote license to '%s'\n", outputPath)
}

func readPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyBytes, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
