package weather

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/ocsp"
)

// revocationErrorMarkers appear in transport error texts when the revocation
// status of the server certificate could not be established. The numeric
// codes are CRYPT_E_NO_REVOCATION_CHECK and CRYPT_E_REVOCATION_OFFLINE, which
// localized systems report instead of the word.
var revocationErrorMarkers = []string{"revocation", "80092012", "80092013"}

// IsRevocationError reports whether a transport error text looks like a
// failed certificate revocation check.
func IsRevocationError(errText string) bool {
	for _, m := range revocationErrorMarkers {
		if strings.Contains(errText, m) {
			return true
		}
	}
	return false
}

var errRevoked = errors.New("certificate revocation check failed: certificate is revoked")

// revocationCheck validates the OCSP response stapled by the server.
// Servers that staple nothing pass. It can be switched off per session.
type revocationCheck struct {
	enabled atomic.Bool
}

func newRevocationCheck(enabled bool) *revocationCheck {
	rc := &revocationCheck{}
	rc.enabled.Store(enabled)
	return rc
}

func (rc *revocationCheck) disable() {
	rc.enabled.Store(false)
}

// verify is installed as tls.Config.VerifyConnection
func (rc *revocationCheck) verify(cs tls.ConnectionState) error {
	if !rc.enabled.Load() || len(cs.OCSPResponse) == 0 || len(cs.PeerCertificates) == 0 {
		return nil
	}

	leaf := cs.PeerCertificates[0]
	var issuer *x509.Certificate
	if len(cs.VerifiedChains) > 0 && len(cs.VerifiedChains[0]) > 1 {
		issuer = cs.VerifiedChains[0][1]
	} else if len(cs.PeerCertificates) > 1 {
		issuer = cs.PeerCertificates[1]
	}

	resp, err := ocsp.ParseResponseForCert(cs.OCSPResponse, leaf, issuer)
	if err != nil {
		return fmt.Errorf("certificate revocation check failed: %w", err)
	}
	if resp.Status == ocsp.Revoked {
		return errRevoked
	}
	return nil
}
