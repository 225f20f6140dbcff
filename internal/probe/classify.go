package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"

	"github.com/hamed0406/uptimemonitor/internal/domain"
)

// DNS failure classes, reported as the prefix of a dns error detail.
const (
	DNSNXDomain      = "NXDOMAIN"
	DNSServFailOrTTL = "SERVFAIL_or_TIMEOUT"
	DNSOther         = "DNS_ERROR"
)

// Classify maps a transport error from the HTTP client to an outcome.
func Classify(err error) domain.Outcome {
	var (
		dnsErr   *net.DNSError
		opErr    *net.OpError
		certErr  *tls.CertificateVerificationError
		recErr   tls.RecordHeaderError
		authErr  x509.UnknownAuthorityError
		hostErr  x509.HostnameError
		invalErr x509.CertificateInvalidError
		netErr   net.Error
	)
	switch {
	case errors.As(err, &dnsErr):
		return domain.Failed(domain.ErrKindDNS, dnsClass(dnsErr)+": "+dnsErr.Error())
	case errors.As(err, &certErr), errors.As(err, &recErr), errors.As(err, &authErr),
		errors.As(err, &hostErr), errors.As(err, &invalErr):
		return domain.Failed(domain.ErrKindTLS, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domain.Failed(domain.ErrKindTimeout, err.Error())
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return domain.Failed(domain.ErrKindConnect, err.Error())
	default:
		return domain.Failed(domain.ErrKindTransport, err.Error())
	}
}

func dnsClass(de *net.DNSError) string {
	switch {
	case de.IsNotFound:
		return DNSNXDomain
	case de.IsTemporary || de.Timeout():
		return DNSServFailOrTTL
	default:
		return DNSOther
	}
}
