// Package validator implements structural and semantic message validation
// ahead of authentication. JSON-Schema validation of descriptor shapes is
// an external collaborator (SchemaValidator); this package owns URI
// normalization, descriptor-CID binding, dataCid/dataSize
// presence-pairing, inline-data hash/size checks, and empty-filter-object
// rejection for queries.
package validator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/forestrie/go-dwn/dstore"
	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
)

// SchemaValidator is the external collaborator
// that checks a descriptor against its interface/method's JSON Schema.
// Production deployments supply a real implementation; this repository's
// Validator treats a nil SchemaValidator as "no schema validation stage",
// since the collaborator's concrete behavior is not this repository's to
// define.
type SchemaValidator interface {
	ValidateDescriptor(ctx context.Context, iface dwn.Interface, method dwn.Method, descriptor dwn.Descriptor) error
}

// Validator runs the structural and semantic checks applicable to an
// inbound message.
type Validator struct {
	schema SchemaValidator
}

// New builds a Validator. schema may be nil (see SchemaValidator).
func New(schema SchemaValidator) *Validator {
	return &Validator{schema: schema}
}

// Validate runs every applicable check against msg and returns a
// *dwnerr.Error classified KindInvalid on the first violation found.
func (v *Validator) Validate(ctx context.Context, msg dwn.Message) error {
	desc := msg.Descriptor

	if v.schema != nil {
		if err := v.schema.ValidateDescriptor(ctx, desc.Interface(), desc.Method(), desc); err != nil {
			return dwnerr.New(dwnerr.KindInvalid, "SchemaViolation", err)
		}
	}

	if err := validateNormalizedURIs(desc); err != nil {
		return err
	}
	if err := validateDescriptorCID(desc, msg.Authorization); err != nil {
		return err
	}
	if err := validateDataPairing(desc, msg.EncodedData); err != nil {
		return err
	}
	if err := validateInlineData(desc, msg.EncodedData); err != nil {
		return err
	}
	return nil
}

// ValidateFilter rejects an empty filter object in a
// RecordsQuery/MessagesQuery/ProtocolsQuery style request.
func ValidateFilter(filter map[string]any) error {
	if len(filter) == 0 {
		return dwnerr.New(dwnerr.KindInvalid, "EmptyFilter", fmt.Errorf("validator: filter object must not be empty"))
	}
	return nil
}

// NormalizeURI lowercases the scheme and host of a URI and strips any
// trailing slash. Values that do not parse as a URI (or
// have no scheme, as is common for protocol/schema "URIs" that are really
// bare strings) are returned unchanged apart from the trailing-slash trim,
// since there is no scheme/host to lowercase.
func NormalizeURI(raw string) string {
	trimmed := strings.TrimSuffix(raw, "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/")
}

func validateNormalizedURIs(desc dwn.Descriptor) error {
	if protocol := desc.Protocol(); protocol != "" {
		if NormalizeURI(protocol) != protocol {
			return dwnerr.New(dwnerr.KindInvalid, "ProtocolNotNormalized",
				fmt.Errorf("validator: protocol %q is not normalized", protocol))
		}
	}
	if schema := desc.Schema(); schema != "" {
		if NormalizeURI(schema) != schema {
			return dwnerr.New(dwnerr.KindInvalid, "SchemaNotNormalized",
				fmt.Errorf("validator: schema %q is not normalized", schema))
		}
	}
	return nil
}

func validateDescriptorCID(desc dwn.Descriptor, auth *dwn.Authorization) error {
	if auth == nil {
		// Authentication (jws.Verifier) owns reporting a missing
		// authorization envelope; the validator only checks binding when one
		// is present.
		return nil
	}
	computed, err := dwn.DescriptorCID(desc)
	if err != nil {
		return dwnerr.New(dwnerr.KindInternal, "ComputeDescriptorCid", err)
	}
	if auth.Payload.DescriptorCID != computed.String() {
		return dwnerr.New(dwnerr.KindInvalid, "DescriptorCidMismatch",
			fmt.Errorf("validator: authorization.payload.descriptorCid %q does not match computed %q",
				auth.Payload.DescriptorCID, computed.String()))
	}
	return nil
}

// validateDataPairing enforces "dataCid iff dataSize" for record
// descriptors. Non-record interfaces carry neither field
// and are unaffected.
func validateDataPairing(desc dwn.Descriptor, encodedData []byte) error {
	_, hasCID := desc.DataCID()
	_, hasSize := desc.DataSize()
	if hasCID != hasSize {
		return dwnerr.New(dwnerr.KindInvalid, "DataCidSizeMismatch",
			fmt.Errorf("validator: dataCid present=%v but dataSize present=%v", hasCID, hasSize))
	}
	return nil
}

// validateInlineData checks that encodedData's size and hash match the
// descriptor's dataSize/dataCid when data is carried inline.
func validateInlineData(desc dwn.Descriptor, encodedData []byte) error {
	if len(encodedData) == 0 {
		return nil
	}
	if len(encodedData) > dwn.InlineDataThreshold {
		return dwnerr.New(dwnerr.KindInvalid, "EncodedDataTooLarge",
			fmt.Errorf("validator: encodedData is %d bytes; payloads above %d must stream to the data store", len(encodedData), dwn.InlineDataThreshold))
	}
	size, hasSize := desc.DataSize()
	if hasSize && size != int64(len(encodedData)) {
		return dwnerr.New(dwnerr.KindInvalid, "EncodedDataSizeMismatch",
			fmt.Errorf("validator: encodedData is %d bytes, descriptor says %d", len(encodedData), size))
	}
	cidStr, hasCID := desc.DataCID()
	if hasCID {
		computed, err := dstore.DataCID(encodedData)
		if err != nil {
			return dwnerr.New(dwnerr.KindInternal, "ComputeDataCid", err)
		}
		if computed != cidStr {
			return dwnerr.New(dwnerr.KindInvalid, "EncodedDataHashMismatch",
				fmt.Errorf("validator: encodedData hashes to %q, descriptor says %q", computed, cidStr))
		}
	}
	return nil
}
