package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/levisbarua/pesaflow/internal/domain"
)

// ReceiptPlaceholder stands in for a missing MpesaReceiptNumber.
const ReceiptPlaceholder = "N/A"

// Envelope identifies which of the two callback nesting shapes was received.
type Envelope int

const (
	// EnvelopeBody is {"Body":{"stkCallback":{...}}}, the documented Daraja shape.
	EnvelopeBody Envelope = iota + 1
	// EnvelopeBare is {"stkCallback":{...}}, sent by some relays and sandboxes.
	EnvelopeBare
)

func (e Envelope) String() string {
	switch e {
	case EnvelopeBody:
		return "body"
	case EnvelopeBare:
		return "bare"
	default:
		return "unknown"
	}
}

// ResultCode accepts both 0 and "0".
type ResultCode int

func (c *ResultCode) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid ResultCode %s", b)
	}
	*c = ResultCode(n)
	return nil
}

// looseString accepts any JSON value for fields reconciliation does not key on,
// so an unexpected type there does not reject the whole callback.
type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = looseString(s)
		return nil
	}
	if string(b) == "null" {
		*l = ""
		return nil
	}
	*l = looseString(bytes.TrimSpace(b))
	return nil
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// STKCallback is the payload inside either envelope.
type STKCallback struct {
	MerchantRequestID looseString `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        *ResultCode `json:"ResultCode"`
	ResultDesc        looseString `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []MetadataItem `json:"Item"`
	} `json:"CallbackMetadata,omitempty"`
}

// CallbackResult is the resolved, envelope-free view of an STK callback.
type CallbackResult struct {
	Envelope          Envelope
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Metadata          map[string]string
}

func (r *CallbackResult) Success() bool {
	return r.ResultCode == 0
}

// Receipt returns the M-Pesa receipt number, or ReceiptPlaceholder when absent.
func (r *CallbackResult) Receipt() string {
	if v := r.Metadata["MpesaReceiptNumber"]; v != "" {
		return v
	}
	return ReceiptPlaceholder
}

type callbackEnvelope struct {
	Body *struct {
		StkCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
	StkCallback *STKCallback `json:"stkCallback"`
}

// ParseSTKCallback resolves the raw callback body into a CallbackResult.
// It is the only place that knows about the two nesting shapes.
func ParseSTKCallback(raw []byte) (*CallbackResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &domain.MalformedCallbackError{Reason: "empty body"}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, &domain.MalformedCallbackError{Reason: "body is not a callback object", Err: err}
	}

	var (
		cb    *STKCallback
		shape Envelope
	)
	switch {
	case env.Body != nil && env.Body.StkCallback != nil:
		cb, shape = env.Body.StkCallback, EnvelopeBody
	case env.StkCallback != nil:
		cb, shape = env.StkCallback, EnvelopeBare
	default:
		return nil, &domain.MalformedCallbackError{Reason: "neither Body.stkCallback nor stkCallback present"}
	}

	if cb.CheckoutRequestID == "" {
		return nil, &domain.MalformedCallbackError{Reason: "CheckoutRequestID missing"}
	}
	if cb.ResultCode == nil {
		return nil, &domain.MalformedCallbackError{Reason: "ResultCode missing"}
	}

	result := &CallbackResult{
		Envelope:          shape,
		MerchantRequestID: string(cb.MerchantRequestID),
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        int(*cb.ResultCode),
		ResultDesc:        string(cb.ResultDesc),
		Metadata:          make(map[string]string),
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			if item.Name == "" || item.Value == nil {
				continue
			}
			result.Metadata[item.Name] = fmt.Sprint(item.Value)
		}
	}

	return result, nil
}
